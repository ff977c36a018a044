package entitypool

import (
	"log"
	"sync"

	"github.com/stardrift/server/internal/worldmap"
)

// PlaceholderRef marks entities whose template was never configured. They
// still occupy their slot so content density stays deterministic; they just
// render as placeholders client-side.
const PlaceholderRef = "placeholder"

// Template is the opaque constructible for one entity type, supplied by the
// content catalog. The pool never looks inside Ref; it only forwards it.
type Template struct {
	TypeTag string
	Ref     string
}

// TemplateProvider resolves a type tag to its template. Returning false
// means the type is unconfigured; the pool substitutes a placeholder rather
// than dropping the slot.
type TemplateProvider interface {
	Template(typeTag string) (*Template, bool)
}

// Entity is a reusable pooled instance. Transient fields are wiped on Return
// so one chunk's state can never leak into the next checkout.
type Entity struct {
	ID          int64
	TypeTag     string
	TemplateRef string
	Placeholder bool

	Position worldmap.Point
	Rotation float64
	Scale    float64

	checkoutSeq uint64
	active      bool
}

// pool holds the per-type instances. Active entities are kept in checkout
// order so forced reclaim can target the oldest one.
type pool struct {
	idle    []*Entity
	active  []*Entity
	cap     int
	created int
}

// Service hands out reusable entities by type tag. Checkout preference is
// reuse > create (under the per-type cap) > evict the oldest active
// instance; it never reports "no instance" for a registered type.
type Service struct {
	mu        sync.Mutex
	pools     map[string]*pool
	templates TemplateProvider
	seq       uint64

	// missingLogged tracks which type tags have already produced a
	// configuration-error log line. One line per type, not per spawn.
	missingLogged map[string]bool
}

// NewService creates an empty pooling service backed by the given template
// provider. Types are registered lazily via Register or on first Checkout.
func NewService(templates TemplateProvider) *Service {
	return &Service{
		pools:         make(map[string]*pool),
		templates:     templates,
		missingLogged: make(map[string]bool),
	}
}

// DefaultPoolCap bounds per-type instance creation when a type was never
// explicitly registered.
const DefaultPoolCap = 128

// Register configures the creation cap for a type. Re-registering adjusts
// the cap without touching existing instances. cap < 1 falls back to the
// default.
func (s *Service) Register(typeTag string, cap int) {
	if cap < 1 {
		cap = DefaultPoolCap
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pools[typeTag]
	if p == nil {
		p = &pool{cap: cap}
		s.pools[typeTag] = p
		return
	}
	p.cap = cap
}

// Checkout returns an instance of the given type, plus the entity that was
// forcibly evicted to satisfy the request, if any. The caller owns removing
// an evicted entity from whatever chunk still references it.
func (s *Service) Checkout(typeTag string) (entity *Entity, evicted *Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pools[typeTag]
	if p == nil {
		p = &pool{cap: DefaultPoolCap}
		s.pools[typeTag] = p
	}

	switch {
	case len(p.idle) > 0:
		entity = p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
	case p.created < p.cap:
		entity = s.construct(typeTag)
		p.created++
	default:
		// Pool drained and cap reached: reclaim the oldest active instance.
		// Simulation continuity wins over strict persistence here.
		entity = p.active[0]
		p.active = p.active[1:]
		evicted = cloneForNotice(entity)
		resetEntity(entity)
	}

	s.seq++
	entity.checkoutSeq = s.seq
	entity.active = true
	p.active = append(p.active, entity)
	return entity, evicted
}

// Return puts an instance back in its type pool after wiping transient
// state. Returning a nil or already-idle entity is a no-op.
func (s *Service) Return(entity *Entity) {
	if entity == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !entity.active {
		return
	}
	p := s.pools[entity.TypeTag]
	if p == nil {
		return
	}
	for i, candidate := range p.active {
		if candidate == entity {
			p.active = append(p.active[:i], p.active[i+1:]...)
			break
		}
	}
	resetEntity(entity)
	p.idle = append(p.idle, entity)
}

// Counts reports live (checked out) and idle instance counts for a type.
func (s *Service) Counts(typeTag string) (live, idle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pools[typeTag]
	if p == nil {
		return 0, 0
	}
	return len(p.active), len(p.idle)
}

// construct builds a fresh instance, substituting a placeholder template
// when the type is unconfigured. Caller holds the lock.
func (s *Service) construct(typeTag string) *Entity {
	ref := PlaceholderRef
	placeholder := true
	if s.templates != nil {
		if tmpl, ok := s.templates.Template(typeTag); ok && tmpl != nil && tmpl.Ref != "" {
			ref = tmpl.Ref
			placeholder = false
		}
	}
	if placeholder && !s.missingLogged[typeTag] {
		s.missingLogged[typeTag] = true
		log.Printf("[Pool] no template configured for entity type %q, substituting placeholder", typeTag)
	}
	return &Entity{
		TypeTag:     typeTag,
		TemplateRef: ref,
		Placeholder: placeholder,
	}
}

// resetEntity wipes per-checkout state. Type tag and template survive; they
// are fixed at construction.
func resetEntity(e *Entity) {
	e.ID = 0
	e.Position = worldmap.Point{}
	e.Rotation = 0
	e.Scale = 0
	e.active = false
}

// cloneForNotice snapshots identity fields of an evicted entity so the
// caller can deregister it, without aliasing the recycled instance.
func cloneForNotice(e *Entity) *Entity {
	return &Entity{ID: e.ID, TypeTag: e.TypeTag}
}
