package entitypool

import (
	"fmt"
	"testing"

	"github.com/stardrift/server/internal/worldmap"
)

// fakeTemplates serves templates for every tag except those in missing.
type fakeTemplates struct {
	missing map[string]bool
}

func (f *fakeTemplates) Template(typeTag string) (*Template, bool) {
	if f.missing[typeTag] {
		return nil, false
	}
	return &Template{TypeTag: typeTag, Ref: "scenes/" + typeTag}, true
}

func TestCheckoutPrefersReuse(t *testing.T) {
	svc := NewService(&fakeTemplates{})
	svc.Register("debris", 10)

	first, evicted := svc.Checkout("debris")
	if evicted != nil {
		t.Fatalf("unexpected eviction on first checkout")
	}
	svc.Return(first)

	second, _ := svc.Checkout("debris")
	if second != first {
		t.Fatalf("expected idle instance to be reused")
	}
	if live, idle := svc.Counts("debris"); live != 1 || idle != 0 {
		t.Fatalf("counts = (%d live, %d idle), expected (1, 0)", live, idle)
	}
}

func TestCheckoutCapAndEviction(t *testing.T) {
	svc := NewService(&fakeTemplates{})
	svc.Register("debris", 10)

	var handles []*Entity
	for i := 0; i < 10; i++ {
		e, evicted := svc.Checkout("debris")
		if evicted != nil {
			t.Fatalf("eviction before cap reached (checkout %d)", i)
		}
		e.ID = int64(i + 1)
		handles = append(handles, e)
	}

	// 11th checkout: no idle instance, cap reached, oldest active reclaimed.
	e, evicted := svc.Checkout("debris")
	if e == nil {
		t.Fatal("checkout returned nil past cap")
	}
	if evicted == nil {
		t.Fatal("expected forced eviction past cap")
	}
	if evicted.ID != 1 {
		t.Fatalf("evicted ID = %d, expected oldest (1)", evicted.ID)
	}
	if e != handles[0] {
		t.Fatal("reclaimed instance should be the oldest active one")
	}
	if live, _ := svc.Counts("debris"); live != 10 {
		t.Fatalf("live count = %d, cap is 10", live)
	}
}

func TestReturnWipesTransientState(t *testing.T) {
	svc := NewService(&fakeTemplates{})
	svc.Register("hazard", 4)

	e, _ := svc.Checkout("hazard")
	e.ID = 42
	e.Position = worldmap.Point{X: 100, Y: -50}
	e.Rotation = 1.5
	e.Scale = 2.0
	svc.Return(e)

	if e.ID != 0 || e.Position != (worldmap.Point{}) || e.Rotation != 0 || e.Scale != 0 {
		t.Fatalf("transient state leaked through Return: %+v", e)
	}
	if e.TypeTag != "hazard" || e.TemplateRef != "scenes/hazard" {
		t.Fatalf("construction-time fields must survive Return: %+v", e)
	}

	// Double return is a no-op.
	svc.Return(e)
	if _, idle := svc.Counts("hazard"); idle != 1 {
		t.Fatalf("double return duplicated idle entry, idle=%d", idle)
	}
	svc.Return(nil)
}

func TestMissingTemplateYieldsPlaceholder(t *testing.T) {
	svc := NewService(&fakeTemplates{missing: map[string]bool{"rare": true}})

	e, _ := svc.Checkout("rare")
	if !e.Placeholder {
		t.Fatal("expected placeholder for unconfigured type")
	}
	if e.TemplateRef != PlaceholderRef {
		t.Fatalf("placeholder ref = %q", e.TemplateRef)
	}

	configured, _ := svc.Checkout("ordinary")
	if configured.Placeholder {
		t.Fatal("configured type should not be a placeholder")
	}
}

func TestUnregisteredTypeGetsDefaultCap(t *testing.T) {
	svc := NewService(&fakeTemplates{})

	var last *Entity
	for i := 0; i < DefaultPoolCap; i++ {
		e, evicted := svc.Checkout("unseen")
		if evicted != nil {
			t.Fatalf("eviction before default cap (checkout %d)", i)
		}
		e.ID = int64(i + 1)
		last = e
	}
	_ = last

	_, evicted := svc.Checkout("unseen")
	if evicted == nil {
		t.Fatal("expected eviction once default cap is exhausted")
	}
}

func TestPoolsAreIndependentPerType(t *testing.T) {
	svc := NewService(&fakeTemplates{})
	svc.Register("a", 2)
	svc.Register("b", 2)

	for i := 0; i < 2; i++ {
		if _, evicted := svc.Checkout("a"); evicted != nil {
			t.Fatal("type a evicted early")
		}
	}
	// Type b still has headroom even though a is exhausted.
	if _, evicted := svc.Checkout("b"); evicted != nil {
		t.Fatal("type b affected by type a exhaustion")
	}
}

func TestTotalInstancesNonDecreasing(t *testing.T) {
	svc := NewService(&fakeTemplates{})
	svc.Register("debris", 8)

	total := func() int {
		live, idle := svc.Counts("debris")
		return live + idle
	}

	var handles []*Entity
	for i := 0; i < 8; i++ {
		e, _ := svc.Checkout("debris")
		handles = append(handles, e)
		if total() != i+1 {
			t.Fatalf("total after %d checkouts = %d", i+1, total())
		}
	}
	for i, e := range handles {
		svc.Return(e)
		if total() != 8 {
			t.Fatalf("total dropped to %d after return %d", total(), i)
		}
	}
}

func TestCheckoutSequenceOrdersEvictions(t *testing.T) {
	svc := NewService(&fakeTemplates{})
	svc.Register("debris", 3)

	var ids []int64
	for i := 0; i < 3; i++ {
		e, _ := svc.Checkout("debris")
		e.ID = int64(100 + i)
		ids = append(ids, e.ID)
	}

	for i := 0; i < 3; i++ {
		_, evicted := svc.Checkout("debris")
		if evicted == nil {
			t.Fatalf("expected eviction %d", i)
		}
		if evicted.ID != ids[i] {
			t.Fatalf("eviction %d reclaimed %d, expected %s", i, evicted.ID,
				fmt.Sprintf("%d (oldest remaining)", ids[i]))
		}
	}
}
