package seedrand

import (
	"log"
	"math"
	"sync"
)

// DefaultCacheLimit bounds the derived-value cache. When the bound is hit the
// whole cache is dropped; values are always recomputable from (seed, key).
const DefaultCacheLimit = 4096

// request kinds, part of the cache key so different derivations with the
// same numeric parameters never collide.
const (
	kindFloat byte = iota + 1
	kindInt
	kindBool
	kindDisc
)

// cacheKey parameters are stored as raw bit patterns. Converting int64
// bounds to float64 would collide distinct ranges beyond 2^53, and float
// parameters punned the other way produce -0.0/NaN keys that break map
// equality.
type cacheKey struct {
	kind     byte
	objectID int64
	subID    int64
	p1       uint64
	p2       uint64
}

type cacheValue struct {
	a float64
	b float64
	n int64
}

// Service is the seed-keyed deterministic random value source. For a fixed
// seed, every (objectID, subID, kind, parameters) tuple yields the same
// output for the lifetime of that seed. All methods are safe for concurrent
// use; generation workers and the update loop share one instance.
type Service struct {
	mu         sync.Mutex
	seed       int64
	cache      map[cacheKey]cacheValue
	cacheLimit int
	hits       uint64
	misses     uint64
	noise      map[int64]*noiseGenerator
	observers  []func(oldSeed, newSeed int64)
}

// NewService creates a Service with the given world seed. cacheLimit <= 0
// disables memoization entirely; results are unaffected either way.
func NewService(seed int64, cacheLimit int) *Service {
	return &Service{
		seed:       seed,
		cache:      make(map[cacheKey]cacheValue),
		cacheLimit: cacheLimit,
		noise:      make(map[int64]*noiseGenerator),
	}
}

// Seed returns the current world seed.
func (s *Service) Seed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

// SetSeed replaces the world seed. Setting the current seed again is a no-op.
// Otherwise the derived-value cache and all noise generators are dropped and
// seed-change observers run, so nothing derived from the old seed survives.
func (s *Service) SetSeed(newSeed int64) {
	s.mu.Lock()
	if newSeed == s.seed {
		s.mu.Unlock()
		return
	}
	oldSeed := s.seed
	s.seed = newSeed
	s.cache = make(map[cacheKey]cacheValue)
	s.noise = make(map[int64]*noiseGenerator)
	s.hits = 0
	s.misses = 0
	observers := make([]func(int64, int64), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	log.Printf("[Seed] world seed changed: %d -> %d", oldSeed, newSeed)
	for _, observer := range observers {
		observer(oldSeed, newSeed)
	}
}

// OnSeedChange registers a callback invoked after every effective seed
// change. Callbacks run outside the service lock and may call back into the
// service.
func (s *Service) OnSeedChange(fn func(oldSeed, newSeed int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Float returns a deterministic value in [min, max). min > max is normalized
// by swapping.
func (s *Service) Float(objectID, subID int64, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}
	key := cacheKey{
		kind:     kindFloat,
		objectID: objectID,
		subID:    subID,
		p1:       math.Float64bits(min),
		p2:       math.Float64bits(max),
	}
	value := s.derive(key, func(gen *pcg32) cacheValue {
		return cacheValue{a: min + gen.float64()*(max-min)}
	})
	return value.a
}

// Int returns a deterministic integer in the inclusive range [min, max].
// min > max is normalized by swapping. The full int64 domain is valid input.
func (s *Service) Int(objectID, subID, min, max int64) int64 {
	if min > max {
		min, max = max, min
	}
	key := cacheKey{
		kind:     kindInt,
		objectID: objectID,
		subID:    subID,
		p1:       uint64(min),
		p2:       uint64(max),
	}
	value := s.derive(key, func(gen *pcg32) cacheValue {
		span := uint64(max-min) + 1
		switch {
		case span == 0:
			// max-min covers the whole uint64 range, so the modulus would
			// be 2^64; a raw 64-bit draw is already uniform over it.
			return cacheValue{n: int64(gen.next64())}
		case span <= 1<<32:
			return cacheValue{n: min + int64(uint64(gen.next())%span)}
		default:
			return cacheValue{n: min + int64(gen.next64()%span)}
		}
	})
	return value.n
}

// Bool returns a deterministic boolean that is true with the given
// probability (clamped to [0, 1]).
func (s *Service) Bool(objectID, subID int64, probability float64) bool {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	key := cacheKey{kind: kindBool, objectID: objectID, subID: subID, p1: math.Float64bits(probability)}
	value := s.derive(key, func(gen *pcg32) cacheValue {
		if gen.float64() < probability {
			return cacheValue{a: 1}
		}
		return cacheValue{a: 0}
	})
	return value.a != 0
}

// PointInDisc returns a deterministic point uniformly distributed over the
// area of a disc with the given radius, centered at the origin.
func (s *Service) PointInDisc(objectID, subID int64, radius float64) (x, y float64) {
	key := cacheKey{kind: kindDisc, objectID: objectID, subID: subID, p1: math.Float64bits(radius)}
	value := s.derive(key, func(gen *pcg32) cacheValue {
		angle := gen.float64() * 2 * math.Pi
		dist := math.Sqrt(gen.float64()) * radius
		return cacheValue{a: dist * math.Cos(angle), b: dist * math.Sin(angle)}
	})
	return value.a, value.b
}

// WeightedIndex picks an index by cumulative weight. Weights <= 0 contribute
// nothing. Returns -1 when weights is empty or sums to zero, the "no value"
// sentinel; it never fails otherwise.
func (s *Service) WeightedIndex(objectID, subID int64, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if len(weights) == 0 || total <= 0 {
		return -1
	}

	roll := s.Float(objectID, subID, 0, total)
	cumulative := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if roll < cumulative {
			return i
		}
	}
	// Floating point accumulation can leave roll a hair past the last bucket.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}

// Shuffle performs a deterministic Fisher-Yates shuffle over n elements,
// drawing one Int per swap. n <= 1 is a no-op.
func (s *Service) Shuffle(objectID int64, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := int(s.Int(objectID, int64(i), 0, int64(i)))
		if j != i {
			swap(i, j)
		}
	}
}

// CacheStats reports memoization counters and the current entry count.
func (s *Service) CacheStats() (hits, misses uint64, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses, len(s.cache)
}

// derive looks up or computes the value for a composite key. The generator
// handed to compute is freshly seeded from (seed, objectID, subID), so calls
// for different object IDs can never contaminate each other.
func (s *Service) derive(key cacheKey, compute func(*pcg32) cacheValue) cacheValue {
	s.mu.Lock()
	if s.cacheLimit > 0 {
		if value, ok := s.cache[key]; ok {
			s.hits++
			s.mu.Unlock()
			return value
		}
		s.misses++
	}
	seed := s.seed
	hash := (seed << 5) ^ key.objectID ^ key.subID
	s.mu.Unlock()

	gen := newPCG32(uint64(hash)^uint64(key.kind)<<56, pcgDefaultStream)
	value := compute(gen)

	if s.cacheLimit > 0 {
		s.mu.Lock()
		// Do not poison a fresh cache if the seed moved while computing.
		if s.seed == seed {
			if len(s.cache) >= s.cacheLimit {
				// Simple full clear rather than LRU; everything is recomputable.
				s.cache = make(map[cacheKey]cacheValue)
				s.hits = 0
				s.misses = 0
			}
			s.cache[key] = value
		}
		s.mu.Unlock()
	}
	return value
}
