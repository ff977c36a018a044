package seedrand

import "math"

// noiseGenerator produces coherent 2D value noise for one object ID. Lattice
// values come from an integer hash of the generator seed and cell coords, so
// sampling is order-independent and seam-safe: the same (x, y) always yields
// the same value no matter what was sampled before it.
type noiseGenerator struct {
	seed int64
}

// latticeHash mixes the seed and cell coordinates into a well-distributed
// 32-bit value (murmur-finalizer style avalanche, per-axis odd primes).
func (g *noiseGenerator) latticeHash(ix, iy int64) uint32 {
	h := uint32(g.seed) ^ uint32(g.seed>>32)
	h ^= uint32(ix) * 0x9e3779b1
	h ^= uint32(iy) * 0x85ebca6b
	h ^= h >> 16
	h *= 0x7feb352d
	h ^= h >> 15
	h *= 0x846ca68b
	h ^= h >> 16
	return h
}

// lattice returns the noise value at an integer lattice point in [0, 1).
func (g *noiseGenerator) lattice(ix, iy int64) float64 {
	return float64(g.latticeHash(ix, iy)) / (1 << 32)
}

// sample returns smoothed value noise at (x, y) in [0, 1).
func (g *noiseGenerator) sample(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	ix := int64(x0)
	iy := int64(y0)

	tx := smoothstep(x - x0)
	ty := smoothstep(y - y0)

	v00 := g.lattice(ix, iy)
	v10 := g.lattice(ix+1, iy)
	v01 := g.lattice(ix, iy+1)
	v11 := g.lattice(ix+1, iy+1)

	top := v00 + (v10-v00)*tx
	bottom := v01 + (v11-v01)*tx
	return top + (bottom-top)*ty
}

// fractal sums octaves of value noise with halving amplitude and doubling
// frequency, normalized into [-1, 1].
func (g *noiseGenerator) fractal(x, y, scale float64, octaves int) float64 {
	if octaves < 1 {
		octaves = 1
	}
	if scale <= 0 {
		scale = 1
	}

	sum := 0.0
	amplitude := 1.0
	frequency := 1.0 / scale
	totalAmplitude := 0.0
	for i := 0; i < octaves; i++ {
		sum += g.sample(x*frequency, y*frequency) * amplitude
		totalAmplitude += amplitude
		amplitude *= 0.5
		frequency *= 2
	}
	return sum/totalAmplitude*2 - 1
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// Noise2D samples octave-summed coherent noise in [-1, 1]. Generator
// instances are keyed and seeded by seed + objectID and cached until the
// next seed change.
func (s *Service) Noise2D(x, y, scale float64, octaves int, objectID int64) float64 {
	s.mu.Lock()
	gen, ok := s.noise[objectID]
	if !ok {
		gen = &noiseGenerator{seed: s.seed + objectID}
		s.noise[objectID] = gen
	}
	s.mu.Unlock()
	return gen.fractal(x, y, scale, octaves)
}
