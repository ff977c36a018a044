package seedrand

// pcg32 implements the PCG-XSH-RR generator (O'Neill, pcg-random.org) with
// 64 bits of state and 32-bit output. The algorithm is pinned here rather
// than delegated to math/rand so derived values are bit-identical across
// platforms and Go releases; determinism of world content depends on it.
type pcg32 struct {
	state uint64
	inc   uint64
}

const (
	pcgMultiplier = 6364136223846793005

	// pcgDefaultStream selects the output stream used for all derived-value
	// draws. Any odd constant works; changing it changes every world.
	pcgDefaultStream = 54
)

// newPCG32 seeds a generator for the given initial state and stream,
// following the reference pcg32_srandom_r initialization.
func newPCG32(initState, initSeq uint64) *pcg32 {
	p := &pcg32{state: 0, inc: (initSeq << 1) | 1}
	p.next()
	p.state += initState
	p.next()
	return p
}

// next advances the state and returns the next 32-bit output.
func (p *pcg32) next() uint32 {
	old := p.state
	p.state = old*pcgMultiplier + p.inc
	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}

// next64 combines two outputs into a uniform 64-bit value, for integer
// ranges wider than 32 bits.
func (p *pcg32) next64() uint64 {
	hi := uint64(p.next())
	lo := uint64(p.next())
	return hi<<32 | lo
}

// float64 returns a uniform sample in [0, 1) with 32 bits of resolution.
func (p *pcg32) float64() float64 {
	return float64(p.next()) / (1 << 32)
}
