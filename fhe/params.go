package fhe

import "fmt"

// SchemeTag identifies the approximate-arithmetic scheme a Parameters value
// describes. The engine in this package only implements SchemeCKKS, but the
// tag travels with a KeyBundle so a server can reject a query whose
// parameters name a scheme it was not built for (ppcnnerr.ErrSchemeMismatch).
type SchemeTag string

// SchemeCKKS is the only scheme tag the shipped Engine accepts.
const SchemeCKKS SchemeTag = "CKKS"

// Parameters describes the client's encryption parameters (spec §3,
// EncryptionParameters): a scheme tag, the ring degree, and an ordered
// coefficient-modulus chain whose head and tail primes are large and whose
// interior primes are small and equal-sized. The interior-prime count is
// the level budget: the maximum multiplicative depth a plan compiled
// against these Parameters may consume.
type Parameters struct {
	Scheme     SchemeTag
	LogDegree  int       // polynomial degree is 1<<LogDegree
	ModulusLog []int     // bit-sizes of the modulus chain, head to tail
	Scale      float64   // canonical nominal scale (scale_param)
}

// Degree returns the polynomial ring degree.
func (p Parameters) Degree() int { return 1 << p.LogDegree }

// SlotCount returns the number of SIMD slots a Ciphertext under these
// Parameters packs: degree/2.
func (p Parameters) SlotCount() int { return p.Degree() / 2 }

// Level returns the level budget: the number of interior (non-head,
// non-tail) primes in the modulus chain.
func (p Parameters) Level() int {
	if len(p.ModulusLog) <= 2 {
		return 0
	}
	return len(p.ModulusLog) - 2
}

// NewModulusChainProfile builds the modulus-chain bit-size profile spec §6
// fixes for this system: head and tail primes at 50 bits, `level` interior
// primes at 30 bits each. This is the only profile the reference Engine
// supports, so RoundingEpsilon below is likewise fixed rather than derived.
func NewModulusChainProfile(level int) []int {
	if level < 0 {
		level = 0
	}
	chain := make([]int, 0, level+2)
	chain = append(chain, 50)
	for i := 0; i < level; i++ {
		chain = append(chain, 30)
	}
	chain = append(chain, 50)
	return chain
}

// NewCKKSParameters builds the Parameters for a level-`level` CKKS instance
// at the canonical scale for this system's modulus-chain profile: 2^30,
// matching the 30-bit interior primes (spec §6).
func NewCKKSParameters(logDegree, level int) Parameters {
	return Parameters{
		Scheme:     SchemeCKKS,
		LogDegree:  logDegree,
		ModulusLog: NewModulusChainProfile(level),
		Scale:      float64(uint64(1) << 30),
	}
}

// RoundingEpsilon is the per-parameter epsilon below which a folded weight
// is rounded away from zero before encoding, to avoid encoding underflow
// (spec §4.4). It is fixed to 1e-7 for this system's modulus-chain profile.
const RoundingEpsilon = 1e-7

func (p Parameters) String() string {
	return fmt.Sprintf("%s(logN=%d, level=%d, scale=2^%d)", p.Scheme, p.LogDegree, p.Level(), log2(p.Scale))
}

func log2(x float64) int {
	n := 0
	for x >= 2 {
		x /= 2
		n++
	}
	return n
}
