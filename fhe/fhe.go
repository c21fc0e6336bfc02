// Package fhe is the FHE Capability Interface: the abstract contract the
// rest of this module programs against for ciphertext arithmetic. Nothing
// above this package knows how a Ciphertext is represented, how encryption
// is carried out, or which approximate scheme backs it — only that it
// behaves like a leveled, SIMD-packed, CKKS-style scheme: every
// multiplicative step consumes one level, a rescale restores the scale
// invariant, and arithmetic is only valid between operands that agree on
// level and scale.
//
// Swapping the underlying scheme means writing a new Engine, KeyGenerator
// and Parameters implementation; every layer operator, the compiler and the
// executor are written against this package alone.
package fhe

import "github.com/chorus-fhe/ppcnn/ppcnnerr"

// Ciphertext is an opaque encrypted operand. It carries its own level and
// scale so that callers can reason about the level budget without knowing
// the concrete representation.
type Ciphertext interface {
	Level() int
	Scale() float64
}

// Plaintext is an opaque encoded operand — a real value or vector lowered
// to whatever the scheme needs to combine it with a Ciphertext. Like
// Ciphertext, it carries its own level and scale.
type Plaintext interface {
	Level() int
	Scale() float64
}

// PublicKey, SecretKey and RelinearizationKey are opaque key material. A
// SecretKey is only ever handed to Engine.Decrypt and never leaves the
// client process in this system.
type (
	PublicKey             interface{ KeyID() int64 }
	SecretKey              interface{ KeyID() int64 }
	RelinearizationKey     interface{ KeyID() int64 }
)

// Engine is the abstract capability: the set of operations the Layer
// Operators, the Network Compiler and the Forward Executor are allowed to
// invoke. Every method may fail with ppcnnerr.ErrSchemeMismatch,
// ppcnnerr.ErrLevelExhausted or a wrapped arithmetic error.
type Engine interface {
	// EncodeScalar lowers a single real value, broadcast across every slot,
	// at the given scale and the engine's top level.
	EncodeScalar(value float64, scale float64) (Plaintext, error)

	// EncodeVector lowers a real vector, one value per slot (truncated or
	// zero-padded to SlotCount), at the given scale and the engine's top
	// level.
	EncodeVector(values []float64, scale float64) (Plaintext, error)

	// Encrypt produces a Ciphertext from a Plaintext under pk. The result
	// starts at the Plaintext's level and scale.
	Encrypt(pt Plaintext, pk PublicKey) (Ciphertext, error)

	// Decrypt recovers the Plaintext from a Ciphertext under sk. Client-only
	// in the wire protocol; nothing on the server ever calls this.
	Decrypt(ct Ciphertext, sk SecretKey) (Plaintext, error)

	// Decode recovers the real-valued slot vector from a Plaintext.
	// Client-only in the wire protocol.
	Decode(pt Plaintext) ([]float64, error)

	// ModSwitchPlaintextToNext drops one prime from pt's modulus chain,
	// reducing its level by one. It does not change pt's scale.
	ModSwitchPlaintextToNext(pt Plaintext) (Plaintext, error)

	// ModSwitchCiphertextToNext is the Ciphertext analogue of
	// ModSwitchPlaintextToNext.
	ModSwitchCiphertextToNext(ct Ciphertext) (Ciphertext, error)

	// Square computes ct*ct. The result's degree is raised and must be
	// brought back down with Relinearize before any further multiply; its
	// scale is (approximately) ct.Scale()^2 until RescaleToNext is called.
	Square(ct Ciphertext) (Ciphertext, error)

	// MultiplyPlain computes ct*pt. ct and pt must be at the same level.
	MultiplyPlain(ct Ciphertext, pt Plaintext) (Ciphertext, error)

	// Add computes a+b. a and b must be at the same level and scale.
	Add(a, b Ciphertext) (Ciphertext, error)

	// AddPlain computes ct+pt. ct and pt must be at the same level and
	// scale.
	AddPlain(ct Ciphertext, pt Plaintext) (Ciphertext, error)

	// Relinearize reduces ct's degree back to one after a Square, using rlk.
	Relinearize(ct Ciphertext, rlk RelinearizationKey) (Ciphertext, error)

	// RescaleToNext normalizes ct's scale after a multiply and consumes one
	// level. Callers must still explicitly reassign the canonical
	// ScaleParam afterwards — see Renormalize.
	RescaleToNext(ct Ciphertext) (Ciphertext, error)

	// Renormalize reassigns ct's nominal scale to the engine's canonical
	// ScaleParam, the second half of the rescale discipline: after
	// RescaleToNext, resetting the scale this way keeps ciphertexts at
	// matching scales so later additions are valid.
	Renormalize(ct Ciphertext) Ciphertext

	// SlotCount returns the number of SIMD slots a Ciphertext packs
	// (polynomial degree / 2 in a CKKS-style scheme).
	SlotCount() int

	// ScaleParam returns the canonical nominal scale every operator
	// renormalizes to after a rescale.
	ScaleParam() float64

	// TopLevel returns the level a freshly encrypted Ciphertext starts at
	// (the interior-prime count of the modulus chain).
	TopLevel() int
}

// KeyGenerator produces a fresh key triple for a given Parameters.
type KeyGenerator interface {
	GenKeyPair() (SecretKey, PublicKey, error)
	GenRelinearizationKey(sk SecretKey) (RelinearizationKey, error)
}

func wrap(op string, err error) error {
	return &opError{op: op, err: err}
}

type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return "fhe: " + e.op + ": " + e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

var (
	errLevelExhausted = ppcnnerr.ErrLevelExhausted
	errSchemeMismatch = ppcnnerr.ErrSchemeMismatch
	errScaleMismatch  = ppcnnerr.ErrScaleMismatch
)
