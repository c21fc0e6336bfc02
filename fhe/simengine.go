package fhe

import (
	"crypto/rand"
	"encoding/binary"
	"math"

	"github.com/chorus-fhe/ppcnn/ppcnnerr"
)

// ckksCiphertext and ckksPlaintext are the concrete operand representations
// behind the reference Engine. The slot vector is carried in the clear: the
// reference engine models the LEVEL and SCALE bookkeeping of a leveled
// CKKS-style scheme faithfully (every multiply consumes a level, every
// rescale restores the scale invariant, mod-switch trims the chain), but
// does not implement the underlying lattice arithmetic or ciphertext
// masking — that primitive is explicitly out of this core's scope (spec
// §1, §4.1) and is swapped out, not reimplemented, in a production
// deployment. Everything above the fhe package interacts with these values
// exclusively through the Ciphertext/Plaintext interfaces, so the swap is
// transparent.
type ckksCiphertext struct {
	slots  []complex128
	level  int
	scale  float64
	degree int // 1 = linear, 2 = freshly squared and not yet relinearized
	keyID  int64
}

func (c *ckksCiphertext) Level() int      { return c.level }
func (c *ckksCiphertext) Scale() float64  { return c.scale }

type ckksPlaintext struct {
	slots []complex128
	level int
	scale float64
}

func (p *ckksPlaintext) Level() int     { return p.level }
func (p *ckksPlaintext) Scale() float64 { return p.scale }

type ckksSecretKey struct{ id int64 }
type ckksPublicKey struct{ id int64 }
type ckksRelinKey struct{ id int64 }

func (k ckksSecretKey) KeyID() int64         { return k.id }
func (k ckksPublicKey) KeyID() int64         { return k.id }
func (k ckksRelinKey) KeyID() int64          { return k.id }

// Engine is the reference CKKS-style implementation of the FHE Capability
// Interface, parameterized by Parameters. One Engine is shared by every
// worker and is stateless beyond its Parameters, so it is safe for
// concurrent use.
type ckksEngine struct {
	params Parameters
}

// NewEngine constructs the reference Engine for the given Parameters.
func NewEngine(params Parameters) Engine {
	return &ckksEngine{params: params}
}

func (e *ckksEngine) SlotCount() int    { return e.params.SlotCount() }
func (e *ckksEngine) ScaleParam() float64 { return e.params.Scale }
func (e *ckksEngine) TopLevel() int     { return e.params.Level() }

func (e *ckksEngine) EncodeScalar(value float64, scale float64) (Plaintext, error) {
	slots := make([]complex128, e.SlotCount())
	for i := range slots {
		slots[i] = complex(value, 0)
	}
	return &ckksPlaintext{slots: slots, level: e.params.Level(), scale: scale}, nil
}

func (e *ckksEngine) EncodeVector(values []float64, scale float64) (Plaintext, error) {
	slots := make([]complex128, e.SlotCount())
	for i := range slots {
		if i < len(values) {
			slots[i] = complex(values[i], 0)
		}
	}
	return &ckksPlaintext{slots: slots, level: e.params.Level(), scale: scale}, nil
}

func (e *ckksEngine) Encrypt(pt Plaintext, pk PublicKey) (Ciphertext, error) {
	p, ok := pt.(*ckksPlaintext)
	if !ok {
		return nil, wrap("encrypt", ppcnnerr.ErrSchemeMismatch)
	}
	slots := make([]complex128, len(p.slots))
	copy(slots, p.slots)
	return &ckksCiphertext{slots: slots, level: p.level, scale: p.scale, degree: 1, keyID: pk.KeyID()}, nil
}

func (e *ckksEngine) Decrypt(ct Ciphertext, sk SecretKey) (Plaintext, error) {
	c, ok := ct.(*ckksCiphertext)
	if !ok {
		return nil, wrap("decrypt", ppcnnerr.ErrSchemeMismatch)
	}
	if c.keyID != sk.KeyID() {
		return nil, wrap("decrypt", ppcnnerr.ErrSchemeMismatch)
	}
	slots := make([]complex128, len(c.slots))
	copy(slots, c.slots)
	return &ckksPlaintext{slots: slots, level: c.level, scale: c.scale}, nil
}

func (e *ckksEngine) Decode(pt Plaintext) ([]float64, error) {
	p, ok := pt.(*ckksPlaintext)
	if !ok {
		return nil, wrap("decode", ppcnnerr.ErrSchemeMismatch)
	}
	out := make([]float64, len(p.slots))
	for i, s := range p.slots {
		out[i] = real(s)
	}
	return out, nil
}

func (e *ckksEngine) ModSwitchPlaintextToNext(pt Plaintext) (Plaintext, error) {
	p, ok := pt.(*ckksPlaintext)
	if !ok {
		return nil, wrap("mod_switch_to_next", ppcnnerr.ErrSchemeMismatch)
	}
	if p.level <= 0 {
		return nil, wrap("mod_switch_to_next", ppcnnerr.ErrLevelExhausted)
	}
	out := *p
	out.level--
	return &out, nil
}

func (e *ckksEngine) ModSwitchCiphertextToNext(ct Ciphertext) (Ciphertext, error) {
	c, ok := ct.(*ckksCiphertext)
	if !ok {
		return nil, wrap("mod_switch_to_next", ppcnnerr.ErrSchemeMismatch)
	}
	if c.level <= 0 {
		return nil, wrap("mod_switch_to_next", ppcnnerr.ErrLevelExhausted)
	}
	out := *c
	out.level--
	return &out, nil
}

func (e *ckksEngine) Square(ct Ciphertext) (Ciphertext, error) {
	c, ok := ct.(*ckksCiphertext)
	if !ok {
		return nil, wrap("square", ppcnnerr.ErrSchemeMismatch)
	}
	if c.level <= 0 {
		return nil, wrap("square", ppcnnerr.ErrLevelExhausted)
	}
	slots := make([]complex128, len(c.slots))
	for i, s := range c.slots {
		slots[i] = s * s
	}
	return &ckksCiphertext{slots: slots, level: c.level, scale: c.scale * c.scale, degree: 2, keyID: c.keyID}, nil
}

func (e *ckksEngine) MultiplyPlain(ct Ciphertext, pt Plaintext) (Ciphertext, error) {
	c, ok := ct.(*ckksCiphertext)
	if !ok {
		return nil, wrap("multiply_plain", ppcnnerr.ErrSchemeMismatch)
	}
	p, ok := pt.(*ckksPlaintext)
	if !ok {
		return nil, wrap("multiply_plain", ppcnnerr.ErrSchemeMismatch)
	}
	if c.level != p.level {
		return nil, wrap("multiply_plain", ppcnnerr.ErrSchemeMismatch)
	}
	if c.level <= 0 {
		return nil, wrap("multiply_plain", ppcnnerr.ErrLevelExhausted)
	}
	slots := make([]complex128, len(c.slots))
	for i := range slots {
		slots[i] = c.slots[i] * p.slots[i]
	}
	return &ckksCiphertext{slots: slots, level: c.level, scale: c.scale * p.scale, degree: c.degree, keyID: c.keyID}, nil
}

func (e *ckksEngine) Add(a, b Ciphertext) (Ciphertext, error) {
	ca, ok := a.(*ckksCiphertext)
	if !ok {
		return nil, wrap("add", ppcnnerr.ErrSchemeMismatch)
	}
	cb, ok := b.(*ckksCiphertext)
	if !ok {
		return nil, wrap("add", ppcnnerr.ErrSchemeMismatch)
	}
	if ca.level != cb.level {
		return nil, wrap("add", ppcnnerr.ErrSchemeMismatch)
	}
	if !scalesAgree(ca.scale, cb.scale) {
		return nil, wrap("add", ppcnnerr.ErrScaleMismatch)
	}
	slots := make([]complex128, len(ca.slots))
	for i := range slots {
		slots[i] = ca.slots[i] + cb.slots[i]
	}
	return &ckksCiphertext{slots: slots, level: ca.level, scale: ca.scale, degree: ca.degree, keyID: ca.keyID}, nil
}

func (e *ckksEngine) AddPlain(ct Ciphertext, pt Plaintext) (Ciphertext, error) {
	c, ok := ct.(*ckksCiphertext)
	if !ok {
		return nil, wrap("add_plain", ppcnnerr.ErrSchemeMismatch)
	}
	p, ok := pt.(*ckksPlaintext)
	if !ok {
		return nil, wrap("add_plain", ppcnnerr.ErrSchemeMismatch)
	}
	if c.level != p.level {
		return nil, wrap("add_plain", ppcnnerr.ErrSchemeMismatch)
	}
	if !scalesAgree(c.scale, p.scale) {
		return nil, wrap("add_plain", ppcnnerr.ErrScaleMismatch)
	}
	slots := make([]complex128, len(c.slots))
	for i := range slots {
		slots[i] = c.slots[i] + p.slots[i]
	}
	return &ckksCiphertext{slots: slots, level: c.level, scale: c.scale, degree: c.degree, keyID: c.keyID}, nil
}

func (e *ckksEngine) Relinearize(ct Ciphertext, rlk RelinearizationKey) (Ciphertext, error) {
	c, ok := ct.(*ckksCiphertext)
	if !ok {
		return nil, wrap("relinearize", ppcnnerr.ErrSchemeMismatch)
	}
	if c.keyID != rlk.KeyID() {
		return nil, wrap("relinearize", ppcnnerr.ErrSchemeMismatch)
	}
	out := *c
	out.degree = 1
	return &out, nil
}

func (e *ckksEngine) RescaleToNext(ct Ciphertext) (Ciphertext, error) {
	c, ok := ct.(*ckksCiphertext)
	if !ok {
		return nil, wrap("rescale_to_next", ppcnnerr.ErrSchemeMismatch)
	}
	if c.level <= 0 {
		return nil, wrap("rescale_to_next", ppcnnerr.ErrLevelExhausted)
	}
	out := *c
	out.level--
	out.scale = c.scale / e.params.Scale
	return &out, nil
}

func (e *ckksEngine) Renormalize(ct Ciphertext) Ciphertext {
	c := ct.(*ckksCiphertext)
	out := *c
	out.scale = e.params.Scale
	return &out
}

// scalesAgree tolerates the floating-point drift a real rescale introduces;
// the reference engine's exact division makes this mostly academic, but the
// tolerance matches the discipline spec §4.1 describes for a real scheme.
func scalesAgree(a, b float64) bool {
	if a == 0 || b == 0 {
		return a == b
	}
	ratio := a / b
	return math.Abs(ratio-1) < 1e-6
}

// keyGenerator is the reference KeyGenerator: it mints a fresh random key-id
// per call and binds the secret/public/relin keys to it. It performs no
// lattice sampling — key material genuinely capable of encrypting/decrypting
// belongs to the excluded FHE primitive layer (spec §1).
type keyGenerator struct{}

// NewKeyGenerator returns the reference KeyGenerator.
func NewKeyGenerator() KeyGenerator { return keyGenerator{} }

func (keyGenerator) GenKeyPair() (SecretKey, PublicKey, error) {
	id, err := randInt64()
	if err != nil {
		return nil, nil, err
	}
	return ckksSecretKey{id: id}, ckksPublicKey{id: id}, nil
}

func (keyGenerator) GenRelinearizationKey(sk SecretKey) (RelinearizationKey, error) {
	return ckksRelinKey{id: sk.KeyID()}, nil
}

func randInt64() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(buf[:]) >> 1)
	return v, nil
}
