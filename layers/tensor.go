// Package layers implements the seven homomorphic layer operators (spec
// §4.3): Conv2D, AveragePooling2D, BatchNormalization, Dense, Activation,
// Flatten and GlobalAveragePooling2D, plus the ConvFusedBN/DenseFusedBN
// fused variants the compiler emits under FuseConvBN. Every operator is a
// tagged variant — one Go type per kind — dispatched by the executor with a
// type switch rather than through a base-class virtual call and a downcast, per
// the DESIGN NOTES ("Layer polymorphism").
package layers

import "github.com/chorus-fhe/ppcnn/fhe"

// Tensor3 is the executor's rank-3 state slot: an H×W×C grid of
// ciphertexts, stored row-major in (h, w, c) order.
type Tensor3 struct {
	H, W, C int
	Data    []fhe.Ciphertext
}

// NewTensor3 allocates a zero-valued Tensor3 of the given shape.
func NewTensor3(h, w, c int) Tensor3 {
	return Tensor3{H: h, W: w, C: c, Data: make([]fhe.Ciphertext, h*w*c)}
}

func (t Tensor3) index(h, w, c int) int { return (h*t.W+w)*t.C + c }

// At returns the ciphertext at (h, w, c).
func (t Tensor3) At(h, w, c int) fhe.Ciphertext { return t.Data[t.index(h, w, c)] }

// Set stores the ciphertext at (h, w, c).
func (t Tensor3) Set(h, w, c int, v fhe.Ciphertext) { t.Data[t.index(h, w, c)] = v }

// InRange reports whether (h, w) is within the tensor's spatial bounds.
func (t Tensor3) InRange(h, w int) bool {
	return h >= 0 && h < t.H && w >= 0 && w < t.W
}

// Flatten reshapes the tensor into a length H*W*C vector, in row-major
// (h, w, c) order (spec §4.3, Flatten).
func (t Tensor3) Flatten() Tensor1 {
	out := make(Tensor1, len(t.Data))
	copy(out, t.Data)
	return out
}

// Tensor1 is the executor's rank-1 state slot: a flat vector of
// ciphertexts, one per unit or per channel.
type Tensor1 []fhe.Ciphertext
