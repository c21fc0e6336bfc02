package layers

import "github.com/chorus-fhe/ppcnn/fhe"

// BatchNormalization implements spec §4.3's BatchNormalization: per-channel
// (or, after Flatten, per-unit) affine transform multiply-plain by Weights
// then add-plain by Biases, where Weights[i] = gamma_i/sqrt(var_i+eps) and
// Biases[i] = beta_i - Weights[i]*mean_i (eps = 0.001, folded in at compile
// time). Consumes one level. Only emitted when the plan runs without
// FuseConvBN, or for a BatchNormalization the compiler could not fuse
// (not immediately preceded by Conv2D/Dense).
type BatchNormalization struct {
	LayerName string

	Weights []fhe.Plaintext
	Biases  []fhe.Plaintext
}

func (b *BatchNormalization) Kind() Kind   { return KindBatchNormalization }
func (b *BatchNormalization) Name() string { return b.LayerName }

// ForwardT3 applies the per-channel transform across a rank-3 tensor.
func (b *BatchNormalization) ForwardT3(ctx Ctx, in Tensor3) (Tensor3, error) {
	eng := ctx.Engine
	out := NewTensor3(in.H, in.W, in.C)
	for h := 0; h < in.H; h++ {
		for w := 0; w < in.W; w++ {
			for c := 0; c < in.C; c++ {
				v, err := eng.MultiplyPlain(in.At(h, w, c), b.Weights[c])
				if err != nil {
					return Tensor3{}, err
				}
				v, err = eng.RescaleToNext(v)
				if err != nil {
					return Tensor3{}, err
				}
				v = eng.Renormalize(v)
				v, err = eng.AddPlain(v, b.Biases[c])
				if err != nil {
					return Tensor3{}, err
				}
				out.Set(h, w, c, v)
			}
		}
	}
	return out, nil
}

// ForwardT1 applies the per-unit transform across a rank-1 vector, used
// when a BatchNormalization follows a Dense layer.
func (b *BatchNormalization) ForwardT1(ctx Ctx, in Tensor1) (Tensor1, error) {
	eng := ctx.Engine
	out := make(Tensor1, len(in))
	for i, ct := range in {
		v, err := eng.MultiplyPlain(ct, b.Weights[i])
		if err != nil {
			return nil, err
		}
		v, err = eng.RescaleToNext(v)
		if err != nil {
			return nil, err
		}
		v = eng.Renormalize(v)
		v, err = eng.AddPlain(v, b.Biases[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
