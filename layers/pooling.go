package layers

import "github.com/chorus-fhe/ppcnn/fhe"

// AveragePooling2D implements spec §4.3's AveragePooling2D. Pooling windows
// never extend past the image edge (padding is always "valid" for
// pooling), so the window-sum loop never reads an out-of-range ciphertext.
//
// When Fold is false the node multiplies the window sum by Multiplier
// (1/(pool_h*pool_w), pre-encoded by the compiler) and rescales, consuming
// one level. When Fold is true (OptPooling) the multiply is deferred to the
// next trainable layer's weights and the node emits the raw window sum,
// consuming no level.
type AveragePooling2D struct {
	LayerName string

	InH, InW, InC    int
	OutH, OutW       int
	WindowH, WindowW int
	StrideH, StrideW int

	Fold       bool
	Multiplier fhe.Plaintext
}

func (p *AveragePooling2D) Kind() Kind   { return KindAveragePooling2D }
func (p *AveragePooling2D) Name() string { return p.LayerName }

func (p *AveragePooling2D) Forward(ctx Ctx, in Tensor3) (Tensor3, error) {
	eng := ctx.Engine
	out := NewTensor3(p.OutH, p.OutW, p.InC)

	for oh := 0; oh < p.OutH; oh++ {
		top := oh * p.StrideH
		for ow := 0; ow < p.OutW; ow++ {
			left := ow * p.StrideW
			for c := 0; c < p.InC; c++ {
				var acc fhe.Ciphertext
				for fh := 0; fh < p.WindowH; fh++ {
					for fw := 0; fw < p.WindowW; fw++ {
						cur := in.At(top+fh, left+fw, c)
						if acc == nil {
							acc = cur
							continue
						}
						var err error
						acc, err = eng.Add(acc, cur)
						if err != nil {
							return Tensor3{}, err
						}
					}
				}
				if !p.Fold {
					var err error
					acc, err = eng.MultiplyPlain(acc, p.Multiplier)
					if err != nil {
						return Tensor3{}, err
					}
					acc, err = eng.RescaleToNext(acc)
					if err != nil {
						return Tensor3{}, err
					}
					acc = eng.Renormalize(acc)
				}
				out.Set(oh, ow, c, acc)
			}
		}
	}
	return out, nil
}

// GlobalAveragePooling2D implements spec §4.3's GlobalAveragePooling2D:
// sums every spatial position per channel into a length-C vector. Fold and
// Multiplier behave as on AveragePooling2D; the compiler sets Fold whenever
// AlwaysFoldGlobalPool is on, not only under OptimizePooling.
type GlobalAveragePooling2D struct {
	LayerName string

	InH, InW, InC int

	Fold       bool
	Multiplier fhe.Plaintext
}

func (p *GlobalAveragePooling2D) Kind() Kind   { return KindGlobalAveragePooling2D }
func (p *GlobalAveragePooling2D) Name() string { return p.LayerName }

func (p *GlobalAveragePooling2D) Forward(ctx Ctx, in Tensor3) (Tensor1, error) {
	eng := ctx.Engine
	out := make(Tensor1, p.InC)

	for c := 0; c < p.InC; c++ {
		var acc fhe.Ciphertext
		for h := 0; h < p.InH; h++ {
			for w := 0; w < p.InW; w++ {
				cur := in.At(h, w, c)
				if acc == nil {
					acc = cur
					continue
				}
				var err error
				acc, err = eng.Add(acc, cur)
				if err != nil {
					return nil, err
				}
			}
		}
		if !p.Fold {
			var err error
			acc, err = eng.MultiplyPlain(acc, p.Multiplier)
			if err != nil {
				return nil, err
			}
			acc, err = eng.RescaleToNext(acc)
			if err != nil {
				return nil, err
			}
			acc = eng.Renormalize(acc)
		}
		out[c] = acc
	}
	return out, nil
}
