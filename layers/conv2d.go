package layers

import "github.com/chorus-fhe/ppcnn/fhe"

// Conv2D implements spec §4.3's Conv2D: a 3D convolution over rank-3
// ciphertext tensors, grounded on the original's conv2d.cpp. Filters is
// indexed [outChannel][filterH][filterW][inChannel]; Biases has one
// plaintext per output channel. Both are pre-encoded and mod-switched by
// the compiler to the level this node executes at.
type Conv2D struct {
	LayerName string

	InH, InW, InC int
	OutH, OutW    int

	FilterH, FilterW, OutC int
	StrideH, StrideW       int
	Padding                Padding
	PadTop, PadLeft        int

	Filters [][][][]fhe.Plaintext // [oc][fh][fw][ic]
	Biases  []fhe.Plaintext       // [oc]
}

func (c *Conv2D) Kind() Kind    { return KindConv2D }
func (c *Conv2D) Name() string  { return c.LayerName }

// Forward computes the convolution over in, returning a new
// OutH×OutW×OutC result. Consumes exactly one level (spec §4.3): every
// output position accumulates its full multiply-plain sum before the
// single rescale + renormalize + bias add.
func (c *Conv2D) Forward(ctx Ctx, in Tensor3) (Tensor3, error) {
	eng := ctx.Engine
	out := NewTensor3(c.OutH, c.OutW, c.OutC)

	for oh := 0; oh < c.OutH; oh++ {
		targetTop := oh*c.StrideH - c.PadTop
		for ow := 0; ow < c.OutW; ow++ {
			targetLeft := ow*c.StrideW - c.PadLeft
			for oc := 0; oc < c.OutC; oc++ {
				var acc fhe.Ciphertext
				for fh := 0; fh < c.FilterH; fh++ {
					ih := targetTop + fh
					if ih < 0 || ih >= c.InH {
						continue
					}
					for fw := 0; fw < c.FilterW; fw++ {
						iw := targetLeft + fw
						if iw < 0 || iw >= c.InW {
							continue
						}
						for ic := 0; ic < c.InC; ic++ {
							prod, err := eng.MultiplyPlain(in.At(ih, iw, ic), c.Filters[oc][fh][fw][ic])
							if err != nil {
								return Tensor3{}, err
							}
							if acc == nil {
								acc = prod
							} else {
								acc, err = eng.Add(acc, prod)
								if err != nil {
									return Tensor3{}, err
								}
							}
						}
					}
				}
				var err error
				acc, err = eng.RescaleToNext(acc)
				if err != nil {
					return Tensor3{}, err
				}
				acc = eng.Renormalize(acc)
				acc, err = eng.AddPlain(acc, c.Biases[oc])
				if err != nil {
					return Tensor3{}, err
				}
				out.Set(oh, ow, oc, acc)
			}
		}
	}
	return out, nil
}
