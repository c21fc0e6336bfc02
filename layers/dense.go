package layers

import "github.com/chorus-fhe/ppcnn/fhe"

// Dense implements spec §4.3's Dense: a matrix-vector multiply over
// ciphertexts. Weights is indexed [inUnit][outUnit]; Biases has one
// plaintext per output unit. One level consumed.
type Dense struct {
	LayerName string

	InUnits, OutUnits int
	Weights           [][]fhe.Plaintext // [i][o]
	Biases            []fhe.Plaintext   // [o]
}

func (d *Dense) Kind() Kind   { return KindDense }
func (d *Dense) Name() string { return d.LayerName }

func (d *Dense) Forward(ctx Ctx, in Tensor1) (Tensor1, error) {
	eng := ctx.Engine
	out := make(Tensor1, d.OutUnits)
	for o := 0; o < d.OutUnits; o++ {
		var acc fhe.Ciphertext
		for i := 0; i < d.InUnits; i++ {
			prod, err := eng.MultiplyPlain(in[i], d.Weights[i][o])
			if err != nil {
				return nil, err
			}
			if acc == nil {
				acc = prod
			} else {
				acc, err = eng.Add(acc, prod)
				if err != nil {
					return nil, err
				}
			}
		}
		var err error
		acc, err = eng.RescaleToNext(acc)
		if err != nil {
			return nil, err
		}
		acc = eng.Renormalize(acc)
		acc, err = eng.AddPlain(acc, d.Biases[o])
		if err != nil {
			return nil, err
		}
		out[o] = acc
	}
	return out, nil
}

// Flatten implements spec §4.3's Flatten: reshapes an H*W*C tensor into a
// length-H*W*C vector in row-major (h, w, c) order. Consumes no level.
type Flatten struct {
	LayerName string
}

func (f *Flatten) Kind() Kind   { return KindFlatten }
func (f *Flatten) Name() string { return f.LayerName }

func (f *Flatten) Forward(in Tensor3) Tensor1 { return in.Flatten() }
