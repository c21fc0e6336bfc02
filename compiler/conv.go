package compiler

import (
	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/chorus-fhe/ppcnn/model"
	"github.com/chorus-fhe/ppcnn/plan"
)

func strideOrDefault(s [2]int) (int, int) {
	h, w := s[0], s[1]
	if h == 0 {
		h = 1
	}
	if w == 0 {
		w = 1
	}
	return h, w
}

func paddingOrDefault(p string) layers.Padding {
	if layers.Padding(p) == layers.PaddingSame {
		return layers.PaddingSame
	}
	return layers.PaddingValid
}

// kernelAt indexes a Keras-convention kernel tensor (kh, kw, inC, outC),
// row-major, returning the weight for (oc, fh, fw, ic).
func kernelAt(data []float32, fh, fw, ic, oc, kw, inC, outC int) float64 {
	idx := ((fh*kw+fw)*inC+ic)*outC + oc
	return float64(data[idx])
}

func (c *Compiler) buildConv2D(entry model.Entry, cur shape, weights model.WeightStore, st plan.State) (layers.Node, shape, plan.State, error) {
	cfg := entry.Config
	filterH, filterW := cfg.KernelSize[0], cfg.KernelSize[1]
	strideH, strideW := strideOrDefault(cfg.Strides)
	padding := paddingOrDefault(cfg.Padding)
	outC := cfg.Filters

	kernel, err := weights.Read(cfg.Name, model.TensorKernel)
	if err != nil {
		return nil, shape{}, st, err
	}
	bias, err := weights.Read(cfg.Name, model.TensorBias)
	if err != nil {
		return nil, shape{}, st, err
	}

	wBN := onesFloat64(outC)
	biasValues := toFloat64(bias.Data)

	node, outShape, st2, err := buildConvNode(c.Engine, cfg.Name, cur, filterH, filterW, strideH, strideW, padding, outC,
		kernel.Data, biasValues, wBN, st)
	if err != nil {
		return nil, shape{}, st, err
	}
	return node, outShape, st2.WithConsumed(1), nil
}

// buildConvNode is the shared builder behind Conv2D and ConvFusedBN: wBN
// multiplies every filter weight on top of foldingValue, 1.0 for a plain
// Conv2D, the fused BatchNormalization's per-channel scale otherwise;
// biasValues is the final per-channel bias to encode as-is (spec §4.4's
// fused-node weight rule).
func buildConvNode(eng fhe.Engine, name string, cur shape, filterH, filterW, strideH, strideW int, padding layers.Padding,
	outC int, kernelData []float32, biasValues []float64, wBN []float64, st plan.State) (*layers.Conv2D, shape, plan.State, error) {

	foldingValue, st2 := st.FoldingValue()
	outH, padTop := layers.ConvOutputShape(cur.H, filterH, strideH, padding)
	outW, padLeft := layers.ConvOutputShape(cur.W, filterW, strideW, padding)

	filters := make([][][][]fhe.Plaintext, outC)
	for oc := 0; oc < outC; oc++ {
		filters[oc] = make([][][]fhe.Plaintext, filterH)
		for fh := 0; fh < filterH; fh++ {
			filters[oc][fh] = make([][]fhe.Plaintext, filterW)
			for fw := 0; fw < filterW; fw++ {
				filters[oc][fh][fw] = make([]fhe.Plaintext, cur.C)
				for ic := 0; ic < cur.C; ic++ {
					w := kernelAt(kernelData, fh, fw, ic, oc, filterW, cur.C, outC) * foldingValue * wBN[oc]
					w = roundWeight(w, st)
					pt, err := encodeAt(eng, w, st.ConsumedLevel)
					if err != nil {
						return nil, shape{}, st, err
					}
					filters[oc][fh][fw][ic] = pt
				}
			}
		}
	}

	biases := make([]fhe.Plaintext, outC)
	for oc := 0; oc < outC; oc++ {
		pt, err := encodeAt(eng, biasValues[oc], st.ConsumedLevel+1)
		if err != nil {
			return nil, shape{}, st, err
		}
		biases[oc] = pt
	}

	node := &layers.Conv2D{
		LayerName: name,
		InH:       cur.H, InW: cur.W, InC: cur.C,
		OutH: outH, OutW: outW,
		FilterH: filterH, FilterW: filterW, OutC: outC,
		StrideH: strideH, StrideW: strideW,
		Padding: padding, PadTop: padTop, PadLeft: padLeft,
		Filters: filters, Biases: biases,
	}
	return node, shape{H: outH, W: outW, C: outC}, st2, nil
}

func (c *Compiler) buildConvFusedBN(conv, bn model.Entry, cur shape, weights model.WeightStore, st plan.State) (layers.Node, shape, plan.State, error) {
	cfg := conv.Config
	filterH, filterW := cfg.KernelSize[0], cfg.KernelSize[1]
	strideH, strideW := strideOrDefault(cfg.Strides)
	padding := paddingOrDefault(cfg.Padding)
	outC := cfg.Filters

	kernel, err := weights.Read(cfg.Name, model.TensorKernel)
	if err != nil {
		return nil, shape{}, st, err
	}
	bias, err := weights.Read(cfg.Name, model.TensorBias)
	if err != nil {
		return nil, shape{}, st, err
	}
	wBN, biasValues, err := batchNormFoldedParams(weights, bn.Config.Name, outC, toFloat64(bias.Data))
	if err != nil {
		return nil, shape{}, st, err
	}

	base, outShape, st2, err := buildConvNode(c.Engine, cfg.Name, cur, filterH, filterW, strideH, strideW, padding, outC,
		kernel.Data, biasValues, wBN, st)
	if err != nil {
		return nil, shape{}, st, err
	}
	return &layers.ConvFusedBN{Conv2D: *base}, outShape, st2.WithConsumed(1), nil
}
