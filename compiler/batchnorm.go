package compiler

import (
	"math"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/chorus-fhe/ppcnn/model"
	"github.com/chorus-fhe/ppcnn/plan"
)

// batchNormEps is BatchNormalization's variance epsilon (spec §4.3).
const batchNormEps = 0.001

func onesFloat64(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// batchNormParams derives the per-channel weight and bias a trained
// BatchNormalization layer reduces to: w = gamma/sqrt(var+eps),
// b = beta - w*mean (spec §4.3).
func batchNormParams(weights model.WeightStore, layerName string, n int) (w, b []float64, err error) {
	beta, err := weights.Read(layerName, model.TensorBeta)
	if err != nil {
		return nil, nil, err
	}
	gamma, err := weights.Read(layerName, model.TensorGamma)
	if err != nil {
		return nil, nil, err
	}
	mean, err := weights.Read(layerName, model.TensorMovingMean)
	if err != nil {
		return nil, nil, err
	}
	variance, err := weights.Read(layerName, model.TensorMovingVariance)
	if err != nil {
		return nil, nil, err
	}

	w = make([]float64, n)
	b = make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = float64(gamma.Data[i]) / math.Sqrt(float64(variance.Data[i])+batchNormEps)
		b[i] = float64(beta.Data[i]) - w[i]*float64(mean.Data[i])
	}
	return w, b, nil
}

// batchNormFoldedParams derives a BatchNormalization's per-channel
// weight and folds it with the preceding Conv2D/Dense's bias, per spec
// §4.3's fusion rule: bias = w_bn*b_conv + b_bn.
func batchNormFoldedParams(weights model.WeightStore, bnLayerName string, n int, convBias []float64) (wBN, foldedBias []float64, err error) {
	wBN, bBN, err := batchNormParams(weights, bnLayerName, n)
	if err != nil {
		return nil, nil, err
	}
	foldedBias = make([]float64, n)
	for i := 0; i < n; i++ {
		foldedBias[i] = wBN[i]*convBias[i] + bBN[i]
	}
	return wBN, foldedBias, nil
}

func (c *Compiler) buildBatchNormalization(entry model.Entry, cur shape, weights model.WeightStore, st plan.State) (layers.Node, shape, plan.State, error) {
	n := cur.C
	if cur.Flat {
		n = cur.Units
	}
	foldingValue, st2 := st.FoldingValue()

	w, b, err := batchNormParams(weights, entry.Config.Name, n)
	if err != nil {
		return nil, shape{}, st, err
	}

	weightsPt := make([]fhe.Plaintext, n)
	biasesPt := make([]fhe.Plaintext, n)
	for i := 0; i < n; i++ {
		wv := roundWeight(w[i]*foldingValue, st)
		pt, err := encodeAt(c.Engine, wv, st.ConsumedLevel)
		if err != nil {
			return nil, shape{}, st, err
		}
		weightsPt[i] = pt

		bv := b[i]
		pt, err = encodeAt(c.Engine, bv, st.ConsumedLevel+1)
		if err != nil {
			return nil, shape{}, st, err
		}
		biasesPt[i] = pt
	}

	node := &layers.BatchNormalization{LayerName: entry.Config.Name, Weights: weightsPt, Biases: biasesPt}
	return node, cur, st2.WithConsumed(1), nil
}
