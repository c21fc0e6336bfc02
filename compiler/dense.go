package compiler

import (
	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/chorus-fhe/ppcnn/model"
	"github.com/chorus-fhe/ppcnn/plan"
)

// denseKernelAt indexes a Keras-convention Dense kernel tensor (inUnits,
// outUnits), row-major.
func denseKernelAt(data []float32, i, o, outUnits int) float64 {
	return float64(data[i*outUnits+o])
}

func (c *Compiler) buildDense(entry model.Entry, cur shape, weights model.WeightStore, st plan.State) (layers.Node, shape, plan.State, error) {
	inUnits := cur.Units
	outUnits := entry.Config.Units

	kernel, err := weights.Read(entry.Config.Name, model.TensorKernel)
	if err != nil {
		return nil, shape{}, st, err
	}
	bias, err := weights.Read(entry.Config.Name, model.TensorBias)
	if err != nil {
		return nil, shape{}, st, err
	}

	node, st2, err := buildDenseNode(c.Engine, entry.Config.Name, inUnits, outUnits, kernel.Data, toFloat64(bias.Data), onesFloat64(outUnits), st)
	if err != nil {
		return nil, shape{}, st, err
	}
	return node, shape{Flat: true, Units: outUnits}, st2.WithConsumed(1), nil
}

// buildDenseNode is the shared builder behind Dense and DenseFusedBN.
func buildDenseNode(eng fhe.Engine, name string, inUnits, outUnits int, kernelData []float32, biasValues, wBN []float64, st plan.State) (*layers.Dense, plan.State, error) {
	foldingValue, st2 := st.FoldingValue()

	weightsPt := make([][]fhe.Plaintext, inUnits)
	for i := 0; i < inUnits; i++ {
		weightsPt[i] = make([]fhe.Plaintext, outUnits)
		for o := 0; o < outUnits; o++ {
			w := denseKernelAt(kernelData, i, o, outUnits) * foldingValue * wBN[o]
			w = roundWeight(w, st)
			pt, err := encodeAt(eng, w, st.ConsumedLevel)
			if err != nil {
				return nil, st, err
			}
			weightsPt[i][o] = pt
		}
	}

	biasesPt := make([]fhe.Plaintext, outUnits)
	for o := 0; o < outUnits; o++ {
		pt, err := encodeAt(eng, biasValues[o], st.ConsumedLevel+1)
		if err != nil {
			return nil, st, err
		}
		biasesPt[o] = pt
	}

	return &layers.Dense{LayerName: name, InUnits: inUnits, OutUnits: outUnits, Weights: weightsPt, Biases: biasesPt}, st2, nil
}

func (c *Compiler) buildDenseFusedBN(dense, bn model.Entry, cur shape, weights model.WeightStore, st plan.State) (layers.Node, shape, plan.State, error) {
	inUnits := cur.Units
	outUnits := dense.Config.Units

	kernel, err := weights.Read(dense.Config.Name, model.TensorKernel)
	if err != nil {
		return nil, shape{}, st, err
	}
	bias, err := weights.Read(dense.Config.Name, model.TensorBias)
	if err != nil {
		return nil, shape{}, st, err
	}
	wBN, biasValues, err := batchNormFoldedParams(weights, bn.Config.Name, outUnits, toFloat64(bias.Data))
	if err != nil {
		return nil, shape{}, st, err
	}

	base, st2, err := buildDenseNode(c.Engine, dense.Config.Name, inUnits, outUnits, kernel.Data, biasValues, wBN, st)
	if err != nil {
		return nil, shape{}, st, err
	}
	return &layers.DenseFusedBN{Dense: *base}, shape{Flat: true, Units: outUnits}, st2.WithConsumed(1), nil
}
