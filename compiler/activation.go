package compiler

import (
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/chorus-fhe/ppcnn/model"
	"github.com/chorus-fhe/ppcnn/plan"
)

func (c *Compiler) buildActivation(entry model.Entry, cur shape, st plan.State) (layers.Node, shape, plan.State, error) {
	variant := entry.Config.Activation
	monic := st.Flags.OptimizeActivation

	node, err := layers.NewActivation(c.Engine, entry.Config.Name, variant, monic, st.ConsumedLevel)
	if err != nil {
		return nil, shape{}, st, err
	}

	cost, err := layers.LevelCost(variant, monic)
	if err != nil {
		return nil, shape{}, st, err
	}
	next := st.WithConsumed(cost)

	if monic {
		coeff, err := layers.HighestDegCoeff(variant)
		if err != nil {
			return nil, shape{}, st, err
		}
		next = next.WithPendingCoeff(coeff)
	}
	return node, cur, next, nil
}

func (c *Compiler) buildFlatten(entry model.Entry, cur shape, st plan.State) (layers.Node, shape, plan.State, error) {
	node := &layers.Flatten{LayerName: entry.Config.Name}
	return node, shape{Flat: true, Units: cur.H * cur.W * cur.C}, st, nil
}
