package compiler

import (
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/chorus-fhe/ppcnn/model"
	"github.com/chorus-fhe/ppcnn/plan"
)

func (c *Compiler) buildAveragePooling2D(entry model.Entry, cur shape, weights model.WeightStore, st plan.State) (layers.Node, shape, plan.State, error) {
	cfg := entry.Config
	windowH, windowW := cfg.PoolSize[0], cfg.PoolSize[1]
	strideH, strideW := strideOrDefault(cfg.Strides)
	if cfg.Strides == ([2]int{}) {
		strideH, strideW = windowH, windowW
	}

	outH, _ := layers.ConvOutputShape(cur.H, windowH, strideH, layers.PaddingValid)
	outW, _ := layers.ConvOutputShape(cur.W, windowW, strideW, layers.PaddingValid)

	// spec §4.4's edge case: a pending activation coefficient has no
	// weight store to fold into here, so it folds into this node's own
	// multiplier instead.
	coeffFold, st2 := st.PopPendingCoeff()
	factor := coeffFold / float64(windowH*windowW)

	node := &layers.AveragePooling2D{
		LayerName: cfg.Name,
		InH:       cur.H, InW: cur.W, InC: cur.C,
		OutH: outH, OutW: outW,
		WindowH: windowH, WindowW: windowW,
		StrideH: strideH, StrideW: strideW,
	}

	if st2.Flags.OptimizePooling {
		node.Fold = true
		next := st2.WithPendingPool(factor)
		return node, shape{H: outH, W: outW, C: cur.C}, next, nil
	}

	node.Fold = false
	pt, err := encodeAt(c.Engine, factor, st2.ConsumedLevel)
	if err != nil {
		return nil, shape{}, st, err
	}
	node.Multiplier = pt
	return node, shape{H: outH, W: outW, C: cur.C}, st2.WithConsumed(1), nil
}

func (c *Compiler) buildGlobalAveragePooling2D(entry model.Entry, cur shape, weights model.WeightStore, st plan.State) (layers.Node, shape, plan.State, error) {
	coeffFold, st2 := st.PopPendingCoeff()
	factor := coeffFold / float64(cur.H*cur.W)

	node := &layers.GlobalAveragePooling2D{LayerName: entry.Config.Name, InH: cur.H, InW: cur.W, InC: cur.C}

	// Known anomaly (spec §9 / SPEC_FULL.md Open Questions): GAP folds
	// unconditionally by default, independent of OptimizePooling, matching
	// the original's `if (true || enable_optimize_pooling())`.
	if st2.Opts.AlwaysFoldGlobalPool || st2.Flags.OptimizePooling {
		node.Fold = true
		next := st2.WithPendingPool(factor)
		return node, shape{Flat: true, Units: cur.C}, next, nil
	}

	node.Fold = false
	pt, err := encodeAt(c.Engine, factor, st2.ConsumedLevel)
	if err != nil {
		return nil, shape{}, st, err
	}
	node.Multiplier = pt
	return node, shape{Flat: true, Units: cur.C}, st2.WithConsumed(1), nil
}
