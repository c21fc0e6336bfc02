// Package compiler implements the Network Compiler (spec §4.4): it walks a
// topology descriptor and a trained-weight store and emits an ordered list
// of layer Nodes ready for the Forward Executor, applying whichever
// optimizations the plan.Options request.
package compiler

import (
	"fmt"
	"math"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/chorus-fhe/ppcnn/model"
	"github.com/chorus-fhe/ppcnn/plan"
	"github.com/chorus-fhe/ppcnn/ppcnnerr"
)

// Compiler builds Network Plans against one Engine.
type Compiler struct {
	Engine fhe.Engine
}

// New returns a Compiler evaluating against eng.
func New(eng fhe.Engine) *Compiler {
	return &Compiler{Engine: eng}
}

// shape tracks the running tensor shape through compilation: either a
// rank-3 H×W×C shape, or (after Flatten/GlobalAveragePooling2D) a rank-1
// Units shape.
type shape struct {
	H, W, C int
	Flat    bool
	Units   int
}

func shapeFromBatchInput(dims []int) (h, w, c int) {
	n := len(dims)
	return dims[n-3], dims[n-2], dims[n-1]
}

// Compile builds the ordered operator Plan for desc against weights, under
// opts. It returns ppcnnerr.ErrUnknownLayer for a descriptor entry naming a
// class this compiler does not implement, and ppcnnerr.ErrLevelExhausted
// if the plan would consume more levels than eng's top level affords.
func (c *Compiler) Compile(desc *model.Descriptor, weights model.WeightStore, opts plan.Options) (*Plan, error) {
	entries := desc.Config
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty topology descriptor: %w", ppcnnerr.ErrIO)
	}

	cur := shape{}
	if len(entries[0].Config.BatchInputShape) >= 3 {
		cur.H, cur.W, cur.C = shapeFromBatchInput(entries[0].Config.BatchInputShape)
	}

	st := plan.NewState(opts)
	p := &Plan{}

	for i := 0; i < len(entries); i++ {
		entry := entries[i]
		before := st.ConsumedLevel

		if st.Flags.FuseConvBN && i+1 < len(entries) && entries[i+1].ClassName == model.ClassBatchNormalization &&
			(entry.ClassName == model.ClassConv2D || entry.ClassName == model.ClassDense) {
			node, nextShape, nextState, err := c.buildFused(entry, entries[i+1], cur, weights, st)
			if err != nil {
				return nil, err
			}
			p.Nodes = append(p.Nodes, node)
			p.levels = append(p.levels, nodeLevels{before: before, after: nextState.ConsumedLevel})
			cur, st = nextShape, nextState
			i++
			continue
		}

		node, nextShape, nextState, err := c.buildOne(entry, cur, weights, st)
		if err != nil {
			return nil, err
		}
		p.Nodes = append(p.Nodes, node)
		p.levels = append(p.levels, nodeLevels{before: before, after: nextState.ConsumedLevel})
		cur, st = nextShape, nextState
	}

	if st.ConsumedLevel > c.Engine.TopLevel() {
		return nil, fmt.Errorf("plan consumes %d levels against a %d-level budget: %w",
			st.ConsumedLevel, c.Engine.TopLevel(), ppcnnerr.ErrLevelExhausted)
	}
	return p, nil
}

func (c *Compiler) buildOne(entry model.Entry, cur shape, weights model.WeightStore, st plan.State) (layers.Node, shape, plan.State, error) {
	switch entry.ClassName {
	case model.ClassConv2D:
		return c.buildConv2D(entry, cur, weights, st)
	case model.ClassAveragePooling2D:
		return c.buildAveragePooling2D(entry, cur, weights, st)
	case model.ClassBatchNormalization:
		return c.buildBatchNormalization(entry, cur, weights, st)
	case model.ClassDense:
		return c.buildDense(entry, cur, weights, st)
	case model.ClassActivation:
		return c.buildActivation(entry, cur, st)
	case model.ClassFlatten:
		return c.buildFlatten(entry, cur, st)
	case model.ClassGlobalAveragePooling2D:
		return c.buildGlobalAveragePooling2D(entry, cur, weights, st)
	default:
		return nil, shape{}, st, fmt.Errorf("class %q: %w", entry.ClassName, ppcnnerr.ErrUnknownLayer)
	}
}

func (c *Compiler) buildFused(conv, bn model.Entry, cur shape, weights model.WeightStore, st plan.State) (layers.Node, shape, plan.State, error) {
	switch conv.ClassName {
	case model.ClassConv2D:
		return c.buildConvFusedBN(conv, bn, cur, weights, st)
	case model.ClassDense:
		return c.buildDenseFusedBN(conv, bn, cur, weights, st)
	default:
		return nil, shape{}, st, fmt.Errorf("class %q cannot fuse with BatchNormalization: %w", conv.ClassName, ppcnnerr.ErrUnknownLayer)
	}
}

// roundWeight applies spec §4.4's underflow-avoidance rule: a folded
// weight whose magnitude is below eps is rounded away from zero to
// eps*sign(w); an exact zero picks +eps, unless opts.RoundZeroWeightsToZero
// selects the alternative documented in SPEC_FULL.md's Open Questions.
func roundWeight(w float64, st plan.State) float64 {
	if math.Abs(w) >= fhe.RoundingEpsilon {
		return w
	}
	if w == 0 {
		if st.Opts.RoundZeroWeightsToZero {
			return 0
		}
		return fhe.RoundingEpsilon
	}
	if w > 0 {
		return fhe.RoundingEpsilon
	}
	return -fhe.RoundingEpsilon
}

// encodeAt encodes value at the engine's canonical scale, then mod-switches
// it down `switches` levels from the top of the chain.
func encodeAt(eng fhe.Engine, value float64, switches int) (fhe.Plaintext, error) {
	pt, err := eng.EncodeScalar(value, eng.ScaleParam())
	if err != nil {
		return nil, err
	}
	for i := 0; i < switches; i++ {
		pt, err = eng.ModSwitchPlaintextToNext(pt)
		if err != nil {
			return nil, err
		}
	}
	return pt, nil
}
