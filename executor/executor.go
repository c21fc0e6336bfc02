// Package executor implements the Forward Executor (spec §4.5): it runs a
// compiled Network Plan's operator nodes against an input tensor, tracking
// the rank-3/rank-1 state transition described in the DESIGN NOTES
// ("Layer polymorphism") as an explicit mode flag rather than a downcast.
package executor

import (
	"fmt"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/chorus-fhe/ppcnn/ppcnnerr"
)

// Executor runs a compiled plan against one Engine and RelinearizationKey.
type Executor struct {
	Engine fhe.Engine
	Relin  fhe.RelinearizationKey
}

// New returns an Executor evaluating against eng, relinearizing with relin.
func New(eng fhe.Engine, relin fhe.RelinearizationKey) *Executor {
	return &Executor{Engine: eng, Relin: relin}
}

// Run executes nodes against the input tensor in3. It returns the final
// rank-1 vector (spec §4.5: "Result on exit is T1").
func (e *Executor) Run(nodes []layers.Node, in3 layers.Tensor3) (layers.Tensor1, error) {
	ctx := layers.Ctx{Engine: e.Engine, Relin: e.Relin}

	t3 := in3
	var t1 layers.Tensor1
	mode3 := true

	for _, node := range nodes {
		var err error
		switch n := node.(type) {
		case *layers.Conv2D:
			if !mode3 {
				return nil, stateErr(node)
			}
			t3, err = n.Forward(ctx, t3)
		case *layers.ConvFusedBN:
			if !mode3 {
				return nil, stateErr(node)
			}
			t3, err = n.Forward(ctx, t3)
		case *layers.AveragePooling2D:
			if !mode3 {
				return nil, stateErr(node)
			}
			t3, err = n.Forward(ctx, t3)
		case *layers.BatchNormalization:
			if mode3 {
				t3, err = n.ForwardT3(ctx, t3)
			} else {
				t1, err = n.ForwardT1(ctx, t1)
			}
		case *layers.Activation:
			if mode3 {
				t3, err = forwardActivationT3(ctx, n, t3)
			} else {
				t1, err = forwardActivationT1(ctx, n, t1)
			}
		case *layers.Flatten:
			if !mode3 {
				return nil, stateErr(node)
			}
			t1 = n.Forward(t3)
			mode3 = false
		case *layers.GlobalAveragePooling2D:
			if !mode3 {
				return nil, stateErr(node)
			}
			t1, err = n.Forward(ctx, t3)
			mode3 = false
		case *layers.Dense:
			if mode3 {
				return nil, stateErr(node)
			}
			t1, err = n.Forward(ctx, t1)
		case *layers.DenseFusedBN:
			if mode3 {
				return nil, stateErr(node)
			}
			t1, err = n.Forward(ctx, t1)
		default:
			return nil, fmt.Errorf("node %q: %w", node.Name(), ppcnnerr.ErrUnknownLayer)
		}
		if err != nil {
			return nil, fmt.Errorf("node %q (%s): %w", node.Name(), node.Kind(), err)
		}
	}

	if mode3 {
		return nil, fmt.Errorf("plan never reached rank-1 output: %w", ppcnnerr.ErrShapeMismatch)
	}
	return t1, nil
}

func stateErr(node layers.Node) error {
	return fmt.Errorf("node %q (%s) ran against the wrong tensor rank: %w", node.Name(), node.Kind(), ppcnnerr.ErrShapeMismatch)
}

func forwardActivationT3(ctx layers.Ctx, n *layers.Activation, t3 layers.Tensor3) (layers.Tensor3, error) {
	out := layers.NewTensor3(t3.H, t3.W, t3.C)
	for h := 0; h < t3.H; h++ {
		for w := 0; w < t3.W; w++ {
			for c := 0; c < t3.C; c++ {
				v, err := n.Forward(ctx, t3.At(h, w, c))
				if err != nil {
					return layers.Tensor3{}, err
				}
				out.Set(h, w, c, v)
			}
		}
	}
	return out, nil
}

func forwardActivationT1(ctx layers.Ctx, n *layers.Activation, t1 layers.Tensor1) (layers.Tensor1, error) {
	out := make(layers.Tensor1, len(t1))
	for i, ct := range t1 {
		v, err := n.Forward(ctx, ct)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
