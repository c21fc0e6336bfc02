package executor

import (
	"testing"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t      *testing.T
	params fhe.Parameters
	engine fhe.Engine
	sk     fhe.SecretKey
	pk     fhe.PublicKey
	rlk    fhe.RelinearizationKey
}

func newFixture(t *testing.T, level int) *fixture {
	params := fhe.NewCKKSParameters(4, level)
	eng := fhe.NewEngine(params)
	gen := fhe.NewKeyGenerator()
	sk, pk, err := gen.GenKeyPair()
	require.NoError(t, err)
	rlk, err := gen.GenRelinearizationKey(sk)
	require.NoError(t, err)
	return &fixture{t: t, params: params, engine: eng, sk: sk, pk: pk, rlk: rlk}
}

func (f *fixture) encrypt(v float64) fhe.Ciphertext {
	pt, err := f.engine.EncodeScalar(v, f.params.Scale)
	require.NoError(f.t, err)
	ct, err := f.engine.Encrypt(pt, f.pk)
	require.NoError(f.t, err)
	return ct
}

func (f *fixture) encodeAt(v float64, switches int) fhe.Plaintext {
	pt, err := f.engine.EncodeScalar(v, f.params.Scale)
	require.NoError(f.t, err)
	for i := 0; i < switches; i++ {
		pt, err = f.engine.ModSwitchPlaintextToNext(pt)
		require.NoError(f.t, err)
	}
	return pt
}

func (f *fixture) decrypt(ct fhe.Ciphertext) float64 {
	pt, err := f.engine.Decrypt(ct, f.sk)
	require.NoError(f.t, err)
	values, err := f.engine.Decode(pt)
	require.NoError(f.t, err)
	return values[0]
}

func TestRunConvActivationFlattenDense(t *testing.T) {
	f := newFixture(t, 6)

	in := layers.NewTensor3(1, 1, 1)
	in.Data[0] = f.encrypt(3)

	conv := &layers.Conv2D{
		LayerName: "conv", InH: 1, InW: 1, InC: 1, OutH: 1, OutW: 1,
		FilterH: 1, FilterW: 1, OutC: 1, StrideH: 1, StrideW: 1, Padding: layers.PaddingValid,
		Filters: [][][][]fhe.Plaintext{{{{f.encodeAt(2, 0)}}}},
		Biases:  []fhe.Plaintext{f.encodeAt(1, 1)},
	}
	act, err := layers.NewActivation(f.engine, "act", layers.VariantSquare, false, 0)
	require.NoError(t, err)
	flatten := &layers.Flatten{LayerName: "flatten"}
	dense := &layers.Dense{
		LayerName: "dense", InUnits: 1, OutUnits: 1,
		Weights: [][]fhe.Plaintext{{f.encodeAt(1, 2)}},
		Biases:  []fhe.Plaintext{f.encodeAt(0, 3)},
	}

	nodes := []layers.Node{conv, act, flatten, dense}
	out, err := New(f.engine, f.rlk).Run(nodes, in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	want := (2*3.0 + 1) * (2*3.0 + 1)
	require.InDelta(t, want, f.decrypt(out[0]), 1e-4)
}

func TestRunRejectsDenseBeforeFlatten(t *testing.T) {
	f := newFixture(t, 4)
	in := layers.NewTensor3(1, 1, 1)
	in.Data[0] = f.encrypt(1)

	dense := &layers.Dense{
		LayerName: "dense", InUnits: 1, OutUnits: 1,
		Weights: [][]fhe.Plaintext{{f.encodeAt(1, 0)}},
		Biases:  []fhe.Plaintext{f.encodeAt(0, 0)},
	}

	_, err := New(f.engine, f.rlk).Run([]layers.Node{dense}, in)
	require.Error(t, err)
}

func TestRunRejectsConv2DAfterFlatten(t *testing.T) {
	f := newFixture(t, 4)
	in := layers.NewTensor3(1, 1, 1)
	in.Data[0] = f.encrypt(1)

	flatten := &layers.Flatten{LayerName: "flatten"}
	conv := &layers.Conv2D{LayerName: "conv"}

	_, err := New(f.engine, f.rlk).Run([]layers.Node{flatten, conv}, in)
	require.Error(t, err)
}

func TestRunErrorsWhenNeverReachingRankOne(t *testing.T) {
	f := newFixture(t, 4)
	in := layers.NewTensor3(1, 1, 1)
	in.Data[0] = f.encrypt(1)

	act, err := layers.NewActivation(f.engine, "act", layers.VariantSquare, false, 0)
	require.NoError(t, err)

	_, err = New(f.engine, f.rlk).Run([]layers.Node{act}, in)
	require.Error(t, err)
}
