package compiler

import (
	"strings"
	"testing"

	"github.com/chorus-fhe/ppcnn/executor"
	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/chorus-fhe/ppcnn/model"
	"github.com/chorus-fhe/ppcnn/plan"
	"github.com/stretchr/testify/require"
)

// TestCompileAndRun builds a tiny Conv2D->Activation(square)->Flatten->Dense
// topology and checks the compiled plan's executed output against a
// hand-computed forward pass, exercising compile and execute end to end.
func TestCompileAndRun(t *testing.T) {
	params := fhe.NewCKKSParameters(4, 6)
	engine := fhe.NewEngine(params)
	gen := fhe.NewKeyGenerator()
	sk, pk, err := gen.GenKeyPair()
	require.NoError(t, err)
	rlk, err := gen.GenRelinearizationKey(sk)
	require.NoError(t, err)

	desc := &model.Descriptor{
		Config: []model.Entry{
			{ClassName: model.ClassConv2D, Config: model.LayerConfig{
				Name: "conv1", BatchInputShape: []int{0, 2, 2, 1},
				Filters: 1, KernelSize: [2]int{1, 1}, Strides: [2]int{1, 1}, Padding: "valid",
			}},
			{ClassName: model.ClassActivation, Config: model.LayerConfig{Name: "act1", Activation: layers.VariantSquare}},
			{ClassName: model.ClassFlatten, Config: model.LayerConfig{Name: "flatten"}},
			{ClassName: model.ClassDense, Config: model.LayerConfig{Name: "dense1", Units: 1}},
		},
	}

	weights := model.MapStore{
		"conv1": {
			model.TensorKernel: {Shape: []int{1, 1, 1, 1}, Data: []float32{2}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{1}},
		},
		"dense1": {
			model.TensorKernel: {Shape: []int{4, 1}, Data: []float32{0.25, 0.25, 0.25, 0.25}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{0}},
		},
	}

	p, err := New(engine).Compile(desc, weights, plan.DefaultOptions(plan.OptNone))
	require.NoError(t, err)
	require.Len(t, p.Nodes, 4)
	require.Len(t, strings.Split(strings.TrimRight(p.String(), "\n"), "\n"), 4)

	in := layers.NewTensor3(2, 2, 1)
	values := []float64{1, 2, 3, 4}
	for i, v := range values {
		pt, err := engine.EncodeScalar(v, engine.ScaleParam())
		require.NoError(t, err)
		ct, err := engine.Encrypt(pt, pk)
		require.NoError(t, err)
		in.Data[i] = ct
	}

	out, err := executor.New(engine, rlk).Run(p.Nodes, in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	// conv: 2*v+1, square it, average the 4 results with weight 0.25 each.
	want := 0.0
	for _, v := range values {
		c := 2*v + 1
		want += 0.25 * c * c
	}

	pt, err := engine.Decrypt(out[0], sk)
	require.NoError(t, err)
	got, err := engine.Decode(pt)
	require.NoError(t, err)
	require.InDelta(t, want, got[0], 1e-4)
}

// TestCompileOptNoneAndOptAllAgree exercises spec §8's round-trip law:
// compiling the same multi-layer descriptor under OptNone and under OptAll
// and running both plans against the same encrypted input must decrypt to
// the same answer within tolerance. The network below chains two Dense
// layers after a folded AveragePooling2D specifically so that, if a
// pending pooling fold ever leaked past the layer that absorbed it (rather
// than being cleared), the second Dense would silently apply the same
// divide-by-window-size a second time and this test would catch it.
func TestCompileOptNoneAndOptAllAgree(t *testing.T) {
	params := fhe.NewCKKSParameters(4, 8)
	engine := fhe.NewEngine(params)
	gen := fhe.NewKeyGenerator()
	sk, pk, err := gen.GenKeyPair()
	require.NoError(t, err)
	rlk, err := gen.GenRelinearizationKey(sk)
	require.NoError(t, err)

	desc := &model.Descriptor{
		Config: []model.Entry{
			{ClassName: model.ClassConv2D, Config: model.LayerConfig{
				Name: "conv1", BatchInputShape: []int{0, 2, 2, 1},
				Filters: 1, KernelSize: [2]int{1, 1}, Strides: [2]int{1, 1}, Padding: "valid",
			}},
			{ClassName: model.ClassAveragePooling2D, Config: model.LayerConfig{Name: "pool1", PoolSize: [2]int{2, 2}}},
			{ClassName: model.ClassFlatten, Config: model.LayerConfig{Name: "flatten"}},
			{ClassName: model.ClassDense, Config: model.LayerConfig{Name: "dense1", Units: 1}},
			{ClassName: model.ClassDense, Config: model.LayerConfig{Name: "dense2", Units: 1}},
		},
	}
	weights := model.MapStore{
		"conv1": {
			model.TensorKernel: {Shape: []int{1, 1, 1, 1}, Data: []float32{1}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{0}},
		},
		"dense1": {
			model.TensorKernel: {Shape: []int{1, 1}, Data: []float32{1}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{0}},
		},
		"dense2": {
			model.TensorKernel: {Shape: []int{1, 1}, Data: []float32{1}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{0}},
		},
	}

	values := []float64{1, 2, 3, 4}
	encryptInput := func() layers.Tensor3 {
		in := layers.NewTensor3(2, 2, 1)
		for i, v := range values {
			pt, err := engine.EncodeScalar(v, engine.ScaleParam())
			require.NoError(t, err)
			ct, err := engine.Encrypt(pt, pk)
			require.NoError(t, err)
			in.Data[i] = ct
		}
		return in
	}

	runUnder := func(opts plan.Options) float64 {
		p, err := New(engine).Compile(desc, weights, opts)
		require.NoError(t, err)
		out, err := executor.New(engine, rlk).Run(p.Nodes, encryptInput())
		require.NoError(t, err)
		require.Len(t, out, 1)
		pt, err := engine.Decrypt(out[0], sk)
		require.NoError(t, err)
		got, err := engine.Decode(pt)
		require.NoError(t, err)
		return got[0]
	}

	none := runUnder(plan.DefaultOptions(plan.OptNone))
	all := runUnder(plan.DefaultOptions(plan.OptAll))
	require.InDelta(t, none, all, 1e-4)
}

// TestCompileConvAbsorbsFoldExactlyOnce is TestCompileOptNoneAndOptAllAgree's
// counterpart for the Conv2D side of the compiler: a folded AveragePooling2D
// is absorbed by the Conv2D immediately after it, which must then clear the
// pending fold before the next Conv2D is built, or that next Conv2D would
// silently apply the same factor a second time.
func TestCompileConvAbsorbsFoldExactlyOnce(t *testing.T) {
	params := fhe.NewCKKSParameters(4, 8)
	engine := fhe.NewEngine(params)
	gen := fhe.NewKeyGenerator()
	sk, pk, err := gen.GenKeyPair()
	require.NoError(t, err)
	rlk, err := gen.GenRelinearizationKey(sk)
	require.NoError(t, err)

	desc := &model.Descriptor{
		Config: []model.Entry{
			{ClassName: model.ClassConv2D, Config: model.LayerConfig{
				Name: "conv1", BatchInputShape: []int{0, 4, 4, 1},
				Filters: 1, KernelSize: [2]int{1, 1}, Strides: [2]int{1, 1}, Padding: "valid",
			}},
			{ClassName: model.ClassAveragePooling2D, Config: model.LayerConfig{Name: "pool1", PoolSize: [2]int{2, 2}}},
			{ClassName: model.ClassConv2D, Config: model.LayerConfig{
				Name: "conv2", Filters: 1, KernelSize: [2]int{1, 1}, Strides: [2]int{1, 1}, Padding: "valid",
			}},
			{ClassName: model.ClassConv2D, Config: model.LayerConfig{
				Name: "conv3", Filters: 1, KernelSize: [2]int{1, 1}, Strides: [2]int{1, 1}, Padding: "valid",
			}},
			{ClassName: model.ClassFlatten, Config: model.LayerConfig{Name: "flatten"}},
			{ClassName: model.ClassDense, Config: model.LayerConfig{Name: "dense1", Units: 1}},
		},
	}
	weights := model.MapStore{
		"conv1": {
			model.TensorKernel: {Shape: []int{1, 1, 1, 1}, Data: []float32{1}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{0}},
		},
		"conv2": {
			model.TensorKernel: {Shape: []int{1, 1, 1, 1}, Data: []float32{1}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{0}},
		},
		"conv3": {
			model.TensorKernel: {Shape: []int{1, 1, 1, 1}, Data: []float32{1}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{0}},
		},
		"dense1": {
			model.TensorKernel: {Shape: []int{4, 1}, Data: []float32{0.25, 0.25, 0.25, 0.25}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{0}},
		},
	}

	encryptInput := func() layers.Tensor3 {
		in := layers.NewTensor3(4, 4, 1)
		for i := range in.Data {
			pt, err := engine.EncodeScalar(1, engine.ScaleParam())
			require.NoError(t, err)
			ct, err := engine.Encrypt(pt, pk)
			require.NoError(t, err)
			in.Data[i] = ct
		}
		return in
	}

	runUnder := func(opts plan.Options) float64 {
		p, err := New(engine).Compile(desc, weights, opts)
		require.NoError(t, err)
		out, err := executor.New(engine, rlk).Run(p.Nodes, encryptInput())
		require.NoError(t, err)
		require.Len(t, out, 1)
		pt, err := engine.Decrypt(out[0], sk)
		require.NoError(t, err)
		got, err := engine.Decode(pt)
		require.NoError(t, err)
		return got[0]
	}

	none := runUnder(plan.DefaultOptions(plan.OptNone))
	all := runUnder(plan.DefaultOptions(plan.OptAll))
	require.InDelta(t, 1.0, none, 1e-4)
	require.InDelta(t, none, all, 1e-4)
}

func TestCompileUnknownLayer(t *testing.T) {
	params := fhe.NewCKKSParameters(4, 4)
	engine := fhe.NewEngine(params)
	desc := &model.Descriptor{Config: []model.Entry{{ClassName: "Dropout", Config: model.LayerConfig{Name: "d"}}}}
	_, err := New(engine).Compile(desc, model.MapStore{}, plan.DefaultOptions(plan.OptNone))
	require.Error(t, err)
}

func TestCompileLevelExhausted(t *testing.T) {
	params := fhe.NewCKKSParameters(4, 1)
	engine := fhe.NewEngine(params)

	desc := &model.Descriptor{
		Config: []model.Entry{
			{ClassName: model.ClassConv2D, Config: model.LayerConfig{
				Name: "conv1", BatchInputShape: []int{0, 2, 2, 1},
				Filters: 1, KernelSize: [2]int{1, 1}, Strides: [2]int{1, 1}, Padding: "valid",
			}},
			{ClassName: model.ClassActivation, Config: model.LayerConfig{Name: "act1", Activation: layers.VariantSwishRG4Deg4}},
		},
	}
	weights := model.MapStore{
		"conv1": {
			model.TensorKernel: {Shape: []int{1, 1, 1, 1}, Data: []float32{2}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{1}},
		},
	}

	_, err := New(engine).Compile(desc, weights, plan.DefaultOptions(plan.OptNone))
	require.Error(t, err)
}

// TestPlanStringRendersOneLinePerNode mirrors the original's
// Network::printStructure: one line per compiled node naming its kind,
// name, and the level range it consumed.
func TestPlanStringRendersOneLinePerNode(t *testing.T) {
	params := fhe.NewCKKSParameters(4, 6)
	engine := fhe.NewEngine(params)

	desc := &model.Descriptor{
		Config: []model.Entry{
			{ClassName: model.ClassConv2D, Config: model.LayerConfig{
				Name: "conv1", BatchInputShape: []int{0, 2, 2, 1},
				Filters: 1, KernelSize: [2]int{1, 1}, Strides: [2]int{1, 1}, Padding: "valid",
			}},
			{ClassName: model.ClassActivation, Config: model.LayerConfig{Name: "act1", Activation: layers.VariantSquare}},
			{ClassName: model.ClassFlatten, Config: model.LayerConfig{Name: "flatten"}},
			{ClassName: model.ClassDense, Config: model.LayerConfig{Name: "dense1", Units: 1}},
		},
	}
	weights := model.MapStore{
		"conv1": {
			model.TensorKernel: {Shape: []int{1, 1, 1, 1}, Data: []float32{2}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{1}},
		},
		"dense1": {
			model.TensorKernel: {Shape: []int{4, 1}, Data: []float32{0.25, 0.25, 0.25, 0.25}},
			model.TensorBias:   {Shape: []int{1}, Data: []float32{0}},
		},
	}

	p, err := New(engine).Compile(desc, weights, plan.DefaultOptions(plan.OptNone))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(p.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "conv1 (Conv2D) level 0->1", lines[0])
	require.Contains(t, lines[1], "act1 (Activation)")
	require.Contains(t, lines[2], "flatten (Flatten)")
	require.Contains(t, lines[3], "dense1 (Dense)")
}
