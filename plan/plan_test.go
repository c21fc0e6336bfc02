package plan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveFlags(t *testing.T) {
	cases := []struct {
		level OptLevel
		want  Flags
	}{
		{OptNone, Flags{}},
		{OptFuseConvBN, Flags{FuseConvBN: true}},
		{OptActivation, Flags{OptimizeActivation: true}},
		{OptPooling, Flags{OptimizePooling: true}},
		{OptAll, Flags{FuseConvBN: true, OptimizeActivation: true, OptimizePooling: true}},
	}
	for _, c := range cases {
		opts := Options{Level: c.level}
		require.Equal(t, c.want, opts.Derive())
	}
}

func TestFoldingValueClearsBothFlags(t *testing.T) {
	st := NewState(DefaultOptions(OptAll))
	st = st.WithPendingCoeff(2)
	st = st.WithPendingPool(0.25)

	value, next := st.FoldingValue()
	require.InDelta(t, 0.5, value, 1e-12)
	require.False(t, next.ShouldMultiplyCoeff)
	require.False(t, next.ShouldMultiplyPool)
	require.Equal(t, 1.0, next.CurrentPoolingMulFactor)
}

func TestFoldingValueNoPending(t *testing.T) {
	st := NewState(DefaultOptions(OptNone))
	value, _ := st.FoldingValue()
	require.Equal(t, 1.0, value)
}

func TestPopPendingCoeffLeavesPoolUntouched(t *testing.T) {
	st := NewState(DefaultOptions(OptAll))
	st = st.WithPendingCoeff(3)
	st = st.WithPendingPool(0.5)

	value, next := st.PopPendingCoeff()
	require.Equal(t, 3.0, value)
	require.False(t, next.ShouldMultiplyCoeff)
	require.True(t, next.ShouldMultiplyPool)
	require.Equal(t, 0.5, next.CurrentPoolingMulFactor)
}

func TestWithPendingPoolMultipliesWhenAlreadyPending(t *testing.T) {
	st := NewState(DefaultOptions(OptAll))
	st = st.WithPendingPool(0.5)
	st = st.WithPendingPool(0.5)
	require.InDelta(t, 0.25, st.CurrentPoolingMulFactor, 1e-12)
}

func TestWithConsumed(t *testing.T) {
	st := NewState(DefaultOptions(OptNone))
	st = st.WithConsumed(2)
	st = st.WithConsumed(3)
	require.Equal(t, 5, st.ConsumedLevel)
}
