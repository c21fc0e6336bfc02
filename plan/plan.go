// Package plan holds the compiler's optimization flags and the compile-time
// reducer state described by spec §4.2 and the DESIGN NOTES' "Level-budget
// tracking as a compiler pass": rather than the original's mutable globals
// (consumed_level, should_multiply_coeff, should_multiply_pool,
// current_pooling_mul_factor, highest_deg_coeff), State is a pure
// value threaded through the compiler's layer-building functions, each of
// which consumes one State and returns the next.
package plan

// OptLevel selects which compile-time optimizations are active.
type OptLevel int

const (
	// OptNone applies no optimization: every layer is materialized exactly
	// as the topology descriptor names it, and every BatchNormalization and
	// AveragePooling2D consumes its own level; GlobalAveragePooling2D does
	// too unless Options.AlwaysFoldGlobalPool is set (DefaultOptions sets it).
	OptNone OptLevel = iota
	// OptFuseConvBN fuses a Conv2D/Dense immediately followed by a
	// BatchNormalization into a single ConvFusedBN/DenseFusedBN node.
	OptFuseConvBN
	// OptActivation rescales a polynomial Activation to monic form and
	// folds its leading coefficient into the next trainable layer.
	OptActivation
	// OptPooling folds an AveragePooling2D/GlobalAveragePooling2D's
	// divide-by-window-size into the next trainable layer's weights.
	OptPooling
	// OptAll enables every optimization above.
	OptAll
)

// Flags is the derived, immutable set of booleans an OptLevel expands to.
// Options derives it once per compile; State never re-derives it.
type Flags struct {
	FuseConvBN       bool
	OptimizeActivation bool
	OptimizePooling  bool
}

// Options bundles the optimization level with a choice for the DESIGN
// NOTES' documented ambiguities, so a caller can reproduce either the
// original's observed behavior or the suggested alternative.
type Options struct {
	Level OptLevel

	// AlwaysFoldGlobalPool matches the original's `if (true ||
	// enable_optimize_pooling())`: GlobalAveragePooling2D always folds its
	// divide-by-N into the next trainable layer, regardless of OptPooling.
	// Defaults to true. See SPEC_FULL.md "Open Questions — Decisions".
	AlwaysFoldGlobalPool bool

	// RoundZeroWeightsToZero selects the DESIGN NOTES' preferred
	// alternative to the original's "round an exact zero weight up to
	// +epsilon" bias: when true, an exactly-zero folded weight is encoded
	// as an exact zero rather than rounded to +RoundingEpsilon.
	RoundZeroWeightsToZero bool
}

// DefaultOptions returns Options configured the way the original system
// behaves: all requested optimizations, GAP folding always on, zero weights
// biased to +epsilon.
func DefaultOptions(level OptLevel) Options {
	return Options{Level: level, AlwaysFoldGlobalPool: true}
}

// Derive expands an OptLevel into its Flags.
func (o Options) Derive() Flags {
	switch o.Level {
	case OptFuseConvBN:
		return Flags{FuseConvBN: true}
	case OptActivation:
		return Flags{OptimizeActivation: true}
	case OptPooling:
		return Flags{OptimizePooling: true}
	case OptAll:
		return Flags{FuseConvBN: true, OptimizeActivation: true, OptimizePooling: true}
	default:
		return Flags{}
	}
}

// State is the pure value threaded through the compiler's layer builders.
// Each builder reads the State it is given and returns the State the next
// builder should see.
type State struct {
	Flags Flags
	Opts  Options

	// ConsumedLevel is the number of primes already burned by previously
	// emitted operators.
	ConsumedLevel int

	// ShouldMultiplyCoeff is set immediately after an Activation node is
	// emitted under OptimizeActivation; the next trainable layer (or, per
	// the edge case in spec §4.4, an intervening AveragePooling2D) absorbs
	// HighestDegCoeff into its own weights and clears this flag.
	ShouldMultiplyCoeff bool
	HighestDegCoeff     float64

	// ShouldMultiplyPool is the pooling analogue of ShouldMultiplyCoeff.
	ShouldMultiplyPool       bool
	CurrentPoolingMulFactor float64
}

// NewState returns the initial State for a compile: level budget
// unconsumed, no pending folds, and CurrentPoolingMulFactor set to 1.
func NewState(opts Options) State {
	return State{Flags: opts.Derive(), Opts: opts, CurrentPoolingMulFactor: 1}
}

// FoldingValue returns the compile-time constant the next trainable layer
// should multiply its weights by, given whichever fold flags are currently
// pending, and the State with those flags cleared. Pooling layers do not
// call this; they take a pending coefficient with PopPendingCoeff.
func (s State) FoldingValue() (value float64, next State) {
	value = 1
	next = s
	if s.ShouldMultiplyCoeff {
		value *= s.HighestDegCoeff
		next.ShouldMultiplyCoeff = false
		next.HighestDegCoeff = 0
	}
	if s.ShouldMultiplyPool {
		value *= s.CurrentPoolingMulFactor
		next.ShouldMultiplyPool = false
		next.CurrentPoolingMulFactor = 1
	}
	return value, next
}

// PopPendingCoeff consumes only a pending activation-coefficient fold
// (leaving any pending pooling fold untouched) and returns its value (1 if
// none was pending). AveragePooling2D/GlobalAveragePooling2D nodes use this
// to absorb a coefficient the Activation immediately before them left
// pending, per spec §4.4's edge case: a pooling layer has no weight store
// of its own to fold into, so it folds into its own multiplier instead.
func (s State) PopPendingCoeff() (value float64, next State) {
	next = s
	if !s.ShouldMultiplyCoeff {
		return 1, next
	}
	next.ShouldMultiplyCoeff = false
	next.HighestDegCoeff = 0
	return s.HighestDegCoeff, next
}

// WithConsumed returns a State with ConsumedLevel advanced by levels.
func (s State) WithConsumed(levels int) State {
	s.ConsumedLevel += levels
	return s
}

// WithPendingCoeff returns a State with ShouldMultiplyCoeff set to the
// Activation's leading coefficient, for the layer immediately following an
// Activation compiled under OptimizeActivation.
func (s State) WithPendingCoeff(coeff float64) State {
	s.ShouldMultiplyCoeff = true
	s.HighestDegCoeff = coeff
	return s
}

// WithPendingPool returns a State with ShouldMultiplyPool set and
// CurrentPoolingMulFactor multiplied by factor, for the layer immediately
// following an AveragePooling2D/GlobalAveragePooling2D compiled under
// OptimizePooling (or, for GlobalAveragePooling2D, under
// AlwaysFoldGlobalPool).
func (s State) WithPendingPool(factor float64) State {
	if !s.ShouldMultiplyPool {
		s.CurrentPoolingMulFactor = 1
	}
	s.ShouldMultiplyPool = true
	s.CurrentPoolingMulFactor *= factor
	return s
}
