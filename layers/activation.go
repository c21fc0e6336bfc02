package layers

import (
	"fmt"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/ppcnnerr"
)

// Activation variant names, matching the topology descriptor's
// `config.activation` string (spec §6).
const (
	VariantSquare       = "square"
	VariantSwishRG4Deg4 = "swish_rg4_deg4"
	VariantSwishRG6Deg4 = "swish_rg6_deg4"
)

// swishCoeffs holds [a, b, c, d] for y = a*x^4 + b*x^2 + c*x + d on a named
// range, and swishOptCoeffs holds [b', c', d'] = [b/a, c/a, d/a], the monic
// rescaling OptActivation uses (a folded into the next trainable layer).
// Values are the ones the original model was trained against.
var (
	swishRG4Deg4Coeffs    = [4]float64{-0.005075, 0.19566, 0.5, 0.03347}
	swishRG4Deg4OptCoeffs = [3]float64{-38.5537, -98.52222, -6.59507}

	swishRG6Deg4Coeffs    = [4]float64{-0.002012, 0.1473, 0.5, 0.1198}
	swishRG6Deg4OptCoeffs = [3]float64{-73.2107, -248.5089, -59.5427}
)

// HighestDegCoeff returns the degree-4 coefficient `a` for a swish variant,
// the value the compiler folds into the next trainable layer's weights
// when Activation is built under OptActivation. Square has no such
// coefficient (it returns 1, a no-op fold).
func HighestDegCoeff(variant string) (float64, error) {
	switch variant {
	case VariantSquare:
		return 1, nil
	case VariantSwishRG4Deg4:
		return swishRG4Deg4Coeffs[0], nil
	case VariantSwishRG6Deg4:
		return swishRG6Deg4Coeffs[0], nil
	default:
		return 0, fmt.Errorf("activation %q: %w", variant, ppcnnerr.ErrUnknownLayer)
	}
}

// LevelCost returns the number of levels an Activation of this variant
// consumes, depending on whether it is compiled under OptActivation (spec
// §4.3, §8: "each Activation consumes 2 levels (monic) rather than 3
// (general)").
func LevelCost(variant string, monic bool) (int, error) {
	switch variant {
	case VariantSquare:
		return 1, nil
	case VariantSwishRG4Deg4, VariantSwishRG6Deg4:
		if monic {
			return 2, nil
		}
		return 3, nil
	default:
		return 0, fmt.Errorf("activation %q: %w", variant, ppcnnerr.ErrUnknownLayer)
	}
}

// Activation implements spec §4.3's Activation. Square and Swish share a
// node type; Variant and Monic select which Forward path runs. The
// Coeff* plaintexts are pre-encoded and mod-switched by NewActivation to
// the levels the swish algorithm needs — grounded directly on the
// original's Activation constructor, which performs the same encode/
// mod-switch dance before the first forward call.
type Activation struct {
	LayerName string
	Variant   string
	Monic     bool

	// CoeffA is only set for the general (non-monic) swish variants.
	CoeffA, CoeffB, CoeffC, CoeffD fhe.Plaintext
}

func (a *Activation) Kind() Kind   { return KindActivation }
func (a *Activation) Name() string { return a.LayerName }

// NewActivation builds an Activation node, encoding and mod-switching its
// polynomial coefficients so they land at the scale and level the forward
// algorithm expects when consumedLevel primes have already been spent.
func NewActivation(eng fhe.Engine, layerName, variant string, monic bool, consumedLevel int) (*Activation, error) {
	a := &Activation{LayerName: layerName, Variant: variant, Monic: monic}
	if variant == VariantSquare {
		return a, nil
	}

	var raw [4]float64
	switch variant {
	case VariantSwishRG4Deg4:
		if monic {
			c := swishRG4Deg4OptCoeffs
			raw = [4]float64{0, c[0], c[1], c[2]}
		} else {
			raw = swishRG4Deg4Coeffs
		}
	case VariantSwishRG6Deg4:
		if monic {
			c := swishRG6Deg4OptCoeffs
			raw = [4]float64{0, c[0], c[1], c[2]}
		} else {
			raw = swishRG6Deg4Coeffs
		}
	default:
		return nil, fmt.Errorf("activation %q: %w", variant, ppcnnerr.ErrUnknownLayer)
	}

	scale := eng.ScaleParam()
	// Monic b',c' land at level (top-consumedLevel-1) to match x2/x
	// (both switched down once); d' lands one level below that, to match
	// y's level after the single level-4 rescale. General a,b,c land one
	// level further down than monic (top-consumedLevel-2), matching x4/x2/x
	// after two switches; d lands one level below that.
	innerSwitches := consumedLevel + 1
	if !monic {
		innerSwitches = consumedLevel + 2
	}

	encodeAt := func(v float64, switches int) (fhe.Plaintext, error) {
		pt, err := eng.EncodeScalar(v, scale)
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

	var err error
	if !monic {
		if a.CoeffA, err = encodeAt(raw[0], innerSwitches); err != nil {
			return nil, err
		}
	}
	if a.CoeffB, err = encodeAt(raw[1], innerSwitches); err != nil {
		return nil, err
	}
	if a.CoeffC, err = encodeAt(raw[2], innerSwitches); err != nil {
		return nil, err
	}
	if a.CoeffD, err = encodeAt(raw[3], innerSwitches+1); err != nil {
		return nil, err
	}
	return a, nil
}

// Forward applies the activation to a single ciphertext.
func (a *Activation) Forward(ctx Ctx, x fhe.Ciphertext) (fhe.Ciphertext, error) {
	switch a.Variant {
	case VariantSquare:
		return a.square(ctx, x)
	default:
		if a.Monic {
			return a.swishMonic(ctx, x)
		}
		return a.swishGeneral(ctx, x)
	}
}

func (a *Activation) square(ctx Ctx, x fhe.Ciphertext) (fhe.Ciphertext, error) {
	eng := ctx.Engine
	y, err := eng.Square(x)
	if err != nil {
		return nil, err
	}
	y, err = eng.Relinearize(y, ctx.Relin)
	if err != nil {
		return nil, err
	}
	y, err = eng.RescaleToNext(y)
	if err != nil {
		return nil, err
	}
	return eng.Renormalize(y), nil
}

// swishGeneral mirrors the original's swishDeg4: two squarings each
// immediately rescaled (2 levels), then a combine-and-rescale (1 level),
// for 3 total.
func (a *Activation) swishGeneral(ctx Ctx, x fhe.Ciphertext) (fhe.Ciphertext, error) {
	eng := ctx.Engine

	x2, err := eng.Square(x)
	if err != nil {
		return nil, err
	}
	if x2, err = eng.Relinearize(x2, ctx.Relin); err != nil {
		return nil, err
	}
	if x2, err = eng.RescaleToNext(x2); err != nil {
		return nil, err
	}
	x2 = eng.Renormalize(x2)

	x4, err := eng.Square(x2)
	if err != nil {
		return nil, err
	}
	if x4, err = eng.Relinearize(x4, ctx.Relin); err != nil {
		return nil, err
	}
	if x4, err = eng.RescaleToNext(x4); err != nil {
		return nil, err
	}
	x4 = eng.Renormalize(x4)

	x2ms, err := eng.ModSwitchCiphertextToNext(x2)
	if err != nil {
		return nil, err
	}
	xms, err := eng.ModSwitchCiphertextToNext(x)
	if err != nil {
		return nil, err
	}
	if xms, err = eng.ModSwitchCiphertextToNext(xms); err != nil {
		return nil, err
	}

	ax4, err := eng.MultiplyPlain(x4, a.CoeffA)
	if err != nil {
		return nil, err
	}
	bx2, err := eng.MultiplyPlain(x2ms, a.CoeffB)
	if err != nil {
		return nil, err
	}
	cx, err := eng.MultiplyPlain(xms, a.CoeffC)
	if err != nil {
		return nil, err
	}

	y, err := eng.Add(ax4, bx2)
	if err != nil {
		return nil, err
	}
	if y, err = eng.Add(y, cx); err != nil {
		return nil, err
	}
	if y, err = eng.RescaleToNext(y); err != nil {
		return nil, err
	}
	y = eng.Renormalize(y)
	return eng.AddPlain(y, a.CoeffD)
}

// swishMonic mirrors the original's swishDeg4Opt: x^4 is left unrescaled
// after its squaring, so only the first squaring and the final combine
// consume a level, for 2 total.
func (a *Activation) swishMonic(ctx Ctx, x fhe.Ciphertext) (fhe.Ciphertext, error) {
	eng := ctx.Engine

	x2, err := eng.Square(x)
	if err != nil {
		return nil, err
	}
	if x2, err = eng.Relinearize(x2, ctx.Relin); err != nil {
		return nil, err
	}
	if x2, err = eng.RescaleToNext(x2); err != nil {
		return nil, err
	}
	x2 = eng.Renormalize(x2)

	x4, err := eng.Square(x2)
	if err != nil {
		return nil, err
	}
	if x4, err = eng.Relinearize(x4, ctx.Relin); err != nil {
		return nil, err
	}

	xms, err := eng.ModSwitchCiphertextToNext(x)
	if err != nil {
		return nil, err
	}

	bx2, err := eng.MultiplyPlain(x2, a.CoeffB)
	if err != nil {
		return nil, err
	}
	cx, err := eng.MultiplyPlain(xms, a.CoeffC)
	if err != nil {
		return nil, err
	}

	y, err := eng.Add(x4, bx2)
	if err != nil {
		return nil, err
	}
	if y, err = eng.Add(y, cx); err != nil {
		return nil, err
	}
	if y, err = eng.RescaleToNext(y); err != nil {
		return nil, err
	}
	y = eng.Renormalize(y)
	return eng.AddPlain(y, a.CoeffD)
}
