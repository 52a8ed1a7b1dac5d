package units

import (
	"fmt"
	"math"
)

// Equivalence converts values between dimensions that are not directly
// commensurable.
type Equivalence interface {
	Name() string
	Convert(x float64, from, to Dimension) (float64, error)
}

// Comoving relates comoving and physical forms of a dimension at a fixed
// scale factor: a comoving length multiplied by the scale factor is a
// physical length.
type Comoving struct {
	ScaleFactor float64
}

func (c Comoving) Name() string {
	return "cosmology"
}

func (c Comoving) String() string {
	return "cosmological: scale-factor <-> unitless"
}

// Convert implements Equivalence.
func (c Comoving) Convert(x float64, from, to Dimension) (float64, error) {
	return ConvertComoving(x, from, to, c.ScaleFactor)
}

// ConvertComoving moves x from dimension from to dimension to, which may only
// differ in their power of the scale factor. Each power removed multiplies by
// scale, each power added divides by it. A round trip is exact only to float
// precision unless scale is a power of two.
func ConvertComoving(x float64, from, to Dimension, scale float64) (float64, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScaleFactor, scale)
	}
	if from.Without(ScaleFactor) != to.Without(ScaleFactor) {
		return 0, fmt.Errorf("%w: %s is not a comoving form of %s", ErrDimensionMismatch, from, to)
	}
	n := to.Exponent(ScaleFactor) - from.Exponent(ScaleFactor)
	for ; n > 0; n-- {
		x *= scale
	}
	for ; n < 0; n++ {
		x /= scale
	}
	return x, nil
}
