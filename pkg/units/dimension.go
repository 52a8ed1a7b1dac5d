// Package units implements a small dimensional unit system with a comoving
// extension for cosmological simulation data.
//
// A base Registry holds plain physical units. WithComoving derives, for every
// unit whose dimension involves length, a comoving twin named with a "cm"
// suffix whose length dimension is divided by the scale factor. Values move
// between the comoving and physical forms only through an Equivalence.
package units

import (
	"strconv"
	"strings"
)

// BaseDim indexes one base dimension inside a Dimension.
type BaseDim int

const (
	Mass BaseDim = iota
	Length
	Time
	Temperature
	Angle
	Current
	Luminosity
	ScaleFactor

	numBaseDims
)

var baseDimNames = [numBaseDims]string{
	"mass", "length", "time", "temperature", "angle", "current", "luminous_intensity", "scale_factor",
}

func (b BaseDim) String() string {
	if b < 0 || b >= numBaseDims {
		return "unknown"
	}
	return baseDimNames[b]
}

// Dimension is a product of base dimensions raised to integer powers.
type Dimension [numBaseDims]int

// Frequently used dimensions.
var (
	Dimensionless     = Dimension{}
	DimMass           = Dimension{Mass: 1}
	DimLength         = Dimension{Length: 1}
	DimTime           = Dimension{Time: 1}
	DimTemperature    = Dimension{Temperature: 1}
	DimAngle          = Dimension{Angle: 1}
	DimScaleFactor    = Dimension{ScaleFactor: 1}
	DimVelocity       = DimLength.Div(DimTime)
	DimComovingLength = DimLength.Div(DimScaleFactor)
)

func (d Dimension) Mul(o Dimension) Dimension {
	var r Dimension
	for i := range d {
		r[i] = d[i] + o[i]
	}
	return r
}

func (d Dimension) Div(o Dimension) Dimension {
	var r Dimension
	for i := range d {
		r[i] = d[i] - o[i]
	}
	return r
}

func (d Dimension) Pow(n int) Dimension {
	var r Dimension
	for i := range d {
		r[i] = d[i] * n
	}
	return r
}

// Exponent returns the power of b in d.
func (d Dimension) Exponent(b BaseDim) int {
	return d[b]
}

func (d Dimension) IsDimensionless() bool {
	return d == Dimensionless
}

// Substitute replaces every occurrence of the base dimension b with the
// dimension with, keeping its power: b^n becomes with^n.
func (d Dimension) Substitute(b BaseDim, with Dimension) Dimension {
	n := d[b]
	if n == 0 {
		return d
	}
	r := d
	r[b] = 0
	return r.Mul(with.Pow(n))
}

// Without returns d with the power of b cleared.
func (d Dimension) Without(b BaseDim) Dimension {
	r := d
	r[b] = 0
	return r
}

// String renders the dimension as "mass*length**2/time**2".
func (d Dimension) String() string {
	if d.IsDimensionless() {
		return "dimensionless"
	}
	var num, den []string
	for i, n := range d {
		name := BaseDim(i).String()
		switch {
		case n == 1:
			num = append(num, name)
		case n > 1:
			num = append(num, name+"**"+strconv.Itoa(n))
		case n == -1:
			den = append(den, name)
		case n < -1:
			den = append(den, name+"**"+strconv.Itoa(-n))
		}
	}
	s := "1"
	if len(num) > 0 {
		s = strings.Join(num, "*")
	}
	if len(den) > 0 {
		s += "/" + strings.Join(den, "/")
	}
	return s
}
