package units

import (
	"fmt"
	"strconv"
)

// Quantity is a scalar value tagged with a unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

func (q Quantity) String() string {
	return strconv.FormatFloat(q.Value, 'g', -1, 64) + " " + q.Unit.String()
}

// To converts q into a unit of the same dimension.
func (q Quantity) To(target Unit) (Quantity, error) {
	if q.Unit.Dim != target.Dim {
		return Quantity{}, fmt.Errorf("%w: cannot convert %s (%s) to %s (%s)",
			ErrDimensionMismatch, q.Unit, q.Unit.Dim, target, target.Dim)
	}
	return Quantity{Value: rescale(q.Value, q.Unit, target), Unit: target}, nil
}

// ToEquivalent converts q into target, routing the dimensional change
// through eq when the dimensions differ.
func (q Quantity) ToEquivalent(target Unit, eq Equivalence) (Quantity, error) {
	if q.Unit.Dim == target.Dim {
		return q.To(target)
	}
	v, err := eq.Convert(q.Value, q.Unit.Dim, target.Dim)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: rescale(v, q.Unit, target), Unit: target}, nil
}

// In returns the numeric value of q expressed in SI base units.
func (q Quantity) In() float64 {
	return q.Value * q.Unit.Scale
}

// rescale applies the ratio between two unit multipliers, leaving the value
// untouched when they are identical.
func rescale(v float64, from, to Unit) float64 {
	if from.Scale == to.Scale {
		return v
	}
	return v * (from.Scale / to.Scale)
}

// Array is a vector of values sharing one unit.
type Array struct {
	Values []float64
	Unit   Unit
}

func (a Array) Len() int {
	return len(a.Values)
}

// At returns element i as a Quantity.
func (a Array) At(i int) Quantity {
	return Quantity{Value: a.Values[i], Unit: a.Unit}
}

func (a Array) To(target Unit) (Array, error) {
	return a.convert(func(q Quantity) (Quantity, error) { return q.To(target) }, target)
}

func (a Array) ToEquivalent(target Unit, eq Equivalence) (Array, error) {
	return a.convert(func(q Quantity) (Quantity, error) { return q.ToEquivalent(target, eq) }, target)
}

func (a Array) convert(fn func(Quantity) (Quantity, error), target Unit) (Array, error) {
	out := Array{Values: make([]float64, len(a.Values)), Unit: target}
	for i := range a.Values {
		q, err := fn(a.At(i))
		if err != nil {
			return Array{}, err
		}
		out.Values[i] = q.Value
	}
	return out, nil
}

func (a Array) String() string {
	s := "["
	for i, v := range a.Values {
		if i > 0 {
			s += ", "
		}
		s += strconv.FormatFloat(v, 'g', -1, 64)
	}
	return s + "] " + a.Unit.String()
}
