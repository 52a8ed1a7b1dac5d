package units

import (
	"fmt"
	"math"
)

// System is a comoving unit registry bound to one scale factor and one
// value of little h. It is immutable after construction.
type System struct {
	registry    *Registry
	scaleFactor float64
	littleH     float64
}

// NewSystem derives the comoving registry from base. A nil base uses
// DefaultRegistry.
func NewSystem(base *Registry, scaleFactor, littleH float64) (*System, error) {
	if scaleFactor <= 0 || math.IsNaN(scaleFactor) || math.IsInf(scaleFactor, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScaleFactor, scaleFactor)
	}
	if littleH <= 0 || math.IsNaN(littleH) {
		return nil, fmt.Errorf("units: little h must be positive, got %v", littleH)
	}
	if base == nil {
		base = DefaultRegistry()
	}
	reg, err := WithComoving(base, littleH)
	if err != nil {
		return nil, fmt.Errorf("deriving comoving registry: %w", err)
	}
	return &System{registry: reg, scaleFactor: scaleFactor, littleH: littleH}, nil
}

func (s *System) Registry() *Registry { return s.registry }
func (s *System) ScaleFactor() float64 { return s.scaleFactor }
func (s *System) LittleH() float64 { return s.littleH }

// Equivalence returns the comoving equivalence at this system's scale factor.
func (s *System) Equivalence() Comoving {
	return Comoving{ScaleFactor: s.scaleFactor}
}

func (s *System) Unit(expr string) (Unit, error) {
	return s.registry.Parse(expr)
}

func (s *System) Quantity(v float64, expr string) (Quantity, error) {
	u, err := s.registry.Parse(expr)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: v, Unit: u}, nil
}

func (s *System) Array(values []float64, expr string) (Array, error) {
	u, err := s.registry.Parse(expr)
	if err != nil {
		return Array{}, err
	}
	return Array{Values: append([]float64(nil), values...), Unit: u}, nil
}

// ToPhysical converts a comoving quantity into the matching physical unit
// expression. Quantities without comoving units are returned unchanged.
func (s *System) ToPhysical(q Quantity) (Quantity, error) {
	target, err := s.registry.Physical(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	return q.ToEquivalent(target, s.Equivalence())
}

// ArrayToPhysical is ToPhysical for arrays.
func (s *System) ArrayToPhysical(a Array) (Array, error) {
	target, err := s.registry.Physical(a.Unit)
	if err != nil {
		return Array{}, err
	}
	return a.ToEquivalent(target, s.Equivalence())
}
