package units

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	ErrUnknownUnit        = errors.New("units: unknown unit")
	ErrDuplicateUnit      = errors.New("units: unit already registered")
	ErrDimensionMismatch  = errors.New("units: dimension mismatch")
	ErrSyntax             = errors.New("units: invalid unit expression")
	ErrInvalidScaleFactor = errors.New("units: scale factor must be positive")
)

const (
	// ComovingSuffix is appended to a unit name to form its comoving twin.
	ComovingSuffix = "cm"

	// ScaleFactorUnit is the sentinel unit carrying the scale-factor
	// dimension. It never receives a comoving twin.
	ScaleFactorUnit = "scale_factor"

	// LittleHUnit is the dimensionless Hubble normalization unit.
	LittleHUnit = "h"
)

// Definition describes one named unit. BaseValue is the size of the unit
// expressed in SI base units (m, kg, s, K, rad).
type Definition struct {
	Name       string
	BaseValue  float64
	Dim        Dimension
	Tex        string
	Prefixable bool

	// ComovingOf names the physical unit this definition was derived from,
	// empty for base units.
	ComovingOf string
}

// Registry is a lookup table of unit definitions. A Registry is safe for
// concurrent reads once it is no longer being added to.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry builds a registry from the given definitions.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := r.Add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a definition. Names are never overwritten.
func (r *Registry) Add(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: empty name", ErrSyntax)
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateUnit, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Has reports whether name is registered exactly (no prefix resolution).
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Definition returns the exact definition registered under name.
func (r *Registry) Definition(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Lookup resolves a unit symbol, falling back to an SI prefix applied to a
// prefixable unit ("km" -> "k" + "m").
func (r *Registry) Lookup(symbol string) (Definition, bool) {
	if d, ok := r.defs[symbol]; ok {
		return d, true
	}
	for _, p := range prefixes {
		rest, found := strings.CutPrefix(symbol, p.symbol)
		if !found || rest == "" {
			continue
		}
		d, ok := r.defs[rest]
		if !ok || !d.Prefixable {
			continue
		}
		d.Name = symbol
		d.BaseValue *= p.factor
		if d.Tex != "" {
			d.Tex = p.tex + d.Tex
		}
		return d, true
	}
	return Definition{}, false
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	return len(r.defs)
}

func (r *Registry) Clone() *Registry {
	c := &Registry{defs: make(map[string]Definition, len(r.defs))}
	for k, v := range r.defs {
		c.defs[k] = v
	}
	return c
}

// WithComoving returns a copy of base extended with the scale-factor
// sentinel unit, a comoving twin of every length-bearing unit and the
// dimensionless unit "h" worth littleH. base is left untouched.
func WithComoving(base *Registry, littleH float64) (*Registry, error) {
	r := base.Clone()
	if !r.Has(ScaleFactorUnit) {
		if err := r.Add(Definition{
			Name:      ScaleFactorUnit,
			BaseValue: 1,
			Dim:       DimScaleFactor,
			Tex:       `\rm{a}`,
		}); err != nil {
			return nil, err
		}
	}

	for _, name := range base.Names() {
		def := base.defs[name]
		if name == ScaleFactorUnit || def.Dim.Exponent(Length) == 0 {
			continue
		}
		twin := name + ComovingSuffix
		if r.Has(twin) {
			continue
		}
		if err := r.Add(Definition{
			Name:       twin,
			BaseValue:  def.BaseValue,
			Dim:        def.Dim.Substitute(Length, DimComovingLength),
			Tex:        comovingTex(def.Tex),
			Prefixable: def.Prefixable,
			ComovingOf: name,
		}); err != nil {
			return nil, err
		}
	}

	if !r.Has(LittleHUnit) {
		if err := r.Add(Definition{
			Name:      LittleHUnit,
			BaseValue: littleH,
			Dim:       Dimensionless,
			Tex:       "h",
		}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func comovingTex(tex string) string {
	switch {
	case tex == "":
		return ""
	case strings.HasSuffix(tex, "}"):
		return tex[:len(tex)-1] + ComovingSuffix + "}"
	default:
		return tex + `_{\rm{cm}}`
	}
}

type prefix struct {
	symbol string
	factor float64
	tex    string
}

var prefixes = []prefix{
	{"E", 1e18, "E"},
	{"P", 1e15, "P"},
	{"T", 1e12, "T"},
	{"G", 1e9, "G"},
	{"M", 1e6, "M"},
	{"k", 1e3, "k"},
	{"c", 1e-2, "c"},
	{"m", 1e-3, "m"},
	{"u", 1e-6, `\mu`},
	{"µ", 1e-6, `\mu`},
	{"n", 1e-9, "n"},
	{"p", 1e-12, "p"},
	{"f", 1e-15, "f"},
}

const (
	parsec       = 3.0856775814913673e16
	solarMass    = 1.98841586e30
	julianYear   = 31557600.0
	astroUnit    = 1.495978707e11
	lightYear    = 9.4607304725808e15
	solarRadius  = 6.957e8
	electronVolt = 1.602176634e-19
)

// DefaultRegistry returns a fresh registry of the physical units used by
// the archive's fields.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Definition{Name: "dimensionless", BaseValue: 1, Dim: Dimensionless},
		Definition{Name: "%", BaseValue: 0.01, Dim: Dimensionless, Tex: `\%`},

		Definition{Name: "m", BaseValue: 1, Dim: DimLength, Tex: `\rm{m}`, Prefixable: true},
		Definition{Name: "cm", BaseValue: 1e-2, Dim: DimLength, Tex: `\rm{cm}`},
		Definition{Name: "pc", BaseValue: parsec, Dim: DimLength, Tex: `\rm{pc}`, Prefixable: true},
		Definition{Name: "kpc", BaseValue: 1e3 * parsec, Dim: DimLength, Tex: `\rm{kpc}`, Prefixable: true},
		Definition{Name: "Mpc", BaseValue: 1e6 * parsec, Dim: DimLength, Tex: `\rm{Mpc}`, Prefixable: true},
		Definition{Name: "au", BaseValue: astroUnit, Dim: DimLength, Tex: `\rm{AU}`},
		Definition{Name: "ly", BaseValue: lightYear, Dim: DimLength, Tex: `\rm{ly}`},
		Definition{Name: "Rsun", BaseValue: solarRadius, Dim: DimLength, Tex: `R_\odot`},

		Definition{Name: "g", BaseValue: 1e-3, Dim: DimMass, Tex: `\rm{g}`, Prefixable: true},
		Definition{Name: "Msun", BaseValue: solarMass, Dim: DimMass, Tex: `M_\odot`},

		Definition{Name: "s", BaseValue: 1, Dim: DimTime, Tex: `\rm{s}`, Prefixable: true},
		Definition{Name: "min", BaseValue: 60, Dim: DimTime, Tex: `\rm{min}`},
		Definition{Name: "hr", BaseValue: 3600, Dim: DimTime, Tex: `\rm{hr}`},
		Definition{Name: "day", BaseValue: 86400, Dim: DimTime, Tex: `\rm{d}`},
		Definition{Name: "yr", BaseValue: julianYear, Dim: DimTime, Tex: `\rm{yr}`, Prefixable: true},

		Definition{Name: "K", BaseValue: 1, Dim: DimTemperature, Tex: `\rm{K}`, Prefixable: true},
		Definition{Name: "rad", BaseValue: 1, Dim: DimAngle, Tex: `\rm{rad}`},
		Definition{Name: "degree", BaseValue: math.Pi / 180, Dim: DimAngle, Tex: `\rm{deg}`},

		Definition{Name: "J", BaseValue: 1, Dim: DimMass.Mul(DimLength.Pow(2)).Div(DimTime.Pow(2)), Tex: `\rm{J}`, Prefixable: true},
		Definition{Name: "erg", BaseValue: 1e-7, Dim: DimMass.Mul(DimLength.Pow(2)).Div(DimTime.Pow(2)), Tex: `\rm{erg}`},
		Definition{Name: "eV", BaseValue: electronVolt, Dim: DimMass.Mul(DimLength.Pow(2)).Div(DimTime.Pow(2)), Tex: `\rm{eV}`, Prefixable: true},
	)
	if err != nil {
		panic(err)
	}
	return r
}
