// Package cosmology holds the named background cosmologies referenced by
// simulation metadata in the archive.
package cosmology

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknown is returned when a cosmology name is not in the table.
var ErrUnknown = errors.New("cosmology: unknown cosmology")

// Cosmology is a flat Lambda-CDM parameter set.
type Cosmology struct {
	Name string
	// H0 in km/s/Mpc.
	H0  float64
	Om0 float64
	Ob0 float64
}

// LittleH is H0 / (100 km/s/Mpc).
func (c Cosmology) LittleH() float64 {
	return c.H0 / 100
}

// ScaleFactor returns a = 1/(1+z). Redshifts at or below -1 have no
// physical scale factor.
func (c Cosmology) ScaleFactor(z float64) (float64, error) {
	if z <= -1 || math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, fmt.Errorf("cosmology: invalid redshift %v", z)
	}
	return 1 / (1 + z), nil
}

var (
	WMAP1    = Cosmology{Name: "WMAP1", H0: 72.0, Om0: 0.257, Ob0: 0.0436}
	WMAP3    = Cosmology{Name: "WMAP3", H0: 70.1, Om0: 0.276, Ob0: 0.0454}
	WMAP5    = Cosmology{Name: "WMAP5", H0: 70.2, Om0: 0.277, Ob0: 0.0459}
	WMAP7    = Cosmology{Name: "WMAP7", H0: 70.4, Om0: 0.272, Ob0: 0.0455}
	WMAP9    = Cosmology{Name: "WMAP9", H0: 69.32, Om0: 0.2865, Ob0: 0.04628}
	Planck13 = Cosmology{Name: "Planck13", H0: 67.77, Om0: 0.30712, Ob0: 0.048252}
	Planck15 = Cosmology{Name: "Planck15", H0: 67.74, Om0: 0.3075, Ob0: 0.0486}
	Planck18 = Cosmology{Name: "Planck18", H0: 67.66, Om0: 0.30966, Ob0: 0.04897}
)

// names maps the archive's "cosmology" attribute values to parameter sets.
// "Plank2015" and "Plank2018" are the spellings the archive itself uses.
var names = map[string]Cosmology{
	"WMAP-1":     WMAP1,
	"WMAP-3":     WMAP3,
	"WMAP-5":     WMAP5,
	"WMAP-7":     WMAP7,
	"WMAP-9":     WMAP9,
	"Planck2013": Planck13,
	"Plank2015":  Planck15,
	"Plank2018":  Planck18,
	"Planck2015": Planck15,
	"Planck2018": Planck18,
}

// Lookup resolves a cosmology by the name used in simulation metadata.
func Lookup(name string) (Cosmology, error) {
	c, ok := names[name]
	if !ok {
		return Cosmology{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return c, nil
}

// Names lists every accepted name, sorted.
func Names() []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
