package units

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func newTestSystem(t *testing.T, scale float64) *System {
	t.Helper()
	sys, err := NewSystem(nil, scale, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	return sys
}

func TestWithComoving_DerivesKpccm(t *testing.T) {
	sys := newTestSystem(t, 0.5)
	reg := sys.Registry()

	kpc, ok := reg.Definition("kpc")
	if !ok {
		t.Fatal("expected kpc in derived registry")
	}
	kpccm, ok := reg.Definition("kpccm")
	if !ok {
		t.Fatal("expected kpccm in derived registry")
	}
	if kpccm.Dim != kpc.Dim.Div(DimScaleFactor) {
		t.Errorf("kpccm dimension = %s, want %s", kpccm.Dim, kpc.Dim.Div(DimScaleFactor))
	}
	if kpccm.BaseValue != kpc.BaseValue {
		t.Errorf("kpccm base value = %v, want %v", kpccm.BaseValue, kpc.BaseValue)
	}
	if kpccm.Tex != `\rm{kpccm}` {
		t.Errorf("kpccm tex = %q", kpccm.Tex)
	}
	if kpccm.ComovingOf != "kpc" {
		t.Errorf("kpccm derived from %q, want kpc", kpccm.ComovingOf)
	}
}

func TestWithComoving_StrictSuperset(t *testing.T) {
	base := DefaultRegistry()
	derived, err := WithComoving(base, 0.6774)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range base.Names() {
		want, _ := base.Definition(name)
		got, ok := derived.Definition(name)
		if !ok {
			t.Errorf("base unit %q missing from derived registry", name)
			continue
		}
		if got != want {
			t.Errorf("base unit %q changed: %+v -> %+v", name, want, got)
		}
	}

	for _, name := range derived.Names() {
		if base.Has(name) || name == ScaleFactorUnit || name == LittleHUnit {
			continue
		}
		def, _ := derived.Definition(name)
		if def.ComovingOf+ComovingSuffix != name {
			t.Errorf("derived unit %q is not %q + %q", name, def.ComovingOf, ComovingSuffix)
		}
		if def.Dim.Exponent(Length) == 0 {
			t.Errorf("derived unit %q has no length", name)
		}
	}

	if derived.Has(ScaleFactorUnit + ComovingSuffix) {
		t.Error("scale factor sentinel must not receive a comoving twin")
	}
	if derived.Has("Msuncm") {
		t.Error("mass units must not receive a comoving twin")
	}
	if base.Len() >= derived.Len() {
		t.Errorf("derived registry not larger: %d vs %d", derived.Len(), base.Len())
	}
}

func TestWithComoving_LittleH(t *testing.T) {
	sys := newTestSystem(t, 1)
	h, ok := sys.Registry().Definition(LittleHUnit)
	if !ok {
		t.Fatal("expected h unit")
	}
	if h.BaseValue != 0.7 || !h.Dim.IsDimensionless() {
		t.Errorf("unexpected h definition: %+v", h)
	}
}

func TestComovingTex(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`\rm{kpc}`, `\rm{kpccm}`},
		{`R_\odot`, `R_\odot_{\rm{cm}}`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := comovingTex(tt.in); got != tt.want {
			t.Errorf("comovingTex(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// withinULPs reports whether got is at most n float64 steps from want.
func withinULPs(got, want float64, n int) bool {
	lo, hi := want, want
	for i := 0; i < n; i++ {
		lo = math.Nextafter(lo, math.Inf(-1))
		hi = math.Nextafter(hi, math.Inf(1))
	}
	return got >= lo && got <= hi
}

func TestEquivalence_ComovingToPhysical(t *testing.T) {
	tests := []struct {
		name  string
		scale float64
		exact bool
	}{
		{"a=0.5", 0.5, true},
		{"a=0.25", 0.25, true},
		{"a=1", 1, true},
		{"a=0.7", 0.7, false},
		{"z=0.2", 1 / (1 + 0.2), false},
		{"z=1.5", 1 / (1 + 1.5), false},
		{"z=4.99", 1 / (1 + 4.99), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := newTestSystem(t, tt.scale)
			kpccm := sys.Registry().MustParse("kpccm")
			kpc := sys.Registry().MustParse("kpc")

			q := Quantity{Value: 3, Unit: kpccm}
			phys, err := q.ToEquivalent(kpc, sys.Equivalence())
			if err != nil {
				t.Fatal(err)
			}
			back, err := phys.ToEquivalent(kpccm, sys.Equivalence())
			if err != nil {
				t.Fatal(err)
			}

			if tt.exact {
				if phys.Value != 3*tt.scale {
					t.Errorf("comoving->physical = %v, want %v", phys.Value, 3*tt.scale)
				}
				if back.Value != 3 {
					t.Errorf("round trip = %v, want 3", back.Value)
				}
				return
			}
			if !withinULPs(phys.Value, 3*tt.scale, 2) {
				t.Errorf("comoving->physical = %v, want %v", phys.Value, 3*tt.scale)
			}
			if !withinULPs(back.Value, 3, 2) {
				t.Errorf("round trip = %v, want 3 within float precision", back.Value)
			}
		})
	}
}

func TestEquivalence_PhysicalToComovingDivides(t *testing.T) {
	got, err := ConvertComoving(10, DimLength, DimComovingLength, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 20 {
		t.Errorf("physical->comoving = %v, want 20", got)
	}
}

func TestEquivalence_RejectsUnrelatedDimensions(t *testing.T) {
	_, err := ConvertComoving(1, DimMass, DimLength, 0.5)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	_, err = ConvertComoving(1, DimComovingLength, DimLength, 0)
	if !errors.Is(err, ErrInvalidScaleFactor) {
		t.Fatalf("expected ErrInvalidScaleFactor, got %v", err)
	}
}

func TestSystem_ToPhysical(t *testing.T) {
	sys := newTestSystem(t, 0.5)
	q, err := sys.Quantity(10, "kpccm/h")
	if err != nil {
		t.Fatal(err)
	}
	phys, err := sys.ToPhysical(q)
	if err != nil {
		t.Fatal(err)
	}
	if phys.Unit.Expr != "kpc/h" {
		t.Errorf("physical unit = %q, want kpc/h", phys.Unit.Expr)
	}
	if phys.Value != 5 {
		t.Errorf("physical value = %v, want 5", phys.Value)
	}

	vel, _ := sys.Quantity(100, "km/s")
	same, err := sys.ToPhysical(vel)
	if err != nil {
		t.Fatal(err)
	}
	if same.Value != 100 || same.Unit.Expr != "km/s" {
		t.Errorf("velocity should be unchanged, got %v", same)
	}
}

func TestParse_Compound(t *testing.T) {
	sys := newTestSystem(t, 1)
	u, err := sys.Unit("(kpc/h)*(km/s)")
	if err != nil {
		t.Fatal(err)
	}
	want := DimLength.Mul(DimLength).Div(DimTime)
	if u.Dim != want {
		t.Errorf("dimension = %s, want %s", u.Dim, want)
	}
	expected := (1e3 * parsec / 0.7) * 1e3
	if math.Abs(u.Scale-expected)/expected > 1e-12 {
		t.Errorf("scale = %v, want %v", u.Scale, expected)
	}

	sfr, err := sys.Unit("Msun/yr")
	if err != nil {
		t.Fatal(err)
	}
	if sfr.Dim != DimMass.Div(DimTime) {
		t.Errorf("Msun/yr dimension = %s", sfr.Dim)
	}

	sq, err := sys.Unit("kpc**2")
	if err != nil {
		t.Fatal(err)
	}
	if sq.Dim != DimLength.Pow(2) {
		t.Errorf("kpc**2 dimension = %s", sq.Dim)
	}
	inv, err := sys.Unit("s^-1")
	if err != nil {
		t.Fatal(err)
	}
	if inv.Dim != DimTime.Pow(-1) || inv.Scale != 1 {
		t.Errorf("s^-1 = %+v", inv)
	}
}

func TestParse_Prefixes(t *testing.T) {
	reg := DefaultRegistry()
	km := reg.MustParse("km")
	m := reg.MustParse("m")
	q, err := Quantity{Value: 1, Unit: km}.To(m)
	if err != nil {
		t.Fatal(err)
	}
	if q.Value != 1000 {
		t.Errorf("1 km = %v m", q.Value)
	}
	if _, ok := reg.Lookup("Myr"); !ok {
		t.Error("expected Myr via prefix")
	}
	if _, ok := reg.Lookup("kMsun"); ok {
		t.Error("Msun is not prefixable")
	}
}

func TestParse_Errors(t *testing.T) {
	reg := DefaultRegistry()
	_, err := reg.Parse("furlong/fortnight")
	if !errors.Is(err, ErrUnknownUnit) || !errors.Is(err, ErrSyntax) {
		t.Errorf("expected unknown unit syntax error, got %v", err)
	}
	for _, expr := range []string{"(kpc", "kpc**", "kpc$", "kpc)"} {
		if _, err := reg.Parse(expr); !errors.Is(err, ErrSyntax) {
			t.Errorf("Parse(%q): expected ErrSyntax, got %v", expr, err)
		}
	}
	u, err := reg.Parse("")
	if err != nil || !u.Dim.IsDimensionless() {
		t.Errorf("empty expression should be dimensionless, got %+v, %v", u, err)
	}
}

func TestQuantity_ToDimensionMismatch(t *testing.T) {
	reg := DefaultRegistry()
	_, err := Quantity{Value: 1, Unit: reg.MustParse("kpc")}.To(reg.MustParse("s"))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestArray_ToPhysical(t *testing.T) {
	sys := newTestSystem(t, 0.25)
	a, err := sys.Array([]float64{4, 8, 12}, "kpccm/h")
	if err != nil {
		t.Fatal(err)
	}
	phys, err := sys.ArrayToPhysical(a)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{1, 2, 3} {
		if phys.Values[i] != want {
			t.Errorf("phys[%d] = %v, want %v", i, phys.Values[i], want)
		}
	}
	if !strings.HasSuffix(phys.String(), "kpc/h") {
		t.Errorf("unexpected string %q", phys.String())
	}
}

func TestNewSystem_InvalidScaleFactor(t *testing.T) {
	if _, err := NewSystem(nil, 0, 0.7); !errors.Is(err, ErrInvalidScaleFactor) {
		t.Fatalf("expected ErrInvalidScaleFactor, got %v", err)
	}
	if _, err := NewSystem(nil, 0.5, 0); err == nil {
		t.Fatal("expected error for zero little h")
	}
}

func TestDimension_String(t *testing.T) {
	if got := DimComovingLength.String(); got != "length/scale_factor" {
		t.Errorf("comoving length = %q", got)
	}
	energy := DimMass.Mul(DimLength.Pow(2)).Div(DimTime.Pow(2))
	if got := energy.String(); got != "mass*length**2/time**2" {
		t.Errorf("energy = %q", got)
	}
}
