package cosmology

import (
	"errors"
	"math"
	"testing"
)

func TestLookup_LegacySpellings(t *testing.T) {
	for name, want := range map[string]float64{
		"WMAP-1":     0.72,
		"WMAP-9":     0.6932,
		"Planck2013": 0.6777,
		"Plank2015":  0.6774,
		"Plank2018":  0.6766,
	} {
		c, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if math.Abs(c.LittleH()-want) > 1e-12 {
			t.Errorf("%s: h = %v, want %v", name, c.LittleH(), want)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("EdS")
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestScaleFactor(t *testing.T) {
	a, err := Planck15.ScaleFactor(1)
	if err != nil {
		t.Fatal(err)
	}
	if a != 0.5 {
		t.Errorf("a(z=1) = %v, want 0.5", a)
	}
	a, _ = Planck15.ScaleFactor(0)
	if a != 1 {
		t.Errorf("a(z=0) = %v, want 1", a)
	}
	if _, err := Planck15.ScaleFactor(-1); err == nil {
		t.Error("expected error for z=-1")
	}
}

func TestNames_Sorted(t *testing.T) {
	n := Names()
	if len(n) != len(names) {
		t.Fatalf("got %d names", len(n))
	}
	for i := 1; i < len(n); i++ {
		if n[i-1] > n[i] {
			t.Fatalf("names not sorted: %v", n)
		}
	}
}
