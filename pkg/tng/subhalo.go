package tng

import (
	"context"
	"fmt"
	"math"

	"github.com/gftdcojp/tng-client/pkg/units"
)

// Unit expressions of the derived subhalo fields.
const (
	UnitPosition = "kpccm/h"
	UnitVelocity = "km/s"
	UnitSpin     = "(kpc/h)*(km/s)"
	UnitSFR      = "Msun/yr"
	UnitMass     = "Msun"
)

// Subhalo is one bound substructure within a snapshot.
type Subhalo struct {
	resource
	frame
	simAttrs  map[string]any
	snapAttrs map[string]any
}

func newSubhalo(ctx context.Context, c *Client, id Identity) (*Subhalo, error) {
	simAttrs, err := c.metadata(ctx, "simulation", c.simulationURL(id.Simulation))
	if err != nil {
		return nil, err
	}
	snapAttrs, err := c.metadata(ctx, "snapshot", c.snapshotURL(id.Simulation, id.Snapshot))
	if err != nil {
		return nil, err
	}
	z, err := number(snapAttrs, "redshift")
	if err != nil {
		return nil, fmt.Errorf("subhalo %s: snapshot %w", id.Key(), err)
	}
	f, err := newFrame(c.units, simAttrs, z)
	if err != nil {
		return nil, fmt.Errorf("subhalo %s: %w", id.Key(), err)
	}
	return &Subhalo{
		resource:  newResource(c, id),
		frame:     f,
		simAttrs:  simAttrs,
		snapAttrs: snapAttrs,
	}, nil
}

func (s *Subhalo) Meta() map[string]any {
	return map[string]any{
		KeySimulation: s.simAttrs,
		KeySnapshot:   s.snapAttrs,
		KeySubhalo:    s.id.Subhalo,
	}
}

func (s *Subhalo) SimulationName() string { return s.id.Simulation }
func (s *Subhalo) SnapshotNumber() int    { return s.id.Snapshot }
func (s *Subhalo) ID() int                { return s.id.Subhalo }

// Parent returns the snap attribute, the parent snapshot reference as
// reported by the archive.
func (s *Subhalo) Parent(ctx context.Context) (any, error) {
	v, ok, err := s.Attribute(ctx, "snap")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q of subhalo %s", ErrMissingField, "snap", s.id.Key())
	}
	return v, nil
}

func (s *Subhalo) array(ctx context.Context, expr string, keys ...string) (units.Array, error) {
	attrs, err := s.Attributes(ctx)
	if err != nil {
		return units.Array{}, err
	}
	v, err := vector(attrs, keys...)
	if err != nil {
		return units.Array{}, err
	}
	return s.system.Array(v, expr)
}

func (s *Subhalo) scalar(ctx context.Context, key string) (float64, error) {
	attrs, err := s.Attributes(ctx)
	if err != nil {
		return 0, err
	}
	return number(attrs, key)
}

func (s *Subhalo) CenterOfMass(ctx context.Context) (units.Array, error) {
	return s.array(ctx, UnitPosition, "cm_x", "cm_y", "cm_z")
}

func (s *Subhalo) Center(ctx context.Context) (units.Array, error) {
	return s.array(ctx, UnitPosition, "pos_x", "pos_y", "pos_z")
}

func (s *Subhalo) PeculiarVelocity(ctx context.Context) (units.Array, error) {
	return s.array(ctx, UnitVelocity, "vel_x", "vel_y", "vel_z")
}

func (s *Subhalo) Spin(ctx context.Context) (units.Array, error) {
	return s.array(ctx, UnitSpin, "spin_x", "spin_y", "spin_z")
}

// VelocityDispersion3D is sqrt(3) times the one-dimensional dispersion.
func (s *Subhalo) VelocityDispersion3D(ctx context.Context) (units.Quantity, error) {
	v, err := s.scalar(ctx, "veldisp")
	if err != nil {
		return units.Quantity{}, err
	}
	return s.system.Quantity(math.Sqrt(3)*v, UnitVelocity)
}

func (s *Subhalo) StarFormationRate(ctx context.Context) (units.Quantity, error) {
	v, err := s.scalar(ctx, "sfr")
	if err != nil {
		return units.Quantity{}, err
	}
	return s.system.Quantity(v, UnitSFR)
}

// Mass is 10^mass_log_msun solar masses.
func (s *Subhalo) Mass(ctx context.Context) (units.Quantity, error) {
	v, err := s.scalar(ctx, "mass_log_msun")
	if err != nil {
		return units.Quantity{}, err
	}
	return s.system.Quantity(math.Pow(10, v), UnitMass)
}

// Download saves the subhalo's cutout to filename.
func (s *Subhalo) Download(ctx context.Context, filename string, opts CutoutOptions) (string, error) {
	return s.client.DownloadCutout(ctx, s.id.Simulation, s.id.Snapshot, s.id.Subhalo, filename, opts)
}

// DerivedFields collects every unit-bearing subhalo field.
type DerivedFields struct {
	CenterOfMass         units.Array
	Center               units.Array
	PeculiarVelocity     units.Array
	Spin                 units.Array
	VelocityDispersion3D units.Quantity
	StarFormationRate    units.Quantity
	Mass                 units.Quantity
}

// Derived computes all derived fields in the comoving frame.
func (s *Subhalo) Derived(ctx context.Context) (*DerivedFields, error) {
	var (
		d   DerivedFields
		err error
	)
	if d.CenterOfMass, err = s.CenterOfMass(ctx); err != nil {
		return nil, err
	}
	if d.Center, err = s.Center(ctx); err != nil {
		return nil, err
	}
	if d.PeculiarVelocity, err = s.PeculiarVelocity(ctx); err != nil {
		return nil, err
	}
	if d.Spin, err = s.Spin(ctx); err != nil {
		return nil, err
	}
	if d.VelocityDispersion3D, err = s.VelocityDispersion3D(ctx); err != nil {
		return nil, err
	}
	if d.StarFormationRate, err = s.StarFormationRate(ctx); err != nil {
		return nil, err
	}
	if d.Mass, err = s.Mass(ctx); err != nil {
		return nil, err
	}
	return &d, nil
}

// ToPhysical converts every comoving field of d through sys.
func (d *DerivedFields) ToPhysical(sys *units.System) (*DerivedFields, error) {
	out := *d
	arrays := []*units.Array{&out.CenterOfMass, &out.Center, &out.PeculiarVelocity, &out.Spin}
	for _, a := range arrays {
		p, err := sys.ArrayToPhysical(*a)
		if err != nil {
			return nil, err
		}
		*a = p
	}
	quantities := []*units.Quantity{&out.VelocityDispersion3D, &out.StarFormationRate, &out.Mass}
	for _, q := range quantities {
		p, err := sys.ToPhysical(*q)
		if err != nil {
			return nil, err
		}
		*q = p
	}
	return &out, nil
}
