package tng

import (
	"context"
	"fmt"

	"github.com/gftdcojp/tng-client/pkg/cosmology"
	"github.com/gftdcojp/tng-client/pkg/units"
)

// frame is the cosmological context of a node below the simulation level.
type frame struct {
	cosmo    cosmology.Cosmology
	redshift float64
	system   *units.System
}

func newFrame(base *units.Registry, simAttrs map[string]any, redshift float64) (frame, error) {
	cosmo, err := cosmologyOf(simAttrs)
	if err != nil {
		return frame{}, err
	}
	a, err := cosmo.ScaleFactor(redshift)
	if err != nil {
		return frame{}, err
	}
	sys, err := units.NewSystem(base, a, cosmo.LittleH())
	if err != nil {
		return frame{}, fmt.Errorf("tng: building unit system: %w", err)
	}
	return frame{cosmo: cosmo, redshift: redshift, system: sys}, nil
}

func (f *frame) Cosmology() cosmology.Cosmology { return f.cosmo }
func (f *frame) Redshift() float64              { return f.redshift }
func (f *frame) ScaleFactor() float64           { return f.system.ScaleFactor() }

// Units returns the comoving unit system bound to this node's scale factor.
func (f *frame) Units() *units.System { return f.system }

// Snapshot is one output time of a simulation.
type Snapshot struct {
	resource
	frame
	simAttrs map[string]any
}

func newSnapshot(ctx context.Context, c *Client, id Identity) (*Snapshot, error) {
	s := &Snapshot{resource: newResource(c, id)}
	simAttrs, err := c.metadata(ctx, "simulation", c.simulationURL(id.Simulation))
	if err != nil {
		return nil, err
	}
	attrs, err := s.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	z, err := number(attrs, "redshift")
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id.Key(), err)
	}
	f, err := newFrame(c.units, simAttrs, z)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id.Key(), err)
	}
	s.frame = f
	s.simAttrs = simAttrs
	return s, nil
}

func (s *Snapshot) Meta() map[string]any {
	return map[string]any{
		KeySimulation: s.simAttrs,
		KeySnapshot:   s.id.Snapshot,
	}
}

// SimulationName returns the parent simulation's name.
func (s *Snapshot) SimulationName() string { return s.id.Simulation }

// Parents returns the parent simulation's name, not a node.
func (s *Snapshot) Parents() string { return s.id.Simulation }

func (s *Snapshot) Number() int { return s.id.Snapshot }
