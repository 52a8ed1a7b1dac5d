package tng

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gftdcojp/tng-client/pkg/cosmology"
)

// Simulation is the root of the hierarchy. Constructing one performs no
// remote call.
type Simulation struct {
	resource
	snapshots cell[[]SnapshotRef]
}

// SnapshotRef is one entry of a simulation's snapshot index.
type SnapshotRef struct {
	Number   int     `json:"number"`
	Redshift float64 `json:"redshift"`
	URL      string  `json:"url"`
}

func (s *Simulation) Name() string { return s.id.Simulation }

func (s *Simulation) Meta() map[string]any {
	return map[string]any{KeySimulation: s.id.Simulation}
}

// ParentSimulations projects the parent_simulation attribute.
func (s *Simulation) ParentSimulations(ctx context.Context) (any, error) {
	return s.project(ctx, "parent_simulation")
}

// ChildSimulations projects the child_simulation attribute.
func (s *Simulation) ChildSimulations(ctx context.Context) (any, error) {
	return s.project(ctx, "child_simulation")
}

func (s *Simulation) project(ctx context.Context, key string) (any, error) {
	v, ok, err := s.Attribute(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q of %s", ErrMissingField, key, s.id.Simulation)
	}
	return v, nil
}

// Cosmology resolves the simulation's named cosmology.
func (s *Simulation) Cosmology(ctx context.Context) (cosmology.Cosmology, error) {
	attrs, err := s.Attributes(ctx)
	if err != nil {
		return cosmology.Cosmology{}, err
	}
	return cosmologyOf(attrs)
}

// Snapshots returns the snapshot index. It is fetched once, separately from
// the attributes.
func (s *Simulation) Snapshots(ctx context.Context) ([]SnapshotRef, error) {
	return s.snapshots.get(ctx, func(ctx context.Context) ([]SnapshotRef, error) {
		attrs, err := s.Attributes(ctx)
		if err != nil {
			return nil, err
		}
		indexURL, err := str(attrs, "snapshots")
		if err != nil {
			return nil, err
		}
		body, err := s.client.document(ctx, "snapshots", indexURL)
		if err != nil {
			return nil, err
		}
		var refs []SnapshotRef
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(&refs); err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %w", ErrNotMetadata, indexURL, err)
		}
		return refs, nil
	})
}

func cosmologyOf(simAttrs map[string]any) (cosmology.Cosmology, error) {
	name, err := str(simAttrs, "cosmology")
	if err != nil {
		return cosmology.Cosmology{}, err
	}
	return cosmology.Lookup(name)
}
