package tng

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Open resolves id to its concrete node. Snapshot and Subhalo construction
// fetches ancestor metadata; Simulation construction is free.
func (c *Client) Open(ctx context.Context, id Identity) (Node, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	var (
		n   Node
		err error
	)
	switch id.Level {
	case LevelSimulation:
		n, err = asNode(c.Simulation(id.Simulation))
	case LevelSnapshot:
		n, err = asNode(c.Snapshot(ctx, id.Simulation, id.Snapshot))
	case LevelSubhalo:
		n, err = asNode(c.Subhalo(ctx, id.Simulation, id.Snapshot, id.Subhalo))
	default:
		err = fmt.Errorf("%w: level %s", ErrInvalidIdentity, id.Level)
	}
	return n, err
}

// asNode keeps a failed constructor from yielding a typed nil Node.
func asNode[T Node](v T, err error) (Node, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// OpenArgs resolves named identifying arguments; the argument count picks
// the level.
func (c *Client) OpenArgs(ctx context.Context, args map[string]string) (Node, error) {
	id, err := ResolveIdentity(args)
	if err != nil {
		return nil, err
	}
	return c.Open(ctx, id)
}

func (c *Client) Simulation(name string) (*Simulation, error) {
	id := SimulationID(name)
	if err := id.Validate(); err != nil {
		return nil, err
	}
	c.logLoad(id)
	return &Simulation{resource: newResource(c, id)}, nil
}

func (c *Client) Snapshot(ctx context.Context, simulation string, snapshot int) (*Snapshot, error) {
	id := SnapshotID(simulation, snapshot)
	if err := id.Validate(); err != nil {
		return nil, err
	}
	c.logLoad(id)
	return newSnapshot(ctx, c, id)
}

func (c *Client) Subhalo(ctx context.Context, simulation string, snapshot, subhalo int) (*Subhalo, error) {
	id := SubhaloID(simulation, snapshot, subhalo)
	if err := id.Validate(); err != nil {
		return nil, err
	}
	c.logLoad(id)
	return newSubhalo(ctx, c, id)
}

func (c *Client) logLoad(id Identity) {
	c.logger.Info("loading node", zap.Stringer("level", id.Level), zap.String("identity", id.Key()))
}
