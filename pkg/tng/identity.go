package tng

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is the depth of a node in the simulation hierarchy.
type Level int

const (
	LevelSimulation Level = iota
	LevelSnapshot
	LevelSubhalo
)

func (l Level) String() string {
	switch l {
	case LevelSimulation:
		return "Simulation"
	case LevelSnapshot:
		return "Snapshot"
	case LevelSubhalo:
		return "Subhalo"
	default:
		return "Level(" + strconv.Itoa(int(l)) + ")"
	}
}

// Identifying argument names accepted by ResolveIdentity.
const (
	KeySimulation = "simulation"
	KeySnapshot   = "snapshot"
	KeySubhalo    = "subhalo"
)

var levelKeys = [][]string{
	{KeySimulation},
	{KeySimulation, KeySnapshot},
	{KeySimulation, KeySnapshot, KeySubhalo},
}

// Identity names one node. Snapshot is meaningful from LevelSnapshot down,
// Subhalo only at LevelSubhalo.
type Identity struct {
	Level      Level
	Simulation string
	Snapshot   int
	Subhalo    int
}

func SimulationID(name string) Identity {
	return Identity{Level: LevelSimulation, Simulation: name}
}

func SnapshotID(name string, snapshot int) Identity {
	return Identity{Level: LevelSnapshot, Simulation: name, Snapshot: snapshot}
}

func SubhaloID(name string, snapshot, subhalo int) Identity {
	return Identity{Level: LevelSubhalo, Simulation: name, Snapshot: snapshot, Subhalo: subhalo}
}

// ResolveIdentity picks the level from the number of identifying arguments:
// one names a simulation, two a snapshot and three a subhalo. The arguments
// must be exactly the keys that level requires.
func ResolveIdentity(args map[string]string) (Identity, error) {
	n := len(args)
	if n < 1 || n > len(levelKeys) {
		return Identity{}, fmt.Errorf("%w: %d identifying arguments, want 1 to %d", ErrInvalidIdentity, n, len(levelKeys))
	}
	keys := levelKeys[n-1]
	parts := make([]string, len(keys))
	for i, k := range keys {
		v, ok := args[k]
		if !ok {
			return Identity{}, fmt.Errorf("%w: %s level requires %q", ErrInvalidIdentity, Level(n-1), k)
		}
		parts[i] = v
	}
	return IdentityFromPath(parts...)
}

// IdentityFromPath builds an identity from ordered components, as in
// "Illustris-3", "75", "2".
func IdentityFromPath(parts ...string) (Identity, error) {
	if len(parts) < 1 || len(parts) > len(levelKeys) {
		return Identity{}, fmt.Errorf("%w: %d path components, want 1 to %d", ErrInvalidIdentity, len(parts), len(levelKeys))
	}
	id := Identity{Level: Level(len(parts) - 1), Simulation: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		n, err := parseIndex(KeySnapshot, parts[1])
		if err != nil {
			return Identity{}, err
		}
		id.Snapshot = n
	}
	if len(parts) > 2 {
		n, err := parseIndex(KeySubhalo, parts[2])
		if err != nil {
			return Identity{}, err
		}
		id.Subhalo = n
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func parseIndex(key, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidIdentity, key, s)
	}
	return n, nil
}

func (id Identity) Validate() error {
	if id.Level < LevelSimulation || id.Level > LevelSubhalo {
		return fmt.Errorf("%w: unknown level %d", ErrInvalidIdentity, int(id.Level))
	}
	if id.Simulation == "" || strings.ContainsAny(id.Simulation, "/?#") {
		return fmt.Errorf("%w: bad simulation name %q", ErrInvalidIdentity, id.Simulation)
	}
	if id.Snapshot < 0 || id.Subhalo < 0 {
		return fmt.Errorf("%w: negative index", ErrInvalidIdentity)
	}
	return nil
}

// Path returns the ordered components, the inverse of IdentityFromPath.
func (id Identity) Path() []string {
	parts := []string{id.Simulation}
	if id.Level >= LevelSnapshot {
		parts = append(parts, strconv.Itoa(id.Snapshot))
	}
	if id.Level >= LevelSubhalo {
		parts = append(parts, strconv.Itoa(id.Subhalo))
	}
	return parts
}

// Key is a stable string form suitable for cache keys and object names.
func (id Identity) Key() string {
	return strings.Join(id.Path(), "/")
}

// name is the value shown in a node's string form.
func (id Identity) name() string {
	switch id.Level {
	case LevelSnapshot:
		return strconv.Itoa(id.Snapshot)
	case LevelSubhalo:
		return strconv.Itoa(id.Subhalo)
	default:
		return id.Simulation
	}
}
