package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gftdcojp/tng-client/pkg/tng"
	"github.com/gftdcojp/tng-client/pkg/units"
)

// Frames accepted by the derived-field endpoints.
const (
	FrameComoving = "comoving"
	FramePhysical = "physical"
)

var errInvalidFrame = errors.New("invalid frame")

type nodeView struct {
	Level      string         `json:"level"`
	Identity   []string       `json:"identity"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes"`
}

func viewNode(ctx context.Context, n tng.Node) (*nodeView, error) {
	attrs, err := n.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	id := n.Identity()
	return &nodeView{
		Level:      id.Level.String(),
		Identity:   id.Path(),
		URL:        n.URL(),
		Attributes: attrs,
	}, nil
}

type quantityView struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type arrayView struct {
	Values []float64 `json:"values"`
	Unit   string    `json:"unit"`
}

type derivedView struct {
	Identity    []string                `json:"identity"`
	Frame       string                  `json:"frame"`
	Redshift    float64                 `json:"redshift"`
	ScaleFactor float64                 `json:"scale_factor"`
	LittleH     float64                 `json:"little_h"`
	Arrays      map[string]arrayView    `json:"arrays"`
	Quantities  map[string]quantityView `json:"quantities"`
}

func viewDerived(ctx context.Context, n tng.Node, frame string) (*derivedView, error) {
	if frame == "" {
		frame = FrameComoving
	}
	if frame != FrameComoving && frame != FramePhysical {
		return nil, fmt.Errorf("%w %q, want %s or %s", errInvalidFrame, frame, FrameComoving, FramePhysical)
	}
	sub, ok := n.(*tng.Subhalo)
	if !ok {
		return nil, fmt.Errorf("%w: derived fields exist only for subhalos", tng.ErrInvalidIdentity)
	}
	d, err := sub.Derived(ctx)
	if err != nil {
		return nil, err
	}
	if frame == FramePhysical {
		if d, err = d.ToPhysical(sub.Units()); err != nil {
			return nil, err
		}
	}
	arr := func(a units.Array) arrayView { return arrayView{Values: a.Values, Unit: a.Unit.String()} }
	qty := func(q units.Quantity) quantityView { return quantityView{Value: q.Value, Unit: q.Unit.String()} }
	return &derivedView{
		Identity:    sub.Identity().Path(),
		Frame:       frame,
		Redshift:    sub.Redshift(),
		ScaleFactor: sub.ScaleFactor(),
		LittleH:     sub.Units().LittleH(),
		Arrays: map[string]arrayView{
			"center_of_mass":    arr(d.CenterOfMass),
			"center":            arr(d.Center),
			"peculiar_velocity": arr(d.PeculiarVelocity),
			"spin":              arr(d.Spin),
		},
		Quantities: map[string]quantityView{
			"velocity_dispersion_3d": qty(d.VelocityDispersion3D),
			"star_formation_rate":    qty(d.StarFormationRate),
			"mass":                   qty(d.Mass),
		},
	}, nil
}

// statusOf maps a resolution error to an HTTP status.
func statusOf(err error) int {
	if re, ok := tng.IsRemote(err); ok {
		if re.NotFound() {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, tng.ErrInvalidIdentity), errors.Is(err, errInvalidFrame):
		return http.StatusBadRequest
	case errors.Is(err, tng.ErrUnknownResource):
		return http.StatusNotFound
	case errors.Is(err, tng.ErrMissingField), errors.Is(err, tng.ErrUnknownCosmology), errors.Is(err, tng.ErrNotMetadata):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
