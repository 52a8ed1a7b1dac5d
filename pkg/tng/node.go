package tng

import (
	"context"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Node is one resolved level of the archive hierarchy. Attributes are
// fetched on first use and kept for the node's lifetime.
type Node interface {
	Level() Level
	Identity() Identity
	URL() string

	// Meta returns the ancestor state captured at construction.
	Meta() map[string]any

	// Attributes returns the node's metadata document. The returned map is
	// shared and must not be modified.
	Attributes(ctx context.Context) (map[string]any, error)

	// Attribute returns one top-level attribute and whether it is present.
	Attribute(ctx context.Context, name string) (any, bool, error)

	// Field evaluates a JSONPath expression against the attributes.
	Field(ctx context.Context, path string) ([]any, error)

	// Fetch performs an explicit, uncached retrieval of the node's URL.
	Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error)

	AvailableFiles(ctx context.Context) (map[string]any, error)
	AvailableVisuals(ctx context.Context) (map[string]any, error)
	RenderVisual(ctx context.Context, key string, r Renderer) ([]byte, error)

	String() string
}

// resource carries what every level shares: identity, endpoint and the
// attribute cell.
type resource struct {
	client *Client
	id     Identity
	url    string
	attrs  cell[map[string]any]
}

func newResource(c *Client, id Identity) resource {
	return resource{client: c, id: id, url: c.EndpointURL(id)}
}

func (r *resource) Level() Level       { return r.id.Level }
func (r *resource) Identity() Identity { return r.id }
func (r *resource) URL() string        { return r.url }

func (r *resource) String() string {
	return fmt.Sprintf("<%s> [name=%s]", r.id.Level, r.id.name())
}

func (r *resource) Attributes(ctx context.Context) (map[string]any, error) {
	return r.attrs.get(ctx, func(ctx context.Context) (map[string]any, error) {
		return r.client.metadata(ctx, strings.ToLower(r.id.Level.String()), r.url)
	})
}

// Fetched reports whether the attributes are already cached.
func (r *resource) Fetched() bool {
	_, ok := r.attrs.peek()
	return ok
}

func (r *resource) Attribute(ctx context.Context, name string) (any, bool, error) {
	attrs, err := r.Attributes(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := attrs[name]
	return v, ok, nil
}

func (r *resource) Field(ctx context.Context, path string) ([]any, error) {
	if !strings.HasPrefix(path, "$") {
		path = "$." + path
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("tng: parsing field path %q: %w", path, err)
	}
	attrs, err := r.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	return x.Get(attrs), nil
}

func (r *resource) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	return r.client.Fetch(ctx, r.url, opts)
}

func (r *resource) AvailableFiles(ctx context.Context) (map[string]any, error) {
	return r.subMapping(ctx, "files")
}

func (r *resource) AvailableVisuals(ctx context.Context) (map[string]any, error) {
	return r.subMapping(ctx, "vis")
}

func (r *resource) subMapping(ctx context.Context, key string) (map[string]any, error) {
	attrs, err := r.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := attrs[key]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s of %s is %T, not an object", ErrMissingField, key, r.id.Key(), v)
	}
	return m, nil
}

func (r *resource) RenderVisual(ctx context.Context, key string, rd Renderer) ([]byte, error) {
	return r.client.renderVisual(ctx, r, key, rd)
}

// number reads a numeric attribute.
func number(attrs map[string]any, key string) (float64, error) {
	v, ok := attrs[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %q is %T, not a number", ErrMissingField, key, v)
	}
	return f, nil
}

func vector(attrs map[string]any, keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		f, err := number(attrs, k)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func str(attrs map[string]any, key string) (string, error) {
	v, ok := attrs[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, not a string", ErrMissingField, key, v)
	}
	return s, nil
}

var (
	_ Node = (*Simulation)(nil)
	_ Node = (*Snapshot)(nil)
	_ Node = (*Subhalo)(nil)
)
