package tng

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Renderer displays an image fetched from the archive.
type Renderer interface {
	Render(ctx context.Context, key string, image []byte) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, key string, image []byte) error

func (f RendererFunc) Render(ctx context.Context, key string, image []byte) error {
	return f(ctx, key, image)
}

// renderVisual fetches the visual named key and hands it to rd. A remote
// failure is logged and yields no image and no error. The fetch does not
// touch the node's attribute cache.
func (c *Client) renderVisual(ctx context.Context, r *resource, key string, rd Renderer) ([]byte, error) {
	vis, err := r.AvailableVisuals(ctx)
	if err != nil {
		return nil, err
	}
	visURL, ok := vis[key].(string)
	if !ok {
		return nil, fmt.Errorf("%w: visual %q not available in %s", ErrUnknownResource, key, r)
	}

	c.logger.Info("fetching visual", zap.String("key", key), zap.Stringer("node", r))

	resp, err := c.get(ctx, "visual", visURL, nil)
	if err != nil {
		if _, remote := IsRemote(err); remote {
			c.logger.Warn("visual fetch failed", zap.String("key", key), zap.Stringer("node", r), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	if rd != nil {
		if err := rd.Render(ctx, key, resp.Body); err != nil {
			return nil, fmt.Errorf("tng: rendering %q: %w", key, err)
		}
	}
	return resp.Body, nil
}
