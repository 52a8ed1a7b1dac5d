package serve

import (
	"context"
	"fmt"

	"github.com/gftdcojp/tng-client/internal/metrics"
	"github.com/gftdcojp/tng-client/pkg/tng"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Opener constructs nodes. *tng.Client satisfies it.
type Opener interface {
	Open(ctx context.Context, id tng.Identity) (tng.Node, error)
}

// Resolver keeps recently resolved nodes so repeated requests reuse their
// cached attributes.
type Resolver struct {
	opener Opener
	nodes  *lru.Cache[string, tng.Node]
	logger *zap.Logger
}

// NewResolver creates a resolver holding at most size nodes.
func NewResolver(opener Opener, size int, logger *zap.Logger) (*Resolver, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, tng.Node](size)
	if err != nil {
		return nil, fmt.Errorf("creating node cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{opener: opener, nodes: cache, logger: logger.Named("resolver")}, nil
}

// Resolve returns the node for id, constructing it on a cache miss. Failed
// constructions are not cached.
func (r *Resolver) Resolve(ctx context.Context, id tng.Identity) (tng.Node, error) {
	key := id.Level.String() + ":" + id.Key()
	if n, ok := r.nodes.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("node", "hit").Inc()
		return n, nil
	}
	metrics.CacheLookups.WithLabelValues("node", "miss").Inc()

	n, err := r.opener.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	if evicted := r.nodes.Add(key, n); evicted {
		r.logger.Debug("node cache eviction", zap.String("added", key))
	}
	return n, nil
}

func (r *Resolver) Len() int { return r.nodes.Len() }
