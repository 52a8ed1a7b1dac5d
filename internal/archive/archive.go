// Package archive assembles an archive client and its optional document
// cache and cutout mirror from configuration.
package archive

import (
	"context"
	"fmt"

	"github.com/gftdcojp/tng-client/internal/blob"
	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/gftdcojp/tng-client/internal/lifecycle"
	"github.com/gftdcojp/tng-client/internal/memory"
	"github.com/gftdcojp/tng-client/internal/meta"
	"github.com/gftdcojp/tng-client/internal/tier"
	"github.com/gftdcojp/tng-client/pkg/s3util"
	"github.com/gftdcojp/tng-client/pkg/tng"
	"go.uber.org/zap"
)

// Archive is a configured client plus the resources it owns.
type Archive struct {
	Client *tng.Client

	// Cache is nil unless cache.enabled.
	Cache *meta.BoltStore
	// Memory is nil unless cache.memory.enabled.
	Memory *memory.Store
	// S3 and Mirror are nil unless mirror.enabled.
	S3     *s3util.Client
	Mirror *blob.Store
}

// Options adjust client construction beyond the configuration file.
type Options struct {
	Progress tng.Progress
}

// Open builds the client described by cfg.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Archive{}
	clientCfg := tng.FromConfig(cfg.API)
	clientCfg.Logger = logger
	clientCfg.Progress = opts.Progress

	var tiers []tier.Tier
	if cfg.Cache.Memory.Enabled {
		a.Memory = memory.NewStore(cfg.Cache.Memory, logger.Named("memory"))
		tiers = append(tiers, tier.Tier{Name: "memory", Store: a.Memory})
	}
	if cfg.Cache.Enabled {
		store, err := meta.NewBoltStoreWithOptions(cfg.Cache.Path, logger, meta.Options{NoSync: cfg.Cache.NoSync})
		if err != nil {
			return nil, fmt.Errorf("opening document cache: %w", err)
		}
		a.Cache = store
		tiers = append(tiers, tier.Tier{Name: "bolt", Store: store})
	}
	if len(tiers) > 0 {
		clientCfg.Cache = tier.NewChain(logger.Named("tier"), tiers...)
	}

	if cfg.Mirror.Enabled {
		s3c, err := s3util.NewClient(ctx, cfg.Mirror)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating S3 client: %w", err)
		}
		a.S3 = s3c
		a.Mirror = blob.NewStore(s3c.S3, cfg.Mirror, logger)
		clientCfg.Mirror = a.Mirror
	}

	client, err := tng.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Client = client
	return a, nil
}

// Expiry returns a lifecycle manager enforcing cache.max_age on the
// on-disk cache, or nil when there is nothing to expire.
func (a *Archive) Expiry(cfg config.CacheConfig, logger *zap.Logger) *lifecycle.Manager {
	if a.Cache == nil || cfg.MaxAge <= 0 {
		return nil
	}
	return lifecycle.NewManager(a.Cache, cfg.MaxAge.Duration(), logger)
}

// CacheStore returns the cache as a meta.Store, or nil when disabled.
func (a *Archive) CacheStore() meta.Store {
	if a.Cache == nil {
		return nil
	}
	return a.Cache
}

func (a *Archive) Close() error {
	if a.Memory != nil {
		a.Memory.Close()
	}
	if a.Cache != nil {
		return a.Cache.Close()
	}
	return nil
}
