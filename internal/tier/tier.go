// Package tier layers document caches from fastest to slowest.
package tier

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Store is the interface every cache tier implements. Both the memory
// and bolt stores satisfy it.
type Store interface {
	Get(ctx context.Context, url string) ([]byte, bool, error)
	Put(ctx context.Context, url string, body []byte) error
}

// Tier is one named level of a Chain.
type Tier struct {
	Name  string
	Store Store
}

// Chain reads through its tiers in order and writes through to all of
// them. A hit in a slower tier is promoted into every faster one.
type Chain struct {
	tiers  []Tier
	logger *zap.Logger
}

// NewChain builds a chain from the non-nil tiers, fastest first.
func NewChain(logger *zap.Logger, tiers ...Tier) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chain{logger: logger}
	for _, t := range tiers {
		if t.Store != nil {
			c.tiers = append(c.tiers, t)
		}
	}
	return c
}

// Len returns the number of tiers.
func (c *Chain) Len() int { return len(c.tiers) }

// Names lists the tiers, fastest first.
func (c *Chain) Names() []string {
	names := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		names[i] = t.Name
	}
	return names
}

// Get returns the first hit. A failing tier is logged and skipped; its
// error is returned only when no tier answers.
func (c *Chain) Get(ctx context.Context, url string) ([]byte, bool, error) {
	var errs []error
	for i, t := range c.tiers {
		body, ok, err := t.Store.Get(ctx, url)
		if err != nil {
			c.logger.Warn("cache tier read failed", zap.String("tier", t.Name), zap.String("url", url), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		if !ok {
			continue
		}
		c.promote(ctx, i, url, body)
		return body, true, nil
	}
	if len(errs) == len(c.tiers) && len(errs) > 0 {
		return nil, false, errors.Join(errs...)
	}
	return nil, false, nil
}

func (c *Chain) promote(ctx context.Context, hit int, url string, body []byte) {
	for _, t := range c.tiers[:hit] {
		if err := t.Store.Put(ctx, url, body); err != nil {
			c.logger.Warn("cache promotion failed", zap.String("tier", t.Name), zap.String("url", url), zap.Error(err))
			continue
		}
		c.logger.Debug("promoted document", zap.String("tier", t.Name), zap.String("url", url))
	}
}

// Put writes body to every tier and joins their errors.
func (c *Chain) Put(ctx context.Context, url string, body []byte) error {
	var errs []error
	for _, t := range c.tiers {
		if err := t.Store.Put(ctx, url, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}
