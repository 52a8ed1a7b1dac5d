// Package lifecycle expires cached documents older than a configured age.
package lifecycle

import (
	"context"
	"time"

	"github.com/gftdcojp/tng-client/internal/metrics"
	"go.uber.org/zap"
)

// Pruner removes documents fetched before a cutoff. meta.BoltStore
// implements it.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Manager enforces the document cache's maximum age.
type Manager struct {
	store  Pruner
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a new lifecycle manager. A zero maxAge disables
// expiry.
func NewManager(store Pruner, maxAge time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
	}
}

// Run starts the periodic expiry loop. It prunes once immediately.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if _, err := m.Prune(ctx); err != nil {
		m.logger.Error("prune cycle error", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Prune(ctx); err != nil {
				m.logger.Error("prune cycle error", zap.Error(err))
			}
		}
	}
}

// Prune runs one expiry cycle and returns the number of documents removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.maxAge <= 0 {
		return 0, nil
	}
	cutoff := m.now().Add(-m.maxAge)
	n, err := m.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.CachePruned.Add(float64(n))
		m.logger.Info("expired cached documents", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
