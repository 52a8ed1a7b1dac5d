package bulk

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gftdcojp/tng-client/internal/metrics"
	"github.com/gftdcojp/tng-client/pkg/tng"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MassField is the listing column compared against the mass threshold.
const MassField = "mass_log_msun"

// PageFetcher retrieves one listing page. *tng.Client satisfies it.
type PageFetcher interface {
	Page(ctx context.Context, rawURL string) (*tng.Page, error)
}

// Writer fetches listing pages and appends their rows to a sink.
type Writer struct {
	fetcher PageFetcher
	sink    *Sink
	logger  *zap.Logger

	// MassThreshold, when set, keeps only rows whose log10 mass is strictly
	// greater than it. Rows without the field are dropped.
	MassThreshold *float64
}

func NewWriter(fetcher PageFetcher, sink *Sink, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{fetcher: fetcher, sink: sink, logger: logger.Named("bulk")}
}

// WritePage fetches one page, filters it and appends the survivors. The
// task advances by the number of rows fetched; the return value is the
// number written.
func (w *Writer) WritePage(ctx context.Context, rawURL string, task tng.ProgressTask) (int, error) {
	w.logger.Debug("fetching page", zap.String("url", rawURL))
	page, err := w.fetcher.Page(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	rows := w.filter(page.Results)
	n, err := w.sink.Append(ctx, rows)
	if err != nil {
		return 0, err
	}
	table := w.sink.Table()
	metrics.BulkRowsWritten.WithLabelValues(table).Add(float64(n))
	metrics.BulkRowsFiltered.WithLabelValues(table).Add(float64(len(page.Results) - len(rows)))
	if task != nil {
		task.Add(int64(len(page.Results)))
	}
	w.logger.Debug("wrote page", zap.String("url", rawURL), zap.Int("rows", n))
	return n, nil
}

func (w *Writer) filter(rows []map[string]any) []map[string]any {
	if w.MassThreshold == nil {
		return rows
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		if m, ok := r[MassField].(float64); ok && m > *w.MassThreshold {
			out = append(out, r)
		}
	}
	return out
}

// Run writes every page using up to workers goroutines. Each worker owns a
// contiguous slice of urls. The first error cancels the remaining work.
func (w *Writer) Run(ctx context.Context, urls []string, workers int, task tng.ProgressTask) (int, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(urls) {
		workers = len(urls)
	}
	var total atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for i, part := range Split(urls, workers) {
		g.Go(func() error {
			for _, u := range part {
				n, err := w.WritePage(ctx, u, task)
				if err != nil {
					return fmt.Errorf("worker %d: %s: %w", i, u, err)
				}
				total.Add(int64(n))
			}
			return nil
		})
	}
	err := g.Wait()
	return int(total.Load()), err
}

// SubhaloPages lists the page URLs covering count subhalos of a snapshot.
func SubhaloPages(c *tng.Client, simulation string, snapshot, count, pageSize int) []string {
	if pageSize <= 0 || count <= 0 {
		return nil
	}
	var urls []string
	for off := 0; off < count; off += pageSize {
		urls = append(urls, c.SubhaloListURL(simulation, snapshot, pageSize, off))
	}
	return urls
}
