package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Archive fetch metrics
	FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tng_fetch_requests_total",
		Help: "Remote archive requests by resource kind and outcome",
	}, []string{"kind", "status"})

	FetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tng_fetch_latency_seconds",
		Help:    "Remote archive request latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	FetchBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tng_fetch_bytes_total",
		Help: "Response bytes received from the archive",
	}, []string{"kind"})

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tng_cache_lookups_total",
		Help: "Metadata and node cache lookups by cache and result",
	}, []string{"cache", "result"})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tng_cache_evictions_total",
		Help: "Entries evicted from a bounded cache",
	}, []string{"cache"})

	CacheBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tng_cache_bytes",
		Help: "Bytes currently held by a cache",
	}, []string{"cache"})

	CachePruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tng_cache_pruned_total",
		Help: "Documents removed from the on-disk cache by age",
	})

	// Cutout metrics
	CutoutDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tng_cutout_downloads_total",
		Help: "Cutout downloads by halo kind and outcome",
	}, []string{"halo", "status"})

	// Mirror metrics
	MirrorUploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tng_mirror_upload_duration_seconds",
		Help:    "S3 mirror upload latency",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"bucket"})

	MirrorUploadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tng_mirror_upload_errors_total",
		Help: "S3 mirror upload failures",
	}, []string{"bucket", "error_type"})

	// Gateway metrics
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tng_gateway_requests_total",
		Help: "Gateway requests by transport, route and outcome",
	}, []string{"transport", "route", "status"})

	// Bulk metrics
	BulkRowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tng_bulk_rows_written_total",
		Help: "Rows appended to the bulk sink",
	}, []string{"table"})

	BulkRowsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tng_bulk_rows_filtered_total",
		Help: "Rows dropped by the mass threshold",
	}, []string{"table"})
)

// RunServer starts the Prometheus metrics HTTP server.
func RunServer(ctx context.Context, cfg config.MetricsConfig) error {
	mux := http.NewServeMux()
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
