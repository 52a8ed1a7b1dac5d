package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsServer_MetricsEndpoint(t *testing.T) {
	// Vec metrics only show up after WithLabelValues() is called.
	FetchRequests.WithLabelValues("metadata", "ok").Add(0)
	FetchLatency.WithLabelValues("metadata").Observe(0)
	FetchBytes.WithLabelValues("metadata").Add(0)
	CacheLookups.WithLabelValues("meta", "hit").Add(0)
	CutoutDownloads.WithLabelValues("subhalo", "ok").Add(0)
	MirrorUploadDuration.WithLabelValues("cutouts").Observe(0)
	MirrorUploadErrors.WithLabelValues("cutouts", "timeout").Add(0)
	GatewayRequests.WithLabelValues("http", "node", "ok").Add(0)
	BulkRowsWritten.WithLabelValues("subhalos").Add(0)
	BulkRowsFiltered.WithLabelValues("subhalos").Add(0)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()

	expectedMetrics := []string{
		"tng_fetch_requests_total",
		"tng_fetch_latency_seconds",
		"tng_fetch_bytes_total",
		"tng_cache_lookups_total",
		"tng_cutout_downloads_total",
		"tng_mirror_upload_duration_seconds",
		"tng_mirror_upload_errors_total",
		"tng_gateway_requests_total",
		"tng_bulk_rows_written_total",
		"tng_bulk_rows_filtered_total",
	}

	for _, name := range expectedMetrics {
		if !strings.Contains(body, name) {
			t.Errorf("expected /metrics to contain %q", name)
		}
	}

	ct := w.Header().Get("Content-Type")
	if !strings.Contains(ct, "text/plain") && !strings.Contains(ct, "text/openmetrics") {
		t.Errorf("expected text/plain or openmetrics content type, got %s", ct)
	}
}
