package serve

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/gftdcojp/tng-client/internal/metrics"
	"github.com/gftdcojp/tng-client/pkg/tng"
	"go.uber.org/zap"
)

type handler struct {
	resolver *Resolver
	logger   *zap.Logger
}

// NewMux returns the gateway's HTTP routes.
func NewMux(resolver *Resolver, logger *zap.Logger) *http.ServeMux {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{resolver: resolver, logger: logger.Named("http")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", h.handleStatus)
	mux.HandleFunc("GET /v1/nodes/{simulation}", h.handleNode)
	mux.HandleFunc("GET /v1/nodes/{simulation}/{snapshot}", h.handleNode)
	mux.HandleFunc("GET /v1/nodes/{simulation}/{snapshot}/{subhalo}", h.handleNode)
	mux.HandleFunc("GET /v1/derived/{simulation}/{snapshot}/{subhalo}", h.handleDerived)
	return mux
}

// RunHTTP starts the HTTP API server.
func RunHTTP(ctx context.Context, cfg config.HTTPConfig, resolver *Resolver, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: NewMux(resolver, logger),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("HTTP API listening", zap.String("addr", cfg.Listen))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"cached_nodes": h.resolver.Len(),
	})
}

// pathIdentity reads whichever of the identifying path values are present.
func pathIdentity(r *http.Request) (tng.Identity, error) {
	parts := []string{r.PathValue("simulation")}
	for _, k := range []string{"snapshot", "subhalo"} {
		v := r.PathValue(k)
		if v == "" {
			break
		}
		parts = append(parts, v)
	}
	return tng.IdentityFromPath(parts...)
}

func (h *handler) handleNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathIdentity(r)
	if err != nil {
		h.fail(w, "node", err)
		return
	}
	n, err := h.resolver.Resolve(r.Context(), id)
	if err != nil {
		h.fail(w, "node", err)
		return
	}
	view, err := viewNode(r.Context(), n)
	if err != nil {
		h.fail(w, "node", err)
		return
	}
	h.ok(w, "node", view)
}

func (h *handler) handleDerived(w http.ResponseWriter, r *http.Request) {
	id, err := pathIdentity(r)
	if err != nil {
		h.fail(w, "derived", err)
		return
	}
	n, err := h.resolver.Resolve(r.Context(), id)
	if err != nil {
		h.fail(w, "derived", err)
		return
	}
	view, err := viewDerived(r.Context(), n, r.URL.Query().Get("frame"))
	if err != nil {
		h.fail(w, "derived", err)
		return
	}
	h.ok(w, "derived", view)
}

func (h *handler) ok(w http.ResponseWriter, route string, v any) {
	metrics.GatewayRequests.WithLabelValues("http", route, "200").Inc()
	writeJSON(w, http.StatusOK, v)
}

func (h *handler) fail(w http.ResponseWriter, route string, err error) {
	status := statusOf(err)
	metrics.GatewayRequests.WithLabelValues("http", route, strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", zap.String("route", route), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
