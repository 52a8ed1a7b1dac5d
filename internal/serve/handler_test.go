package serve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gftdcojp/tng-client/pkg/tng"
	"go.uber.org/zap"
)

// newTestArchive serves one simulation, one snapshot at z=1 and one subhalo,
// and counts requests per path.
func newTestArchive(t *testing.T) (*httptest.Server, func(string) int) {
	t.Helper()
	var (
		mu   sync.Mutex
		hits = map[string]int{}
	)
	docs := map[string]any{
		"/api/Illustris-3/": map[string]any{"name": "Illustris-3", "cosmology": "WMAP-9"},
		"/api/Illustris-3/snapshots/75/": map[string]any{"number": 75, "redshift": 1.0},
		"/api/Illustris-3/snapshots/75/subhalos/2": map[string]any{
			"id": 2, "snap": 75,
			"pos_x": 100.0, "pos_y": 200.0, "pos_z": 300.0,
			"cm_x": 100.0, "cm_y": 200.0, "cm_z": 300.0,
			"vel_x": 1.0, "vel_y": 2.0, "vel_z": 3.0,
			"spin_x": 1.0, "spin_y": 1.0, "spin_z": 1.0,
			"veldisp": 10.0, "sfr": 1.5, "mass_log_msun": 10.0,
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		switch {
		case r.URL.Path == "/api/Broken/":
			http.Error(w, "upstream down", http.StatusServiceUnavailable)
			return
		case docs[r.URL.Path] == nil:
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(docs[r.URL.Path])
	}))
	t.Cleanup(srv.Close)
	return srv, func(path string) int {
		mu.Lock()
		defer mu.Unlock()
		return hits[path]
	}
}

func newTestResolver(t *testing.T, archiveURL string) *Resolver {
	t.Helper()
	client, err := tng.New(tng.Config{BaseURL: archiveURL + "/api", APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewResolver(client, 16, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func doGet(t *testing.T, h http.Handler, target string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding %s response: %v", target, err)
	}
	return w.Code, body
}

func TestHandleNode_Levels(t *testing.T) {
	srv, _ := newTestArchive(t)
	mux := NewMux(newTestResolver(t, srv.URL), zap.NewNop())

	tests := []struct {
		target string
		level  string
	}{
		{"/v1/nodes/Illustris-3", "Simulation"},
		{"/v1/nodes/Illustris-3/75", "Snapshot"},
		{"/v1/nodes/Illustris-3/75/2", "Subhalo"},
	}
	for _, tt := range tests {
		code, body := doGet(t, mux, tt.target)
		if code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (%v)", tt.target, code, body)
		}
		if body["level"] != tt.level {
			t.Errorf("%s: expected level %s, got %v", tt.target, tt.level, body["level"])
		}
		if _, ok := body["attributes"].(map[string]any); !ok {
			t.Errorf("%s: missing attributes", tt.target)
		}
	}
}

func TestHandleNode_CachesResolvedNodes(t *testing.T) {
	srv, hits := newTestArchive(t)
	res := newTestResolver(t, srv.URL)
	mux := NewMux(res, zap.NewNop())

	for i := 0; i < 3; i++ {
		if code, body := doGet(t, mux, "/v1/nodes/Illustris-3/75/2"); code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%v)", code, body)
		}
	}
	if n := hits("/api/Illustris-3/snapshots/75/subhalos/2"); n != 1 {
		t.Fatalf("expected subhalo fetched once, got %d", n)
	}
	if res.Len() != 1 {
		t.Fatalf("expected 1 cached node, got %d", res.Len())
	}
}

func TestHandleNode_Errors(t *testing.T) {
	srv, _ := newTestArchive(t)
	mux := NewMux(newTestResolver(t, srv.URL), zap.NewNop())

	tests := []struct {
		target string
		want   int
	}{
		{"/v1/nodes/Illustris-3/abc", http.StatusBadRequest},
		{"/v1/nodes/Missing", http.StatusNotFound},
		{"/v1/nodes/Illustris-3/12", http.StatusNotFound},
		{"/v1/nodes/Broken", http.StatusBadGateway},
	}
	for _, tt := range tests {
		code, body := doGet(t, mux, tt.target)
		if code != tt.want {
			t.Errorf("%s: expected %d, got %d (%v)", tt.target, tt.want, code, body)
		}
		if body["error"] == nil {
			t.Errorf("%s: expected error body", tt.target)
		}
	}
}

func TestHandleDerived_Frames(t *testing.T) {
	srv, _ := newTestArchive(t)
	mux := NewMux(newTestResolver(t, srv.URL), zap.NewNop())

	code, body := doGet(t, mux, "/v1/derived/Illustris-3/75/2")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", code, body)
	}
	center := body["arrays"].(map[string]any)["center"].(map[string]any)
	if center["unit"] != "kpccm/h" || center["values"].([]any)[0] != 100.0 {
		t.Fatalf("unexpected comoving center %v", center)
	}

	code, body = doGet(t, mux, "/v1/derived/Illustris-3/75/2?frame=physical")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", code, body)
	}
	center = body["arrays"].(map[string]any)["center"].(map[string]any)
	if center["unit"] != "kpc/h" || center["values"].([]any)[0] != 50.0 {
		t.Fatalf("unexpected physical center %v", center)
	}
	if body["scale_factor"] != 0.5 {
		t.Fatalf("expected scale factor 0.5, got %v", body["scale_factor"])
	}

	code, _ = doGet(t, mux, "/v1/derived/Illustris-3/75/2?frame=sideways")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown frame, got %d", code)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&tng.RemoteError{StatusCode: 404}, http.StatusNotFound},
		{&tng.RemoteError{StatusCode: 500}, http.StatusBadGateway},
		{tng.ErrInvalidIdentity, http.StatusBadRequest},
		{tng.ErrUnknownCosmology, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
