package tng

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testKey = "test-key"

// fakeArchive serves fixed documents keyed by request path and counts hits.
type fakeArchive struct {
	srv *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	hits     map[string]int
	lastKeys []string
	queries  map[string]string
}

func newFakeArchive(t *testing.T) *fakeArchive {
	t.Helper()
	fa := &fakeArchive{
		routes:  make(map[string]http.HandlerFunc),
		hits:    make(map[string]int),
		queries: make(map[string]string),
	}
	fa.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fa.mu.Lock()
		fa.hits[r.URL.Path]++
		fa.lastKeys = append(fa.lastKeys, r.Header.Get(APIKeyHeader))
		fa.queries[r.URL.Path] = r.URL.RawQuery
		h, ok := fa.routes[r.URL.Path]
		fa.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(fa.srv.Close)
	return fa
}

func (fa *fakeArchive) base() string { return fa.srv.URL + "/api" }

// url returns the absolute URL of an archive path.
func (fa *fakeArchive) url(path string) string { return fa.srv.URL + path }

func (fa *fakeArchive) handle(path string, h http.HandlerFunc) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.routes[path] = h
}

func (fa *fakeArchive) json(path string, doc any) {
	fa.handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	})
}

func (fa *fakeArchive) bytes(path, contentType, filename string, body []byte) {
	fa.handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		if filename != "" {
			w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		}
		w.Write(body)
	})
}

func (fa *fakeArchive) status(path string, code int) {
	fa.handle(path, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(code), code)
	})
}

func (fa *fakeArchive) hitCount(path string) int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.hits[path]
}

func (fa *fakeArchive) totalHits() int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	n := 0
	for _, c := range fa.hits {
		n += c
	}
	return n
}

func (fa *fakeArchive) query(path string) string {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.queries[path]
}

func (fa *fakeArchive) client(t *testing.T, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{BaseURL: fa.base(), APIKey: testKey}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

const (
	simPath  = "/api/Illustris-3/"
	snapPath = "/api/Illustris-3/snapshots/75/"
	subPath  = "/api/Illustris-3/snapshots/75/subhalos/2"
)

// seedHierarchy serves Illustris-3, snapshot 75 at z=1 and subhalo 2.
func seedHierarchy(fa *fakeArchive) {
	fa.json(simPath, map[string]any{
		"name":              "Illustris-3",
		"cosmology":         "WMAP-9",
		"parent_simulation": nil,
		"child_simulation":  []any{"Illustris-3-Dark"},
		"snapshots":         fa.url("/api/Illustris-3/snapshots/"),
	})
	fa.json("/api/Illustris-3/snapshots/", []map[string]any{
		{"number": 0, "redshift": 46.77, "url": fa.url("/api/Illustris-3/snapshots/0/")},
		{"number": 75, "redshift": 1.0, "url": fa.url(snapPath)},
	})
	fa.json(snapPath, map[string]any{
		"number":   75,
		"redshift": 1.0,
	})
	fa.json(subPath, map[string]any{
		"id":            2,
		"snap":          75,
		"pos_x":         100.0,
		"pos_y":         200.0,
		"pos_z":         300.0,
		"cm_x":          101.0,
		"cm_y":          201.0,
		"cm_z":          301.0,
		"vel_x":         -10.0,
		"vel_y":         20.0,
		"vel_z":         5.0,
		"spin_x":        1.0,
		"spin_y":        2.0,
		"spin_z":        3.0,
		"veldisp":       100.0,
		"sfr":           0.5,
		"mass_log_msun": 2.0,
		"cutouts": map[string]any{
			"subhalo":     fa.url("/cutouts/sub"),
			"parent_halo": fa.url("/cutouts/parent"),
		},
		"vis": map[string]any{
			"galaxy": fa.url("/vis/galaxy.png"),
			"broken": fa.url("/vis/broken.png"),
		},
	})
}

func keysSeen(fa *fakeArchive) string {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return strings.Join(fa.lastKeys, ",")
}
