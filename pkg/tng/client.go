package tng

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/gftdcojp/tng-client/internal/metrics"
	"github.com/gftdcojp/tng-client/pkg/units"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// APIKeyHeader carries the credential on every archive request.
const APIKeyHeader = "api-key"

// DocumentCache persists metadata documents across processes.
type DocumentCache interface {
	Get(ctx context.Context, url string) ([]byte, bool, error)
	Put(ctx context.Context, url string, body []byte) error
}

// Mirror receives a copy of every downloaded cutout.
type Mirror interface {
	UploadFile(ctx context.Context, key, localPath string, metadata map[string]string) error
}

// Config configures the archive client.
type Config struct {
	// BaseURL is the archive API root. Defaults to the public endpoint.
	BaseURL string

	// APIKey is required.
	APIKey string

	// HTTPClient overrides the transport. When nil a client with Timeout
	// is created.
	HTTPClient *http.Client

	// Timeout for a single request when HTTPClient is nil. Zero means no
	// timeout.
	Timeout time.Duration

	// MaxResponseSize bounds bodies read into memory. Zero means unbounded.
	// Streamed downloads are not limited.
	MaxResponseSize int64

	Logger *zap.Logger

	// Cache, if set, serves metadata documents before the network.
	Cache DocumentCache

	// Mirror, if set, receives downloaded cutouts.
	Mirror Mirror

	// Progress reports download progress. Defaults to a no-op.
	Progress Progress

	// Units is the base registry for node unit systems. Defaults to
	// units.DefaultRegistry().
	Units *units.Registry
}

// Client resolves nodes of the simulation archive.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	maxBody  int64
	logger   *zap.Logger
	cache    DocumentCache
	mirror   Mirror
	progress Progress
	units    *units.Registry

	group singleflight.Group
}

// New creates a new archive client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tng: %w", ErrCredentialMissing)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = config.DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("tng: invalid base URL %q: %w", base, err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	progress := cfg.Progress
	if progress == nil {
		progress = NopProgress{}
	}
	reg := cfg.Units
	if reg == nil {
		reg = units.DefaultRegistry()
	}
	return &Client{
		baseURL:  base,
		apiKey:   cfg.APIKey,
		http:     hc,
		maxBody:  cfg.MaxResponseSize,
		logger:   logger.Named("tng"),
		cache:    cfg.Cache,
		mirror:   cfg.Mirror,
		progress: progress,
		units:    reg,
	}, nil
}

// FromConfig builds client options from the API section of a loaded
// configuration.
func FromConfig(cfg config.APIConfig) Config {
	return Config{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		Timeout:         cfg.Timeout.Duration(),
		MaxResponseSize: int64(cfg.MaxResponseSize),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) simulationURL(sim string) string {
	return c.baseURL + "/" + url.PathEscape(sim) + "/"
}

func (c *Client) snapshotURL(sim string, snap int) string {
	return c.simulationURL(sim) + "snapshots/" + strconv.Itoa(snap) + "/"
}

func (c *Client) subhaloURL(sim string, snap, sub int) string {
	return c.snapshotURL(sim, snap) + "subhalos/" + strconv.Itoa(sub)
}

// EndpointURL returns the archive URL for id.
func (c *Client) EndpointURL(id Identity) string {
	switch id.Level {
	case LevelSnapshot:
		return c.snapshotURL(id.Simulation, id.Snapshot)
	case LevelSubhalo:
		return c.subhaloURL(id.Simulation, id.Snapshot, id.Subhalo)
	default:
		return c.simulationURL(id.Simulation)
	}
}

// Response is a fully read archive response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the media type without parameters.
func (r *Response) ContentType() string {
	return mediaType(r.Header)
}

// Filename returns the content-disposition filename, if any.
func (r *Response) Filename() (string, bool) {
	return dispositionFilename(r.Header)
}

func mediaType(h http.Header) string {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return strings.TrimSpace(strings.ToLower(h.Get("Content-Type")))
	}
	return mt
}

func isJSON(h http.Header) bool {
	return mediaType(h) == "application/json"
}

func dispositionFilename(h http.Header) (string, bool) {
	cd := h.Get("Content-Disposition")
	if cd == "" {
		return "", false
	}
	if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
		return params["filename"], true
	}
	// Lenient fallback for unquoted or malformed headers.
	if _, after, ok := strings.Cut(cd, "filename="); ok {
		name := strings.Trim(strings.TrimSpace(strings.SplitN(after, ";", 2)[0]), `"`)
		if name != "" {
			return name, true
		}
	}
	return "", false
}

// do issues one GET and returns the open response after checking its
// status. Callers own the body.
func (c *Client) do(ctx context.Context, kind, rawURL string, params url.Values) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("tng: parsing URL %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("tng: building request: %w", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)

	c.logger.Debug("calling archive", zap.String("kind", kind), zap.String("url", u.String()))

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.FetchLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchRequests.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("tng: GET %s: %w", u.String(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		metrics.FetchRequests.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()
		return nil, &RemoteError{URL: u.String(), StatusCode: resp.StatusCode, Status: strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))}
	}
	metrics.FetchRequests.WithLabelValues(kind, "ok").Inc()
	return resp, nil
}

// get issues one GET and reads the whole body.
func (c *Client) get(ctx context.Context, kind, rawURL string, params url.Values) (*Response, error) {
	resp, err := c.do(ctx, kind, rawURL, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tng: reading %s: %w", resp.Request.URL, err)
	}
	metrics.FetchBytes.WithLabelValues(kind).Add(float64(len(body)))
	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) readBody(r io.Reader) ([]byte, error) {
	if c.maxBody <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("response exceeds %d bytes", c.maxBody)
	}
	return body, nil
}

// document returns the JSON body at rawURL, consulting the document cache
// first. Concurrent requests for the same URL share one round trip.
func (c *Client) document(ctx context.Context, kind, rawURL string) ([]byte, error) {
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, rawURL)
		switch {
		case err != nil:
			c.logger.Warn("document cache read failed", zap.String("url", rawURL), zap.Error(err))
		case ok:
			metrics.CacheLookups.WithLabelValues("meta", "hit").Inc()
			return body, nil
		default:
			metrics.CacheLookups.WithLabelValues("meta", "miss").Inc()
		}
	}

	// The shared round trip outlives any single caller; each caller stops
	// waiting when its own ctx is done.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(rawURL, func() (any, error) {
		resp, err := c.get(shared, kind, rawURL, nil)
		if err != nil {
			return nil, err
		}
		if !isJSON(resp.Header) {
			return nil, fmt.Errorf("%w: %s returned %q", ErrNotMetadata, rawURL, resp.ContentType())
		}
		if c.cache != nil {
			if err := c.cache.Put(shared, rawURL, resp.Body); err != nil {
				c.logger.Warn("document cache write failed", zap.String("url", rawURL), zap.Error(err))
			}
		}
		return resp.Body, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("tng: GET %s: %w", rawURL, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// metadata fetches the JSON object at rawURL.
func (c *Client) metadata(ctx context.Context, kind, rawURL string) (map[string]any, error) {
	body, err := c.document(ctx, kind, rawURL)
	if err != nil {
		return nil, err
	}
	return decodeObject(rawURL, body)
}

func decodeObject(rawURL string, body []byte) (map[string]any, error) {
	var attrs map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrNotMetadata, rawURL, err)
	}
	if attrs == nil {
		return nil, fmt.Errorf("%w: %s returned null", ErrNotMetadata, rawURL)
	}
	return attrs, nil
}
