package tng

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/gftdcojp/tng-client/internal/file"
	"github.com/gftdcojp/tng-client/internal/metrics"
	"go.uber.org/zap"
)

// FetchStatus classifies what a Fetch returned.
type FetchStatus int

const (
	// StatusMetadata means the body was JSON and was decoded into Attributes.
	StatusMetadata FetchStatus = iota
	// StatusRaw means the body was neither JSON nor a named download.
	StatusRaw
	// StatusRawDownloadable means the body named a file but no directory
	// was given, so it was returned unsaved.
	StatusRawDownloadable
	// StatusSavedFile means the body was written to Path.
	StatusSavedFile
)

func (s FetchStatus) String() string {
	switch s {
	case StatusMetadata:
		return "metadata"
	case StatusRaw:
		return "raw"
	case StatusRawDownloadable:
		return "raw-downloadable"
	case StatusSavedFile:
		return "saved-file"
	default:
		return fmt.Sprintf("FetchStatus(%d)", int(s))
	}
}

// FetchOptions controls a single explicit retrieval.
type FetchOptions struct {
	// Directory receives named downloads. It is created if absent.
	Directory string
	// Params are forwarded verbatim as query parameters.
	Params url.Values
}

// FetchResult is the outcome of one retrieval.
type FetchResult struct {
	Status FetchStatus

	// Attributes is set for StatusMetadata.
	Attributes map[string]any

	// Response is set for StatusRaw and StatusRawDownloadable.
	Response *Response

	// Filename is the content-disposition name for downloads.
	Filename string

	// Path is the written file for StatusSavedFile.
	Path string
}

// Fetch performs exactly one GET of rawURL and classifies the response by
// its declared content type. It never consults or fills the document cache.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*FetchResult, error) {
	resp, err := c.do(ctx, "fetch", rawURL, opts.Params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()

	if isJSON(resp.Header) {
		body, err := c.readBody(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("tng: reading %s: %w", finalURL, err)
		}
		metrics.FetchBytes.WithLabelValues("fetch").Add(float64(len(body)))
		attrs, err := decodeObject(finalURL, body)
		if err != nil {
			return nil, err
		}
		return &FetchResult{Status: StatusMetadata, Attributes: attrs}, nil
	}

	name, named := dispositionFilename(resp.Header)
	if named && opts.Directory != "" {
		store, err := file.NewStore(opts.Directory, c.logger)
		if err != nil {
			return nil, fmt.Errorf("tng: %w", err)
		}
		task := c.progress.Start(name, resp.ContentLength)
		defer task.Finish()
		counter := &countingWriter{task: task}
		path, err := store.Put(ctx, name, io.TeeReader(resp.Body, counter))
		if err != nil {
			return nil, fmt.Errorf("tng: saving %s: %w", finalURL, err)
		}
		metrics.FetchBytes.WithLabelValues("fetch").Add(float64(counter.n))
		c.logger.Debug("saved download", zap.String("url", finalURL), zap.String("path", path), zap.Int64("bytes", counter.n))
		return &FetchResult{Status: StatusSavedFile, Filename: name, Path: path}, nil
	}

	body, err := c.readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tng: reading %s: %w", finalURL, err)
	}
	metrics.FetchBytes.WithLabelValues("fetch").Add(float64(len(body)))
	out := &FetchResult{
		Status: StatusRaw,
		Response: &Response{
			URL:        finalURL,
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		},
	}
	if named {
		out.Status = StatusRawDownloadable
		out.Filename = name
	}
	return out, nil
}
