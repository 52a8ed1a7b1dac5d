package tng

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/gftdcojp/tng-client/internal/file"
	"github.com/gftdcojp/tng-client/internal/metrics"
	"go.uber.org/zap"
)

// CutoutOptions controls a cutout download.
type CutoutOptions struct {
	// GrabParent downloads the parent halo's cutout instead of the
	// subhalo's own.
	GrabParent bool
	// Params are forwarded verbatim to the cutout request.
	Params url.Values
}

func (o CutoutOptions) key() string {
	if o.GrabParent {
		return "parent_halo"
	}
	return "subhalo"
}

// MirrorKey is the key under which a downloaded cutout is mirrored, as in
// "Illustris-3/75/2/subhalo/cutout.hdf5".
func MirrorKey(id Identity, opts CutoutOptions, filename string) string {
	return id.Key() + "/" + opts.key() + "/" + filepath.Base(filename)
}

// DownloadCutout writes the cutout of the given subhalo to filename and
// returns filename. The file appears only once the full body has been
// received; on failure nothing is left behind.
func (c *Client) DownloadCutout(ctx context.Context, simulation string, snapshot, subhalo int, filename string, opts CutoutOptions) (string, error) {
	id := SubhaloID(simulation, snapshot, subhalo)
	if err := id.Validate(); err != nil {
		return "", err
	}
	halo := opts.key()

	attrs, err := c.metadata(ctx, "subhalo", c.EndpointURL(id))
	if err != nil {
		metrics.CutoutDownloads.WithLabelValues(halo, "error").Inc()
		return "", err
	}
	cutouts, ok := attrs["cutouts"].(map[string]any)
	if !ok {
		metrics.CutoutDownloads.WithLabelValues(halo, "error").Inc()
		return "", fmt.Errorf("%w: subhalo %s has no cutouts", ErrUnknownResource, id.Key())
	}
	cutoutURL, ok := cutouts[halo].(string)
	if !ok || cutoutURL == "" {
		metrics.CutoutDownloads.WithLabelValues(halo, "error").Inc()
		return "", fmt.Errorf("%w: cutout %q of subhalo %s", ErrUnknownResource, halo, id.Key())
	}

	c.logger.Info("downloading cutout",
		zap.String("identity", id.Key()),
		zap.String("halo", halo),
		zap.String("url", cutoutURL))

	if err := c.streamTo(ctx, cutoutURL, opts.Params, filename, id.Key()); err != nil {
		metrics.CutoutDownloads.WithLabelValues(halo, "error").Inc()
		return "", err
	}
	metrics.CutoutDownloads.WithLabelValues(halo, "ok").Inc()

	if c.mirror != nil {
		key := MirrorKey(id, opts, filename)
		meta := map[string]string{
			KeySimulation: simulation,
			KeySnapshot:   strconv.Itoa(snapshot),
			KeySubhalo:    strconv.Itoa(subhalo),
			"halo":        halo,
		}
		if err := c.mirror.UploadFile(ctx, key, filename, meta); err != nil {
			c.logger.Warn("cutout mirror upload failed", zap.String("key", key), zap.Error(err))
		}
	}
	return filename, nil
}

func (c *Client) streamTo(ctx context.Context, rawURL string, params url.Values, filename, label string) error {
	resp, err := c.do(ctx, "cutout", rawURL, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if dir := filepath.Dir(filename); dir != "." {
		if err := file.EnsureDir(dir); err != nil {
			return fmt.Errorf("tng: %w", err)
		}
	}

	task := c.progress.Start(label, resp.ContentLength)
	defer task.Finish()

	n, err := file.WriteAtomic(ctx, filename, io.TeeReader(resp.Body, &countingWriter{task: task}))
	if err != nil {
		return fmt.Errorf("tng: writing cutout %s: %w", filename, err)
	}
	metrics.FetchBytes.WithLabelValues("cutout").Add(float64(n))
	return nil
}
