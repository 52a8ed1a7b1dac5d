// Package blob mirrors downloaded cutouts into S3-compatible object storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/gftdcojp/tng-client/internal/metrics"
	"go.uber.org/zap"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Store uploads and retrieves mirrored files.
type Store struct {
	s3     S3API
	bucket string
	cfg    config.MirrorConfig
	logger *zap.Logger
}

// NewStore creates a new mirror using an S3API implementation.
func NewStore(s3api S3API, cfg config.MirrorConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		s3:     s3api,
		bucket: cfg.Bucket,
		cfg:    cfg,
		logger: logger.Named("blob"),
	}
}

// ObjectKey maps a mirror key such as "Illustris-3/75/2/cutout_2.hdf5" to
// its object key under the configured prefix.
func (s *Store) ObjectKey(key string) string {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if s.cfg.Prefix != "" {
		return s.cfg.Prefix + "/cutouts/" + key
	}
	return "cutouts/" + key
}

// Put uploads r under key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, metadata map[string]string) error {
	objKey := s.ObjectKey(key)

	input := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &objKey,
		Body:        r,
		ContentType: aws.String("application/octet-stream"),
		Metadata:    metadata,
	}
	if s.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(s.cfg.StorageClass)
	}

	start := time.Now()
	_, err := s.s3.PutObject(ctx, input)
	metrics.MirrorUploadDuration.WithLabelValues(s.bucket).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MirrorUploadErrors.WithLabelValues(s.bucket, errorType(err)).Inc()
		return fmt.Errorf("uploading %s to S3: %w", objKey, err)
	}

	s.logger.Debug("file mirrored to S3",
		zap.String("key", objKey),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// UploadFile mirrors the local file at localPath under key.
func (s *Store) UploadFile(ctx context.Context, key, localPath string, metadata map[string]string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()
	return s.Put(ctx, key, f, metadata)
}

// Get copies the mirrored object for key into w.
func (s *Store) Get(ctx context.Context, key string, w io.Writer) (int64, error) {
	objKey := s.ObjectKey(key)
	resp, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objKey,
	})
	if err != nil {
		return 0, fmt.Errorf("downloading %s from S3: %w", objKey, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("reading S3 response: %w", err)
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	objKey := s.ObjectKey(key)
	_, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &objKey,
	})
	if err != nil {
		return fmt.Errorf("deleting %s from S3: %w", objKey, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	objKey := s.ObjectKey(key)
	_, err := s.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &objKey,
	})
	if err != nil {
		var nf *s3types.NotFound
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nf) || errors.As(err, &nsk) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
