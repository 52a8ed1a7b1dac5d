// Package s3util builds the S3 client behind the cutout mirror. AWS S3,
// MinIO and Cloudflare R2 are reached through the same settings.
package s3util

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gftdcojp/tng-client/internal/config"
)

// fallbackRegion signs requests for custom endpoints, which ignore the
// region but still require one.
const fallbackRegion = "us-east-1"

// Client is the mirror's S3 client together with the bucket it writes to.
type Client struct {
	S3     *s3.Client
	Bucket string
	Prefix string
}

// NewClient creates an S3 client for the mirror described by cfg.
func NewClient(ctx context.Context, cfg config.MirrorConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Client{
		S3:     s3.NewFromConfig(awsCfg, clientOptions(cfg)...),
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
	}, nil
}

// loadOptions resolves region and credentials. Static keys win over the
// default AWS chain.
func loadOptions(cfg config.MirrorConfig) []func(*awsconfig.LoadOptions) error {
	region := cfg.Region
	if region == "" {
		region = fallbackRegion
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	return opts
}

// clientOptions points the client at a custom endpoint and selects
// path-style addressing when asked to.
func clientOptions(cfg config.MirrorConfig) []func(*s3.Options) {
	return []func(*s3.Options){func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}}
}

// Location names the mirror root for logs, as in "s3://bucket/prefix".
func (c *Client) Location() string {
	if c.Prefix == "" {
		return "s3://" + c.Bucket
	}
	return "s3://" + c.Bucket + "/" + c.Prefix
}

// Ping checks that the mirror bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.Bucket)}); err != nil {
		return fmt.Errorf("mirror %s: %w", c.Location(), err)
	}
	return nil
}
