package s3util

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gftdcojp/tng-client/internal/config"
)

func applyLoad(t *testing.T, cfg config.MirrorConfig) awsconfig.LoadOptions {
	t.Helper()
	var lo awsconfig.LoadOptions
	for _, fn := range loadOptions(cfg) {
		if err := fn(&lo); err != nil {
			t.Fatal(err)
		}
	}
	return lo
}

func TestLoadOptions_RegionFallback(t *testing.T) {
	if got := applyLoad(t, config.MirrorConfig{Bucket: "b"}).Region; got != fallbackRegion {
		t.Errorf("expected fallback region %q, got %q", fallbackRegion, got)
	}
	if got := applyLoad(t, config.MirrorConfig{Bucket: "b", Region: "auto"}).Region; got != "auto" {
		t.Errorf("expected configured region, got %q", got)
	}
}

func TestLoadOptions_StaticCredentials(t *testing.T) {
	lo := applyLoad(t, config.MirrorConfig{Bucket: "b", AccessKeyID: "id", SecretAccessKey: "secret"})
	if lo.Credentials == nil {
		t.Fatal("expected static credentials provider")
	}
	creds, err := lo.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if creds.AccessKeyID != "id" || creds.SecretAccessKey != "secret" {
		t.Errorf("unexpected credentials %+v", creds)
	}

	if lo := applyLoad(t, config.MirrorConfig{Bucket: "b"}); lo.Credentials != nil {
		t.Error("expected default credential chain without static keys")
	}
}

func TestClientOptions_Endpoint(t *testing.T) {
	var o s3.Options
	for _, fn := range clientOptions(config.MirrorConfig{Endpoint: "http://minio:9000", ForcePathStyle: true}) {
		fn(&o)
	}
	if aws.ToString(o.BaseEndpoint) != "http://minio:9000" {
		t.Errorf("unexpected endpoint %q", aws.ToString(o.BaseEndpoint))
	}
	if !o.UsePathStyle {
		t.Error("expected path-style addressing")
	}

	var plain s3.Options
	for _, fn := range clientOptions(config.MirrorConfig{}) {
		fn(&plain)
	}
	if plain.BaseEndpoint != nil || plain.UsePathStyle {
		t.Errorf("expected AWS defaults, got endpoint=%v pathStyle=%v", plain.BaseEndpoint, plain.UsePathStyle)
	}
}

func TestNewClient_ValidatesConfig(t *testing.T) {
	if _, err := NewClient(context.Background(), config.MirrorConfig{}); err == nil {
		t.Fatal("expected error without bucket")
	}
	if _, err := NewClient(context.Background(), config.MirrorConfig{Bucket: "b", SecretAccessKey: "s"}); err == nil {
		t.Fatal("expected error with half credentials")
	}
}

func TestNewClient_Location(t *testing.T) {
	c, err := NewClient(context.Background(), config.MirrorConfig{
		Bucket:          "cutouts",
		Prefix:          "tng",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Location(); got != "s3://cutouts/tng" {
		t.Errorf("unexpected location %q", got)
	}
	c.Prefix = ""
	if got := c.Location(); got != "s3://cutouts" {
		t.Errorf("unexpected location %q", got)
	}
}
