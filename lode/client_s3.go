package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config locates the dataset in a bucket. Credentials come from the AWS
// default chain (env, shared config, IAM role).
type S3Config struct {
	Bucket string
	// Prefix is prepended to every key; slashes at either end are trimmed.
	Prefix string
	// Region overrides the region of the default chain.
	Region string
	// Endpoint selects an S3-compatible provider such as MinIO or R2.
	Endpoint string
	// UsePathStyle puts the bucket in the path instead of the host.
	UsePathStyle bool
}

// Validate requires a bucket.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path splits "bucket/prefix" (or "bucket") as given to
// --storage-path.
func ParseS3Path(path string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(path, "/")
	return bucket, prefix
}

// clientOptions translates endpoint and addressing overrides.
func (c *S3Config) clientOptions() []func(*s3.Options) {
	var opts []func(*s3.Options)
	if c.Endpoint != "" {
		endpoint := c.Endpoint
		opts = append(opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if c.UsePathStyle {
		opts = append(opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return opts
}

// NewS3Factory builds a Lode store factory backed by one S3 client.
func NewS3Factory(ctx context.Context, s3cfg S3Config) (lode.StoreFactory, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}

	var loadOpts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s3cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsConfig, s3cfg.clientOptions()...)

	storeCfg := lodes3.Config{
		Bucket: s3cfg.Bucket,
		Prefix: strings.Trim(s3cfg.Prefix, "/"),
	}
	return func() (lode.Store, error) {
		return lodes3.New(client, storeCfg)
	}, nil
}
