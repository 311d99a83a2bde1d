// Package storage provides the sinks report artifacts are written to.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/franchise/kpireport/internal/application/report"
	"github.com/franchise/kpireport/internal/infrastructure/config"
	"github.com/franchise/kpireport/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Ensure S3Sink implements report.Sink
var _ report.Sink = (*S3Sink)(nil)

// S3Sink uploads report artifacts to an S3-compatible bucket (AWS S3, MinIO, RustFS, ...).
type S3Sink struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	logger    *zap.Logger
}

// S3SinkOption is a functional option for configuring S3Sink
type S3SinkOption func(*S3Sink)

// WithLogger sets a custom logger for S3Sink
func WithLogger(logger *zap.Logger) S3SinkOption {
	return func(s *S3Sink) {
		s.logger = logger
	}
}

// NewS3Sink creates an S3Sink from configuration. Without static keys the default
// AWS credential chain is used.
func NewS3Sink(ctx context.Context, cfg *config.StorageConfig, opts ...S3SinkOption) (*S3Sink, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" && cfg.SecretKey != "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" && cfg.AccessKey != "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	sink := &S3Sink{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(sink)
	}

	return sink, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *S3Sink) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating report bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Put uploads an artifact under the key prefix and returns its s3:// location
func (s *S3Sink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	key := s.Key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	logger.FromContext(ctx).Debug("Uploaded report artifact",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return location, nil
}

// Key returns the object key for an artifact name
func (s *S3Sink) Key(name string) string {
	if s.keyPrefix == "" {
		return name
	}
	return path.Join(s.keyPrefix, name)
}

// Bucket returns the bucket name
func (s *S3Sink) Bucket() string {
	return s.bucket
}
