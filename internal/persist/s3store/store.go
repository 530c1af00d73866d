// Package s3store persists the mirror snapshot in an S3-compatible object
// store (AWS S3 or MinIO). Minimal surface area: single bucket, single
// object key.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"assetmirror/internal/persist"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var _ persist.Backend = (*Store)(nil)

const defaultKey = "assetmirror/snapshot.json"

// Config holds explicit construction parameters (mostly for tests). For
// prod we rely primarily on environment variables.
type Config struct {
	Region          string
	Bucket          string
	Key             string
	Endpoint        string // optional; enables custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	SessionToken    string // optional
	PathStyle       bool
}

// Environment variables:
//
//	ASSETMIRROR_SNAPSHOT_DRIVER=s3
//	ASSETMIRROR_S3_BUCKET=<bucket> (required)
//	ASSETMIRROR_S3_KEY=<object key> (default assetmirror/snapshot.json)
//	ASSETMIRROR_S3_REGION=<region> (default us-east-1)
//	ASSETMIRROR_S3_ENDPOINT=<url> (optional, for MinIO)
//	ASSETMIRROR_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// Store is an S3-backed snapshot backend.
type Store struct {
	client *s3.Client
	bucket string
	key    string
}

// New creates an S3 snapshot backend from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	key := cfg.Key
	if key == "" {
		key = defaultKey
	}
	return &Store{client: client, bucket: cfg.Bucket, key: key}, nil
}

// OpenFromEnv constructs an S3 backend from process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("ASSETMIRROR_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("ASSETMIRROR_S3_BUCKET required for s3 driver")
	}
	cfg := Config{
		Bucket:    bucket,
		Key:       os.Getenv("ASSETMIRROR_S3_KEY"),
		Region:    os.Getenv("ASSETMIRROR_S3_REGION"),
		Endpoint:  os.Getenv("ASSETMIRROR_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("ASSETMIRROR_S3_PATH_STYLE"), "true"),
	}
	return New(ctx, cfg)
}

func (s *Store) Load(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, persist.ErrNoSnapshot
		}
		return nil, fmt.Errorf("get snapshot object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()
	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot object: %w", err)
	}
	return payload, nil
}

func (s *Store) Save(ctx context.Context, payload []byte) error {
	contentType := "application/json"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &s.key,
		Body:        bytes.NewReader(payload),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("put snapshot object: %w", err)
	}
	return nil
}
