package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marketplace/payouts/internal/domain/finance"
	infraconfig "github.com/marketplace/payouts/internal/infrastructure/config"
	"go.uber.org/zap"
)

// s3API is the part of the S3 client the archive uses
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ finance.StatementArchive = (*S3StatementArchive)(nil)

// S3StatementArchive writes payout statements to an S3-compatible bucket
// (AWS S3, MinIO, RustFS).
type S3StatementArchive struct {
	client s3API
	bucket string
	prefix string
	logger *zap.Logger
}

// S3ArchiveOption is a functional option for configuring S3StatementArchive
type S3ArchiveOption func(*S3StatementArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3ArchiveOption {
	return func(a *S3StatementArchive) {
		a.logger = logger
	}
}

// withClient replaces the S3 client, used by tests
func withClient(client s3API) S3ArchiveOption {
	return func(a *S3StatementArchive) {
		a.client = client
	}
}

// NewS3StatementArchive creates an archive from configuration
func NewS3StatementArchive(cfg *infraconfig.StorageConfig, opts ...S3ArchiveOption) (*S3StatementArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
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
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "statements"
	}

	archive := &S3StatementArchive{bucket: cfg.Bucket, prefix: prefix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(archive)
	}
	if archive.client != nil {
		return archive, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	archive.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return archive, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Call it at startup.
func (a *S3StatementArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating statement bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Store uploads the statement and returns its key. A statement already present
// under the key is left untouched, so redelivered completion events are harmless.
func (a *S3StatementArchive) Store(ctx context.Context, statement finance.Statement) (string, error) {
	body, err := RenderStatement(statement)
	if err != nil {
		return "", err
	}
	key := StatementKey(a.prefix, statement.Payout)

	exists, err := a.objectExists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		a.logger.Debug("Statement already archived", zap.String("key", key))
		return key, nil
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(StatementContentType),
		Metadata: map[string]string{
			"payout-id": statement.Payout.ID.String(),
			"vendor-id": statement.Payout.VendorID.String(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload statement: %w", err)
	}
	return key, nil
}

func (a *S3StatementArchive) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	// some S3-compatible services report a missing key without the typed error
	if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check statement existence: %w", err)
}

// Bucket returns the bucket name
func (a *S3StatementArchive) Bucket() string {
	return a.bucket
}
