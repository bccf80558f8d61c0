package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/workdesk-hq/platform/internal/config"
)

// ErrAccessDenied is returned when the bucket rejects the credentials.
var ErrAccessDenied = errors.New("storage: access denied")

// S3Client is the subset of the S3 API used by S3Store.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes uploads to an S3-compatible bucket.
type S3Store struct {
	client  S3Client
	bucket  string
	baseURL string
}

// NewS3Store loads AWS configuration for cfg and builds the client.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" || strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("%w: s3 bucket and region are required", ErrInvalidConfig)
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, errLoad := awsconfig.LoadDefaultConfig(ctx, opts...)
	if errLoad != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", errLoad)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, cfg), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client S3Client, cfg config.S3Config) *S3Store {
	baseURL := strings.TrimSpace(cfg.PublicURL)
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3Store{client: client, bucket: cfg.Bucket, baseURL: baseURL}
}

// Put uploads r under a fresh key.
func (s *S3Store) Put(ctx context.Context, name string, size int64, r io.Reader) (Object, error) {
	key, errKey := ObjectKey(name)
	if errKey != nil {
		return Object{}, errKey
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, errPut := s.client.PutObject(ctx, input); errPut != nil {
		return Object{}, classifyS3Error(errPut)
	}
	return Object{URL: joinURL(s.baseURL, key), Key: key}, nil
}

func classifyS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %s", ErrAccessDenied, apiErr.ErrorMessage())
		}
	}
	return fmt.Errorf("storage: put object: %w", err)
}
