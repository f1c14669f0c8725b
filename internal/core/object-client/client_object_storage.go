package objectclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/markdave123-py/coursemate/internal/logger"
)

// ObjectClient reads course material stored in object storage. It is
// abstract so S3 can be swapped for MinIO or another compatible store.
type ObjectClient interface {
	// GetFile downloads an object and returns its bytes and content type.
	// Objects larger than maxBytes (when positive) are rejected before download.
	GetFile(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, string, error)
}

type S3Client struct {
	client     *s3.Client
	downloader *manager.Downloader
	timeout    time.Duration
}

var _ ObjectClient = (*S3Client)(nil)

// S3Options carries the credentials; empty keys fall back to the default
// AWS credential chain (env, shared config, instance role).
type S3Options struct {
	Region    string
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

func NewS3Client(ctx context.Context, opts S3Options, log *slog.Logger) (*S3Client, error) {
	if opts.Region == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	logger.OrDiscard(log).Info("s3 client configured", "component", "object-client", "region", opts.Region)

	return &S3Client{
		client:     client,
		downloader: manager.NewDownloader(client),
		timeout:    opts.Timeout,
	}, nil
}

func (c *S3Client) GetFile(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, string, error) {
	ctxGet, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	head, err := c.client.HeadObject(ctxGet, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("s3 head failed: %w", err)
	}
	size := aws.ToInt64(head.ContentLength)
	if maxBytes > 0 && size > maxBytes {
		return nil, "", fmt.Errorf("s3 object is %d bytes, limit is %d", size, maxBytes)
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))
	if _, err := c.downloader.Download(ctxGet, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, "", fmt.Errorf("s3 download failed: %w", err)
	}

	return buf.Bytes(), aws.ToString(head.ContentType), nil
}
