package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sandgallery/sandgallery-backend/pkg/config"
	"github.com/sandgallery/sandgallery-backend/pkg/logger"
	"github.com/sandgallery/sandgallery-backend/pkg/storage"
)

// Client stores artifacts in an S3-compatible bucket (MinIO, R2, AWS).
type Client struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

var _ storage.BlobStore = (*Client)(nil)

func NewClient(ctx context.Context, cfg config.S3Config, logg *logger.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "s3 client initialized")
	}
	return &Client{client: mc, bucket: bucket, region: region}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) ensureBucket(ctx context.Context) error {
	c.initOnce.Do(func() {
		exists, err := c.client.BucketExists(ctx, c.bucket)
		if err != nil {
			c.initErr = err
			return
		}
		if exists {
			return
		}
		c.initErr = c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region})
	})
	return c.initErr
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("s3 client not initialized")
	}
	if _, err := c.client.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("s3 bucket check: %w", err)
	}
	return nil
}

func (c *Client) Put(ctx context.Context, obj storage.Object) error {
	if strings.TrimSpace(obj.Path) == "" {
		return fmt.Errorf("s3 object path is required")
	}
	if err := c.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.client.PutObject(ctx, c.bucket, obj.Path, bytes.NewReader(obj.Data), int64(len(obj.Data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: userMetadata(obj.Metadata),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", obj.Path, err)
	}
	return nil
}

// Get stats the object first so a missing key surfaces before any read.
func (c *Client) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if _, err := c.client.StatObject(ctx, c.bucket, path, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, path)
		}
		return nil, fmt.Errorf("s3 stat %s: %w", path, err)
	}
	obj, err := c.client.GetObject(ctx, c.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", path, err)
	}
	return obj, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// userMetadata drops empty keys; minio prefixes the rest with x-amz-meta-.
func userMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
