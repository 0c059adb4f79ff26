// Package blob stores project source archives in S3-compatible object
// storage. Objects live under projects/<id>/ so a whole project can be
// removed by prefix.
package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/archlens/archlens/internal/config"
)

// ArchiveContentType is the content type uploads are stored with.
const ArchiveContentType = "application/zip"

// Client wraps a MinIO connection scoped to one bucket.
type Client struct {
	mc     *minio.Client
	bucket string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a blob client from configuration. The connection is lazy;
// call EnsureBucket at startup to verify reachability.
func New(cfg config.BlobConfig, opts ...Option) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.ResolveSecretKey(), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client; %w", err)
	}

	c := &Client{
		mc:     mc,
		bucket: cfg.Bucket,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ObjectKey returns the canonical object key for a project's uploaded
// archive.
func ObjectKey(projectID string) string {
	return "projects/" + projectID + "/source.zip"
}

// ProjectPrefix returns the object prefix owning everything stored for a
// project.
func ProjectPrefix(projectID string) string {
	return "projects/" + projectID + "/"
}

// EnsureBucket creates the bucket if it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s; %w", c.bucket, err)
	}
	if exists {
		return nil
	}

	if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s; %w", c.bucket, err)
	}
	c.logger.Info("created blob bucket", "bucket", c.bucket)
	return nil
}

// Upload stores an object. Size may be -1 when unknown; MinIO then
// streams with multipart upload.
func (c *Client) Upload(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	_, err := c.mc.PutObject(ctx, c.bucket, objectKey, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s; %w", objectKey, err)
	}
	c.logger.Debug("uploaded object", "key", objectKey, "size", size)
	return nil
}

// Download opens an object for reading. The caller closes the reader.
func (c *Client) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s; %w", objectKey, err)
	}
	// GetObject defers I/O; a Stat forces the first request so missing
	// objects fail here instead of on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat %s; %w", objectKey, err)
	}
	return obj, nil
}

// DownloadToFile fetches an object into a local file.
func (c *Client) DownloadToFile(ctx context.Context, objectKey, destPath string) error {
	if err := c.mc.FGetObject(ctx, c.bucket, objectKey, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to download %s; %w", objectKey, err)
	}
	return nil
}

// DownloadURL returns a presigned GET URL for an object.
func (c *Client) DownloadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, c.bucket, objectKey, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s; %w", objectKey, err)
	}
	return u.String(), nil
}

// DeleteByPrefix removes every object under a prefix. Individual remove
// failures abort the walk so partial deletes surface to the caller.
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) error {
	objects := c.mc.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	removed := 0
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("failed to list objects under %s; %w", prefix, obj.Err)
		}
		if err := c.mc.RemoveObject(ctx, c.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove %s; %w", obj.Key, err)
		}
		removed++
	}
	c.logger.Debug("deleted objects", "prefix", prefix, "count", removed)
	return nil
}
