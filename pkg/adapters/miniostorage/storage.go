// Package miniostorage stores template assets in an S3-compatible bucket.
package miniostorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/user/postergen/pkg/ports"
)

// Client is the subset of *minio.Client the storage uses.
type Client interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
}

// Options configures the bucket connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base URL objects are served from. When empty it is
	// derived from the endpoint and bucket.
	PublicURL string
}

// Storage implements ports.ObjectStorage.
type Storage struct {
	client  Client
	bucket  string
	baseURL string
}

// New connects to the endpoint in opts.
func New(opts Options) (*Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Client, opts Options) *Storage {
	base := opts.PublicURL
	if base == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		base = (&url.URL{Scheme: scheme, Host: opts.Endpoint, Path: "/" + opts.Bucket}).String()
	}
	return &Storage{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: strings.TrimSuffix(base, "/"),
	}
}

// EnsureBucket creates the bucket when it does not exist.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores data at path. Without overwrite an existing object makes it
// fail with ports.ErrObjectExists. The existence check and the write are two
// requests, so concurrent uploads to one path can still race.
func (s *Storage) Upload(ctx context.Context, path, contentType string, data []byte, overwrite bool) error {
	if !overwrite {
		_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
		switch {
		case err == nil:
			return fmt.Errorf("upload %s: %w", path, ports.ErrObjectExists)
		case !isNotFound(err):
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType, CacheControl: "public, max-age=3600"})
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}

func (s *Storage) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (s *Storage) List(ctx context.Context, prefix string) ([]string, error) {
	out := []string{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		out = append(out, obj.Key)
	}
	return out, nil
}

func (s *Storage) Delete(ctx context.Context, paths ...string) error {
	for _, p := range paths {
		if err := s.client.RemoveObject(ctx, s.bucket, p, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

var (
	_ ports.ObjectStorage = (*Storage)(nil)
	_ Client              = (*minio.Client)(nil)
)
