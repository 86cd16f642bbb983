package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
)

// Service implements BlobStore over an S3-compatible object store.
// Returned URLs are <public_url>/<key> so transcripts and emails can link
// objects directly.
type Service struct {
	config *common.BlobConfig
	client *minio.Client
	logger arbor.ILogger
}

// NewService creates a blob storage service and verifies the bucket exists.
func NewService(ctx context.Context, cfg *common.BlobConfig, logger arbor.ILogger) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	logger.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.Bucket).
		Msg("Blob storage initialized")

	return &Service{
		config: cfg,
		client: client,
		logger: logger,
	}, nil
}

// Put stores data under key and returns its public URL.
func (s *Service) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.config.Bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", &common.UpstreamError{Service: "blob", Err: fmt.Errorf("put %s failed: %w", key, err)}
	}

	s.logger.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Stored blob")

	return s.publicURL(key), nil
}

// Get retrieves the object behind a URL previously returned by Put.
func (s *Service) Get(ctx context.Context, url string) ([]byte, error) {
	key, err := s.keyFromURL(url)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &common.UpstreamError{Service: "blob", Err: fmt.Errorf("get %s failed: %w", key, err)}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &common.UpstreamError{Service: "blob", Err: fmt.Errorf("read %s failed: %w", key, err)}
	}
	return data, nil
}

// Delete removes the object behind a URL. Deleting a missing object is not
// an error.
func (s *Service) Delete(ctx context.Context, url string) error {
	key, err := s.keyFromURL(url)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.config.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &common.UpstreamError{Service: "blob", Err: fmt.Errorf("delete %s failed: %w", key, err)}
	}

	s.logger.Debug().Str("key", key).Msg("Deleted blob")
	return nil
}

func (s *Service) publicURL(key string) string {
	base := strings.TrimRight(s.config.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if s.config.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, s.config.Endpoint, s.config.Bucket)
	}
	return base + "/" + key
}

func (s *Service) keyFromURL(url string) (string, error) {
	base := strings.TrimRight(s.config.PublicURL, "/")
	if base != "" && strings.HasPrefix(url, base+"/") {
		return strings.TrimPrefix(url, base+"/"), nil
	}
	// Fall back to everything after the bucket segment.
	marker := "/" + s.config.Bucket + "/"
	if idx := strings.Index(url, marker); idx >= 0 {
		return url[idx+len(marker):], nil
	}
	return "", fmt.Errorf("url %q is not within the configured blob store", url)
}
