package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore talks to the project's S3-compatible storage gateway.
// Supabase storage exposes one, so a stock S3 client covers both upload
// and presigned retrieval.
type MinioStore struct {
	client *minio.Client
}

var _ BlobStore = (*MinioStore)(nil)

// NewMinioStore builds a storage client from the project endpoint URL and
// the service key. The service key serves as both credential halves on
// the storage gateway.
func NewMinioStore(endpointURL, serviceKey string) (*MinioStore, error) {
	u, err := url.Parse(endpointURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid storage endpoint %q", endpointURL)
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(serviceKey, serviceKey, ""),
		Secure: u.Scheme != "http",
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &MinioStore{client: client}, nil
}

// Put uploads the artifact bytes.
func (s *MinioStore) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, objectPath,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

// Presign issues a time-limited GET URL for the object.
func (s *MinioStore) Presign(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, objectPath, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, objectPath, err)
	}
	return u.String(), nil
}
