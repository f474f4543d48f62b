// Package storage persists generated artifacts and issues time-limited
// retrieval references. It also owns derivation of the object path, the
// second safety boundary between a user id and the blob store.
package storage

import (
	"context"
	"time"
)

// BlobStore is the storage collaborator contract.
type BlobStore interface {
	// Put uploads data under bucket/objectPath with the given content type.
	Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error

	// Presign issues a retrieval URL for bucket/objectPath valid for ttl.
	Presign(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error)
}
