package objectstore

import (
	"context"
	"time"
)

// ObjectSummary describes one object returned by a prefix listing.
type ObjectSummary struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Provider is the narrow set of primitives an object-store backend must
// supply. A real S3-compatible server, an in-memory fake, or a local-disk
// shim can all satisfy it, and the Adapter built on top is indifferent to
// which one it is handed.
type Provider interface {
	ListPrefix(ctx context.Context, bucket, prefix string) ([]ObjectSummary, error)
	Head(ctx context.Context, bucket, key string) (etag string, err error)
	Delete(ctx context.Context, bucket, key string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
