package storage

import (
	"context"
	"time"
)

// Object is a listing entry.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Backend is a bucket-scoped blob store. Remove of an absent key succeeds.
type Backend interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Remove(ctx context.Context, key string) error
	// List calls fn for every object under prefix. Listing stops at the
	// first error fn returns.
	List(ctx context.Context, prefix string, fn func(Object) error) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
