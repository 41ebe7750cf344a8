package service

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the remote blob storage media files live in
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DeleteMany(ctx context.Context, keys []string) error
}

// StoredObject is returned by a successful Put. URL is the public location
// of the object, Key is what Delete expects.
type StoredObject struct {
	Key string
	URL string
}

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
