// Package storage is the object store the asynchronous path coordinates through.
// Keys are write-once; nothing else is shared between requests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist. On the
	// asynchronous path this is the expected answer while a file is processing.
	ErrNotFound = errors.New("object not found")

	// ErrAlreadyExists is returned when a write would overwrite an object.
	ErrAlreadyExists = errors.New("object already exists")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
	Location    string
	Metadata    map[string]string
	Created     time.Time
}

// ObjectStore provides the operations the converter needs from cloud storage.
// This interface enables mocking and testing of storage functionality.
type ObjectStore interface {
	// Put writes r under key. It fails with ErrAlreadyExists instead of overwriting.
	Put(ctx context.Context, key, contentType string, metadata map[string]string, r io.Reader) (ObjectInfo, error)

	// Stat returns the object's attributes or ErrNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Open streams the object's bytes. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Bucket names the underlying bucket.
	Bucket() string

	Close() error
}

// Backend names.
const (
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
}

// New creates the configured store.
func New(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch cfg.Backend {
	case BackendGCS:
		return NewGCSStore(ctx, cfg.Bucket)
	case BackendMemory, "":
		return NewMemoryStore(cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
