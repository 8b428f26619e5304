package pipeline

import (
	"context"
	"io"

	"github.com/dvloznov/qbo-converter/internal/storage"
)

// SourceStore is the part of storage.ObjectStore the worker steps use.
// This interface enables mocking and testing of storage functionality.
type SourceStore interface {
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Put(ctx context.Context, key, contentType string, metadata map[string]string, r io.Reader) (storage.ObjectInfo, error)
}

var _ SourceStore = storage.ObjectStore(nil)
