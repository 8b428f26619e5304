package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSStore is the ObjectStore backed by Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a store with a shared client for the given bucket.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewGCSStore: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Bucket implements ObjectStore.
func (s *GCSStore) Bucket() string {
	return s.bucket
}

// Close closes the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Put implements ObjectStore. The write is conditioned on the object not
// existing yet, so a concurrent writer can never replace an upload.
func (s *GCSStore) Put(ctx context.Context, key, contentType string, metadata map[string]string, r io.Reader) (ObjectInfo, error) {
	obj := s.client.Bucket(s.bucket).Object(key).If(storage.Conditions{DoesNotExist: true})

	// Cancelling the writer's context abandons the upload.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return ObjectInfo{}, fmt.Errorf("copy to GCS writer %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return ObjectInfo{}, fmt.Errorf("put %s: %w", key, ErrAlreadyExists)
		}
		return ObjectInfo{}, fmt.Errorf("finalize upload %s: %w", key, err)
	}

	return s.info(w.Attrs()), nil
}

// Stat implements ObjectStore.
func (s *GCSStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return s.info(attrs), nil
}

// Open implements ObjectStore.
func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ObjectInfo{}, fmt.Errorf("open %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("open GCS object reader %s: %w", key, err)
	}

	info := ObjectInfo{
		Key:         key,
		Size:        r.Attrs.Size,
		ContentType: r.Attrs.ContentType,
		Location:    s.location(key),
		Created:     r.Attrs.LastModified,
	}
	return r, info, nil
}

// List implements ObjectStore.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var out []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		out = append(out, s.info(attrs))
	}
}

func (s *GCSStore) info(attrs *storage.ObjectAttrs) ObjectInfo {
	if attrs == nil {
		return ObjectInfo{}
	}
	return ObjectInfo{
		Key:         attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		ETag:        attrs.Etag,
		Location:    s.location(attrs.Name),
		Metadata:    attrs.Metadata,
		Created:     attrs.Created,
	}
}

func (s *GCSStore) location(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

var _ ObjectStore = (*GCSStore)(nil)
