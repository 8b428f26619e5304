package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// MemoryStore is an in-memory ObjectStore for local development and tests.
// It is safe for concurrent use. Data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(bucket string) *MemoryStore {
	if bucket == "" {
		bucket = "local"
	}
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// SetClock overrides the time recorded as an object's creation time.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Bucket implements ObjectStore.
func (s *MemoryStore) Bucket() string {
	return s.bucket
}

// Close implements ObjectStore.
func (s *MemoryStore) Close() error {
	return nil
}

// Put implements ObjectStore.
func (s *MemoryStore) Put(ctx context.Context, key, contentType string, metadata map[string]string, r io.Reader) (ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("read object body %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; exists {
		return ObjectInfo{}, fmt.Errorf("put %s: %w", key, ErrAlreadyExists)
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	info := ObjectInfo{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		ETag:        strconv.FormatUint(xxhash.Sum64(data), 16),
		Location:    fmt.Sprintf("mem://%s/%s", s.bucket, key),
		Metadata:    meta,
		Created:     s.now(),
	}
	s.objects[key] = memoryObject{data: data, info: info}

	return copyInfo(info), nil
}

// Stat implements ObjectStore.
func (s *MemoryStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, ErrNotFound)
	}
	return copyInfo(obj.info), nil
}

// Open implements ObjectStore.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ObjectInfo{}, fmt.Errorf("open %s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), copyInfo(obj.info), nil
}

// List implements ObjectStore. Results are ordered by key.
func (s *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ObjectInfo
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyInfo(obj.info))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func copyInfo(info ObjectInfo) ObjectInfo {
	meta := make(map[string]string, len(info.Metadata))
	for k, v := range info.Metadata {
		meta[k] = v
	}
	info.Metadata = meta
	return info
}

var _ ObjectStore = (*MemoryStore)(nil)
