package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestMemoryStorePutStatOpen(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("test-bucket")
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return created })

	meta := map[string]string{"original-name": "March.csv"}
	info, err := s.Put(ctx, "incoming/a.csv", "text/csv", meta, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Size != 5 || info.ETag == "" || info.Location != "mem://test-bucket/incoming/a.csv" {
		t.Errorf("unexpected info: %+v", info)
	}

	meta["original-name"] = "mutated"
	got, err := s.Stat(ctx, "incoming/a.csv")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if got.Metadata["original-name"] != "March.csv" {
		t.Errorf("metadata should be copied on write, got %q", got.Metadata["original-name"])
	}
	if !got.Created.Equal(created) {
		t.Errorf("Created = %v, want %v", got.Created, created)
	}

	rc, _, err := s.Open(ctx, "incoming/a.csv")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "hello" {
		t.Errorf("body = %q", body)
	}
}

func TestMemoryStoreWriteOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")

	if _, err := s.Put(ctx, "k", "text/plain", nil, strings.NewReader("1")); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	_, err := s.Put(ctx, "k", "text/plain", nil, strings.NewReader("2"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second Put() error = %v, want ErrAlreadyExists", err)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")

	if _, err := s.Stat(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat() error = %v, want ErrNotFound", err)
	}
	if _, _, err := s.Open(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")
	for _, k := range []string{"incoming/2", "parsed/x.qbo", "incoming/1"} {
		if _, err := s.Put(ctx, k, "", nil, strings.NewReader(k)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx, "incoming/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Key != "incoming/1" || got[1].Key != "incoming/2" {
		t.Errorf("List() = %+v", got)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(context.Background(), Config{Backend: BackendMemory, Bucket: "b"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Bucket() != "b" {
		t.Errorf("Bucket() = %q", s.Bucket())
	}

	if _, err := New(context.Background(), Config{Backend: "s3"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
