package s3

import (
	"bytes"
	"errors"
	"testing"

	"github.com/angelini/osm/osm"
)

// -----------------------------------------------------------------------------
// Unit tests for the S3 store
// These use the mock client and don't require real S3/LocalStack/MinIO.
// -----------------------------------------------------------------------------

func testObject(key string) osm.ObjectPath {
	return osm.DatasetPath{Bucket: "raw", Name: "events"}.Partition("2024-01-01").Object(key)
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, Config{Bucket: "test"})
	if err == nil {
		t.Error("expected error for nil client")
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(NewMockS3Client(), Config{})
	if err == nil {
		t.Error("expected error for empty bucket")
	}
}

func TestNew_PrefixNormalization(t *testing.T) {
	tests := []struct {
		prefix   string
		expected string
	}{
		{"", ""},
		{"foo", "foo/"},
		{"foo/", "foo/"},
		{"foo/bar", "foo/bar/"},
	}

	for _, tt := range tests {
		store, err := New(NewMockS3Client(), Config{Bucket: "test", Prefix: tt.prefix})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if store.prefix != tt.expected {
			t.Errorf("prefix %q: expected %q, got %q", tt.prefix, tt.expected, store.prefix)
		}
	}
}

func TestStore_WriteRead_RoundTrip(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	path := testObject("part-0.jsonl")
	payload := []byte(`{"id":1}`)

	if err := store.Write(ctx, path, 1, payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := store.Read(ctx, path, 1)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("expected %q, got %q", payload, data)
	}
}

func TestStore_Write_ErrVersionExists(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	path := testObject("part-0.jsonl")
	if err := store.Write(ctx, path, 1, []byte("first")); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}

	err := store.Write(ctx, path, 1, []byte("second"))
	if !errors.Is(err, osm.ErrVersionExists) {
		t.Errorf("expected ErrVersionExists, got: %v", err)
	}
}

func TestStore_Write_DistinctVersionsCoexist(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	path := testObject("part-0.jsonl")
	if err := store.Write(ctx, path, 1, []byte("v1")); err != nil {
		t.Fatalf("Write v1 failed: %v", err)
	}
	if err := store.Write(ctx, path, 2, []byte("v2")); err != nil {
		t.Fatalf("Write v2 failed: %v", err)
	}

	data, err := store.Read(ctx, path, 2)
	if err != nil {
		t.Fatalf("Read v2 failed: %v", err)
	}
	if string(data) != "v2" {
		t.Errorf("expected v2 payload, got %q", data)
	}
}

func TestStore_Read_ErrNotFound(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	_, err := store.Read(ctx, testObject("missing.jsonl"), 1)
	if !errors.Is(err, osm.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestStore_Write_ErrInvalidPath(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	bad := osm.DatasetPath{Bucket: "raw", Name: ".."}.Partition("p").Object("k")
	err := store.Write(ctx, bad, 1, []byte("x"))
	if !errors.Is(err, osm.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got: %v", err)
	}
}

func TestStore_Delete_Exists(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	path := testObject("part-0.jsonl")
	_ = store.Write(ctx, path, 1, []byte("x"))

	if err := store.Delete(ctx, path, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := store.Read(ctx, path, 1)
	if !errors.Is(err, osm.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got: %v", err)
	}
}

func TestStore_Delete_ErrNotFound(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	err := store.Delete(ctx, testObject("missing.jsonl"), 1)
	if !errors.Is(err, osm.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestStore_ListDatasets(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test", Prefix: "stores/"})

	a := osm.DatasetPath{Bucket: "raw", Name: "events"}.Partition("p1").Object("a.jsonl")
	b := osm.DatasetPath{Bucket: "raw", Name: "users"}.Partition("p1").Object("b.jsonl")
	c := osm.DatasetPath{Bucket: "curated", Name: "events"}.Partition("p1").Object("c.jsonl")
	_ = store.Write(ctx, a, 1, []byte("a"))
	_ = store.Write(ctx, b, 1, []byte("b"))
	_ = store.Write(ctx, c, 1, []byte("c"))

	datasets, err := store.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets failed: %v", err)
	}

	expected := []osm.DatasetPath{
		{Bucket: "curated", Name: "events"},
		{Bucket: "raw", Name: "events"},
		{Bucket: "raw", Name: "users"},
	}
	if len(datasets) != len(expected) {
		t.Fatalf("expected %d datasets, got %d", len(expected), len(datasets))
	}
	for i, want := range expected {
		if datasets[i] != want {
			t.Errorf("dataset %d: expected %s, got %s", i, want, datasets[i])
		}
	}
}

func TestStore_ListPartitions(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	dataset := osm.DatasetPath{Bucket: "raw", Name: "events"}
	_ = store.Write(ctx, dataset.Partition("2024-01-02").Object("a.jsonl"), 1, []byte("a"))
	_ = store.Write(ctx, dataset.Partition("2024-01-01").Object("b.jsonl"), 1, []byte("b"))

	partitions, err := store.ListPartitions(ctx, dataset)
	if err != nil {
		t.Fatalf("ListPartitions failed: %v", err)
	}
	if len(partitions) != 2 || partitions[0] != "2024-01-01" || partitions[1] != "2024-01-02" {
		t.Errorf("expected sorted partitions, got %v", partitions)
	}
}

func TestStore_ListObjects_VersionsAndSizes(t *testing.T) {
	ctx := t.Context()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	partition := osm.DatasetPath{Bucket: "raw", Name: "events"}.Partition("2024-01-01")
	_ = store.Write(ctx, partition.Object("b.jsonl"), 1, []byte("bbbb"))
	_ = store.Write(ctx, partition.Object("a.jsonl"), 2, []byte("aa"))
	_ = store.Write(ctx, partition.Object("a.jsonl"), 1, []byte("a"))

	entries, err := store.ListObjects(ctx, partition)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}

	expected := []osm.ObjectEntry{
		{Key: "a.jsonl", Version: 1, SizeBytes: 1},
		{Key: "a.jsonl", Version: 2, SizeBytes: 2},
		{Key: "b.jsonl", Version: 1, SizeBytes: 4},
	}
	if len(entries) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(entries))
	}
	for i, want := range expected {
		if entries[i] != want {
			t.Errorf("entry %d: expected %+v, got %+v", i, want, entries[i])
		}
	}
}

func TestStore_ListObjects_IgnoresForeignKeys(t *testing.T) {
	ctx := t.Context()
	mock := NewMockS3Client()
	store, _ := New(mock, Config{Bucket: "test"})

	partition := osm.DatasetPath{Bucket: "raw", Name: "events"}.Partition("2024-01-01")
	_ = store.Write(ctx, partition.Object("a.jsonl"), 1, []byte("a"))

	// Keys without a version suffix are not part of the namespace.
	mock.mu.Lock()
	mock.objects["raw/events/2024-01-01/_manifest"] = []byte("x")
	mock.mu.Unlock()

	entries, err := store.ListObjects(ctx, partition)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "a.jsonl" {
		t.Errorf("expected only the versioned object, got %+v", entries)
	}
}
