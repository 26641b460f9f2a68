package osm

import (
	"errors"
	"strings"
	"testing"
)

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{10 * 1024, "10240 B"},
		{10*1024 + 1, "10.00 KiB"},
		{512 * 1024, "512.00 KiB"},
		{10 * 1024 * 1024, "10240.00 KiB"},
		{10*1024*1024 + 1, "10.00 MiB"},
		{64 * 1024 * 1024, "64.00 MiB"},
	}

	for _, tt := range tests {
		if got := humanBytes(tt.size); got != tt.expected {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.size, got, tt.expected)
		}
	}
}

func seedSized(t *testing.T, state *State, path ObjectPath, version Version, size int64) {
	t.Helper()
	err := state.createVersion(path, version, ObjectMeta{SizeBytes: size, Format: path.Format()})
	if err != nil {
		t.Fatalf("seeding %s@%s: %v", path, version, err)
	}
}

func TestListObjects_Render(t *testing.T) {
	state := NewState()
	partition := DatasetPath{Bucket: "raw", Name: "events"}.Partition("date=2020-01")
	seedSized(t, state, partition.Object("a.jsonl"), 1, 100)
	seedSized(t, state, partition.Object("a.jsonl"), 2, 200)
	seedSized(t, state, partition.Object("b.csv"), 1, 50)

	out, err := NewListObjects(partition).Render(state)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if !strings.Contains(out, `List Objects for "raw/events/date=2020-01":`) {
		t.Errorf("missing header in:\n%s", out)
	}
	// The listing shows current versions only.
	if !strings.Contains(out, "a.jsonl (version: v2, size: 200 B, format: jsonl)") {
		t.Errorf("missing a.jsonl line in:\n%s", out)
	}
	if !strings.Contains(out, "b.csv (version: v1, size: 50 B, format: csv)") {
		t.Errorf("missing b.csv line in:\n%s", out)
	}
}

func TestListObjects_MissingPartition(t *testing.T) {
	state := NewState()
	partition := DatasetPath{Bucket: "raw", Name: "events"}.Partition("p")

	_, err := NewListObjects(partition).Render(state)
	if !errors.Is(err, ErrMissingDataset) {
		t.Errorf("expected ErrMissingDataset, got: %v", err)
	}
}

func TestSizeOf_Render(t *testing.T) {
	state := NewState()
	dataset := DatasetPath{Bucket: "raw", Name: "events"}
	seedSized(t, state, dataset.Partition("p1").Object("a.jsonl"), 1, 100)
	seedSized(t, state, dataset.Partition("p1").Object("a.jsonl"), 2, 200)
	seedSized(t, state, dataset.Partition("p2").Object("b.jsonl"), 1, 700)

	out, err := NewSizeOf(dataset, nil, false).Render(state)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	// Sizes sum every live version.
	if !strings.Contains(out, "p1 (objects: 1, size: 300 B)") {
		t.Errorf("missing p1 line in:\n%s", out)
	}
	if !strings.Contains(out, "p2 (objects: 1, size: 700 B)") {
		t.Errorf("missing p2 line in:\n%s", out)
	}
	if !strings.Contains(out, "total: 1000 B") {
		t.Errorf("missing total in:\n%s", out)
	}
	if strings.Contains(out, "a.jsonl") {
		t.Errorf("non-detailed render must not list objects:\n%s", out)
	}
}

func TestSizeOf_DetailedAndFiltered(t *testing.T) {
	state := NewState()
	dataset := DatasetPath{Bucket: "raw", Name: "events"}
	seedSized(t, state, dataset.Partition("p1").Object("a.jsonl"), 1, 100)
	seedSized(t, state, dataset.Partition("p2").Object("b.jsonl"), 1, 700)

	out, err := NewSizeOf(dataset, []string{"p1"}, true).Render(state)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if !strings.Contains(out, "a.jsonl (size: 100 B)") {
		t.Errorf("detailed render must list objects:\n%s", out)
	}
	if strings.Contains(out, "p2") {
		t.Errorf("filtered render must omit other partitions:\n%s", out)
	}
	if !strings.Contains(out, "total: 100 B") {
		t.Errorf("total must cover only selected partitions:\n%s", out)
	}
}
