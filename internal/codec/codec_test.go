package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		name   string
	}{
		{"jsonl", "jsonl"},
		{"json", "jsonl"},
		{"csv", "csv"},
		{"parquet", "parquet"},
	}

	for _, tt := range tests {
		c, err := ForFormat(tt.format)
		if err != nil {
			t.Fatalf("ForFormat(%q) failed: %v", tt.format, err)
		}
		if c.Name() != tt.name {
			t.Errorf("ForFormat(%q).Name() = %q, want %q", tt.format, c.Name(), tt.name)
		}
	}

	if _, err := ForFormat("avro"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat for unknown format, got: %v", err)
	}
}

func TestJSONL_RoundTrip(t *testing.T) {
	c := NewJSONL()
	records := []map[string]any{
		{"id": float64(1), "name": "alpha"},
		{"id": float64(2), "name": "beta", "active": true},
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, records); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := c.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(decoded))
	}
	if decoded[0]["name"] != "alpha" || decoded[1]["active"] != true {
		t.Errorf("decoded records do not match: %v", decoded)
	}
}

func TestJSONL_Decode_SkipsEmptyLines(t *testing.T) {
	c := NewJSONL()
	decoded, err := c.Decode([]byte("{\"id\":1}\n\n{\"id\":2}\n"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("expected 2 records, got %d", len(decoded))
	}
}

func TestJSONL_Decode_Invalid(t *testing.T) {
	c := NewJSONL()
	if _, err := c.Decode([]byte("not json\n")); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got: %v", err)
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	c := NewCSV()
	records := []map[string]any{
		{"id": int64(1), "name": "alpha", "score": 1.5},
		{"id": int64(2), "name": "beta", "score": 2.5},
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, records); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := c.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(decoded))
	}
	if decoded[0]["id"] != int64(1) {
		t.Errorf("expected int64 id, got %T %v", decoded[0]["id"], decoded[0]["id"])
	}
	if decoded[1]["score"] != 2.5 {
		t.Errorf("expected float score, got %v", decoded[1]["score"])
	}
	if decoded[0]["name"] != "alpha" {
		t.Errorf("expected name alpha, got %v", decoded[0]["name"])
	}
}

func TestCSV_Encode_Empty(t *testing.T) {
	c := NewCSV()
	var buf bytes.Buffer
	if err := c.Encode(&buf, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty records, got %q", buf.String())
	}
}

func TestParquet_RoundTrip(t *testing.T) {
	c := NewParquet()
	records := []map[string]any{
		{"id": int64(1), "name": "alpha", "score": 1.5, "active": true},
		{"id": int64(2), "name": "beta", "score": 2.5, "active": false},
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, records); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := c.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(decoded))
	}
	if decoded[0]["id"] != int64(1) || decoded[0]["name"] != "alpha" {
		t.Errorf("record 0 mismatch: %v", decoded[0])
	}
	if decoded[1]["score"] != 2.5 || decoded[1]["active"] != false {
		t.Errorf("record 1 mismatch: %v", decoded[1])
	}
}

func TestParquet_EmptyRoundTrip(t *testing.T) {
	c := NewParquet()

	var buf bytes.Buffer
	if err := c.Encode(&buf, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for zero records, got %d bytes", buf.Len())
	}

	decoded, err := c.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("expected zero records, got %d", len(decoded))
	}
}

func TestParquet_Decode_Invalid(t *testing.T) {
	c := NewParquet()
	if _, err := c.Decode([]byte("not parquet")); err == nil {
		t.Error("expected error decoding junk payload")
	}
}
