package osm

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelini/osm/internal/codec"
)

func encodeJSONL(t *testing.T, records []map[string]any) []byte {
	t.Helper()
	c, err := codec.ForFormat("jsonl")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, records))
	return buf.Bytes()
}

func decodeJSONL(t *testing.T, payload []byte) []map[string]any {
	t.Helper()
	c, err := codec.ForFormat("jsonl")
	require.NoError(t, err)
	records, err := c.Decode(payload)
	require.NoError(t, err)
	return records
}

func numberedRecords(n int) []map[string]any {
	records := make([]map[string]any, n)
	for i := range records {
		records[i] = map[string]any{"id": float64(i)}
	}
	return records
}

func TestSampleTransform(t *testing.T) {
	source := encodeJSONL(t, numberedRecords(100))

	transform := NewSampleTransform("jsonl", 10)
	out, err := transform.Apply([][]byte{source})
	require.NoError(t, err)

	sampled := decodeJSONL(t, out)
	assert.Len(t, sampled, 10)

	// Deterministic: the same input always yields the same sample.
	again, err := transform.Apply([][]byte{source})
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestSampleTransform_RoundsUp(t *testing.T) {
	source := encodeJSONL(t, numberedRecords(3))

	out, err := NewSampleTransform("jsonl", 10).Apply([][]byte{source})
	require.NoError(t, err)

	// 10% of 3 records rounds up to one record.
	assert.Len(t, decodeJSONL(t, out), 1)
}

func TestSampleTransform_FullPercent(t *testing.T) {
	source := encodeJSONL(t, numberedRecords(7))

	out, err := NewSampleTransform("jsonl", 100).Apply([][]byte{source})
	require.NoError(t, err)
	assert.Len(t, decodeJSONL(t, out), 7)
}

func TestSampleTransform_SourceArity(t *testing.T) {
	_, err := NewSampleTransform("jsonl", 10).Apply(nil)
	assert.Error(t, err)
}

func TestRepartitionTransform_ChunksCoverAllRecords(t *testing.T) {
	a := encodeJSONL(t, numberedRecords(5))
	b := encodeJSONL(t, []map[string]any{
		{"id": float64(100)}, {"id": float64(101)}, {"id": float64(102)},
	})

	const count = 3
	var total int
	seen := make(map[string]struct{})
	for i := 0; i < count; i++ {
		out, err := NewRepartitionTransform("jsonl", i, count).Apply([][]byte{a, b})
		require.NoError(t, err)
		for _, record := range decodeJSONL(t, out) {
			key := fmt.Sprint(record["id"])
			_, dup := seen[key]
			assert.False(t, dup, "record %s split into multiple chunks", key)
			seen[key] = struct{}{}
			total++
		}
	}
	assert.Equal(t, 8, total)
}

func TestRepartitionTransform_LastChunkMayBeShort(t *testing.T) {
	source := encodeJSONL(t, numberedRecords(5))

	first, err := NewRepartitionTransform("jsonl", 0, 2).Apply([][]byte{source})
	require.NoError(t, err)
	second, err := NewRepartitionTransform("jsonl", 1, 2).Apply([][]byte{source})
	require.NoError(t, err)

	assert.Len(t, decodeJSONL(t, first), 3)
	assert.Len(t, decodeJSONL(t, second), 2)
}

func TestRepartitionTransform_MoreChunksThanRecords(t *testing.T) {
	c, err := codec.ForFormat("parquet")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, []map[string]any{
		{"id": int64(1)}, {"id": int64(2)},
	}))
	source := buf.Bytes()

	// Three chunks over two records: the trailing chunk is empty but still
	// encodes cleanly.
	var total int
	for i := 0; i < 3; i++ {
		out, err := NewRepartitionTransform("parquet", i, 3).Apply([][]byte{source})
		require.NoError(t, err)
		records, err := c.Decode(out)
		require.NoError(t, err)
		total += len(records)
	}
	assert.Equal(t, 2, total)
}

func TestCompressTransform_RoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("compressible payload ", 200))

	for _, name := range []string{"gzip", "zstd", "noop"} {
		t.Run(name, func(t *testing.T) {
			transform, err := NewCompressTransform(name)
			require.NoError(t, err)

			out, err := transform.Apply([][]byte{payload})
			require.NoError(t, err)
			if name != "noop" {
				assert.Less(t, len(out), len(payload))
			}

			compressor, err := CompressorFor(name)
			require.NoError(t, err)
			r, err := compressor.Decompress(bytes.NewReader(out))
			require.NoError(t, err)
			restored, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, payload, restored)
		})
	}
}

func TestCompressTransform_ReportsCodec(t *testing.T) {
	transform, err := NewCompressTransform("zstd")
	require.NoError(t, err)

	hint, ok := transform.(interface{ Compression() string })
	require.True(t, ok)
	assert.Equal(t, "zstd", hint.Compression())
}

func TestCompressorFor_Unknown(t *testing.T) {
	_, err := CompressorFor("lz77")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGenerateTransform(t *testing.T) {
	transform := NewGenerateTransform(GeneratorSpec{
		Format: "jsonl",
		Rows:   5,
		Fields: []FieldSpec{
			{Name: "id", Kind: FieldInt},
			{Name: "score", Kind: FieldFloat},
			{Name: "label", Kind: FieldString},
			{Name: "flag", Kind: FieldBool},
		},
	})

	out, err := transform.Apply(nil)
	require.NoError(t, err)

	records := decodeJSONL(t, out)
	require.Len(t, records, 5)
	assert.Equal(t, float64(3), records[3]["id"])
	assert.Equal(t, 3.5, records[3]["score"])
	assert.Equal(t, "label-000003", records[3]["label"])
	assert.Equal(t, false, records[3]["flag"])

	// Deterministic across runs.
	again, err := transform.Apply(nil)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestGenerateTransform_CSV(t *testing.T) {
	transform := NewGenerateTransform(GeneratorSpec{
		Format: "csv",
		Rows:   2,
		Fields: []FieldSpec{{Name: "id", Kind: FieldInt}},
	})

	out, err := transform.Apply(nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "id\n"))
}
