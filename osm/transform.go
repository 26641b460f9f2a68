package osm

import (
	"bytes"
	"fmt"

	"github.com/angelini/osm/internal/codec"
)

// Transform is the opaque payload function carried by a Create or Update
// action: given the payloads of the action's source versions, it produces
// the payload written at the target. Transforms never touch namespace state
// and their internal algorithms are invisible to the planner.
type Transform interface {
	Name() string
	Apply(sources [][]byte) ([]byte, error)
}

// -----------------------------------------------------------------------------
// Sample
// -----------------------------------------------------------------------------

type sampleTransform struct {
	format  string
	percent float64
}

// NewSampleTransform keeps roughly percent% of the source's records, spread
// evenly across the payload. Deterministic for identical input.
func NewSampleTransform(format string, percent float64) Transform {
	return &sampleTransform{format: format, percent: percent}
}

func (t *sampleTransform) Name() string {
	return fmt.Sprintf("sample(%.1f%%)", t.percent)
}

func (t *sampleTransform) Apply(sources [][]byte) ([]byte, error) {
	if len(sources) != 1 {
		return nil, fmt.Errorf("sample: expected one source, got %d", len(sources))
	}
	c, err := codec.ForFormat(t.format)
	if err != nil {
		return nil, err
	}
	records, err := c.Decode(sources[0])
	if err != nil {
		return nil, err
	}

	keep := (len(records)*int(t.percent*10) + 999) / 1000
	if keep > len(records) {
		keep = len(records)
	}
	sampled := make([]map[string]any, 0, keep)
	if keep > 0 {
		stride := len(records) / keep
		for i := 0; i < keep; i++ {
			sampled = append(sampled, records[i*stride])
		}
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, sampled); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// -----------------------------------------------------------------------------
// Repartition
// -----------------------------------------------------------------------------

type repartitionTransform struct {
	format string
	index  int
	count  int
}

// NewRepartitionTransform concatenates the records of every source and
// returns the index-th of count contiguous chunks.
func NewRepartitionTransform(format string, index, count int) Transform {
	return &repartitionTransform{format: format, index: index, count: count}
}

func (t *repartitionTransform) Name() string {
	return fmt.Sprintf("repartition(%d/%d)", t.index+1, t.count)
}

func (t *repartitionTransform) Apply(sources [][]byte) ([]byte, error) {
	c, err := codec.ForFormat(t.format)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	for _, source := range sources {
		decoded, err := c.Decode(source)
		if err != nil {
			return nil, err
		}
		records = append(records, decoded...)
	}

	chunk := (len(records) + t.count - 1) / t.count
	start := t.index * chunk
	end := start + chunk
	if start > len(records) {
		start = len(records)
	}
	if end > len(records) {
		end = len(records)
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, records[start:end]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// -----------------------------------------------------------------------------
// Compress
// -----------------------------------------------------------------------------

type compressTransform struct {
	compressor Compressor
}

// NewCompressTransform wraps the source payload with the named compression
// codec ("gzip" or "zstd").
func NewCompressTransform(name string) (Transform, error) {
	compressor, err := CompressorFor(name)
	if err != nil {
		return nil, err
	}
	return &compressTransform{compressor: compressor}, nil
}

func (t *compressTransform) Name() string {
	return fmt.Sprintf("compress(%s)", t.compressor.Name())
}

// Compression returns the codec name recorded in object metadata.
func (t *compressTransform) Compression() string {
	return t.compressor.Name()
}

func (t *compressTransform) Apply(sources [][]byte) ([]byte, error) {
	if len(sources) != 1 {
		return nil, fmt.Errorf("compress: expected one source, got %d", len(sources))
	}
	var buf bytes.Buffer
	w, err := t.compressor.Compress(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(sources[0]); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// -----------------------------------------------------------------------------
// Generate
// -----------------------------------------------------------------------------

// FieldKind enumerates the column types a generator can produce.
type FieldKind int

// Generator column types.
const (
	FieldInt FieldKind = iota
	FieldFloat
	FieldString
	FieldBool
)

// FieldSpec describes one generated column.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// GeneratorSpec describes a synthetic payload: row count, columns, and the
// record format to encode ("jsonl", "csv", "parquet").
type GeneratorSpec struct {
	Format string
	Rows   int
	Fields []FieldSpec
}

type generateTransform struct {
	spec GeneratorSpec
}

// NewGenerateTransform produces a deterministic synthetic payload from a
// generator descriptor. It takes no sources.
func NewGenerateTransform(spec GeneratorSpec) Transform {
	return &generateTransform{spec: spec}
}

func (t *generateTransform) Name() string {
	return fmt.Sprintf("generate(%d rows)", t.spec.Rows)
}

func (t *generateTransform) Apply([][]byte) ([]byte, error) {
	c, err := codec.ForFormat(t.spec.Format)
	if err != nil {
		return nil, err
	}
	if len(t.spec.Fields) == 0 {
		return nil, fmt.Errorf("%w: generator needs at least one field", ErrInvalidArgument)
	}

	records := make([]map[string]any, t.spec.Rows)
	for i := range records {
		record := make(map[string]any, len(t.spec.Fields))
		for _, field := range t.spec.Fields {
			switch field.Kind {
			case FieldInt:
				record[field.Name] = int64(i)
			case FieldFloat:
				record[field.Name] = float64(i) + 0.5
			case FieldString:
				record[field.Name] = fmt.Sprintf("%s-%06d", field.Name, i)
			case FieldBool:
				record[field.Name] = i%2 == 0
			default:
				return nil, fmt.Errorf("%w: unknown field kind %d", ErrInvalidArgument, field.Kind)
			}
		}
		records[i] = record
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
