// Package codec provides record serialization for the payload transforms:
// JSON Lines, CSV, and Parquet.
package codec

import (
	"errors"
	"fmt"
	"io"
)

// ErrInvalidFormat indicates a payload that cannot be decoded as the
// expected format.
var ErrInvalidFormat = errors.New("invalid format")

// Codec handles serialization and deserialization of records. Records are
// flat maps of column name to value.
type Codec interface {
	// Name returns the codec identifier ("jsonl", "csv", "parquet").
	Name() string

	// Encode writes records to the given writer.
	Encode(w io.Writer, records []map[string]any) error

	// Decode reads records from the given payload.
	Decode(data []byte) ([]map[string]any, error)
}

// ForFormat returns the codec for an object format, usually inferred from
// the object key extension.
func ForFormat(format string) (Codec, error) {
	switch format {
	case "jsonl", "json":
		return NewJSONL(), nil
	case "csv":
		return NewCSV(), nil
	case "parquet":
		return NewParquet(), nil
	default:
		return nil, fmt.Errorf("%w: no codec for format %q", ErrInvalidFormat, format)
	}
}
