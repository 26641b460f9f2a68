package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// Parquet implements Codec using Apache Parquet. The schema is inferred
// from the first record on encode (int64, float64, bool, string columns)
// and read back from the file footer on decode, so payloads are
// self-describing.
type Parquet struct{}

// NewParquet creates a Parquet codec.
func NewParquet() *Parquet {
	return &Parquet{}
}

// Name returns the codec identifier.
func (p *Parquet) Name() string {
	return "parquet"
}

// Encode writes records as a single-row-group Parquet file with snappy
// compression. Zero records encode to an empty payload, since no schema can
// be inferred without a record.
func (p *Parquet) Encode(w io.Writer, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}
	schema, columns, err := inferSchema(records)
	if err != nil {
		return err
	}

	rowBuf := parquet.NewBuffer(schema)
	for i, record := range records {
		row := make(parquet.Row, len(columns))
		for col, name := range columns {
			value, err := toParquetValue(record[name], name, i)
			if err != nil {
				return err
			}
			row[col] = value.Level(0, 0, col)
		}
		if _, err := rowBuf.WriteRows([]parquet.Row{row}); err != nil {
			return fmt.Errorf("parquet: write row %d: %w", i, err)
		}
	}

	writer := parquet.NewWriter(w, schema, parquet.Compression(&parquet.Snappy))
	if _, err := writer.WriteRowGroup(rowBuf); err != nil {
		_ = writer.Close()
		return fmt.Errorf("parquet: write row group: %w", err)
	}
	return writer.Close()
}

// Decode reads every row of a Parquet payload using the file's own schema.
// An empty payload decodes to zero records, mirroring Encode.
func (p *Parquet) Decode(data []byte) ([]map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	fields := file.Schema().Fields()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = field.Name()
	}

	reader := parquet.NewReader(file)
	defer func() { _ = reader.Close() }()

	records := make([]map[string]any, 0, file.NumRows())
	rows := make([]parquet.Row, 128)
	for {
		n, err := reader.ReadRows(rows)
		for i := 0; i < n; i++ {
			record := make(map[string]any, len(columns))
			for col, name := range columns {
				if col < len(rows[i]) {
					record[name] = fromParquetValue(rows[i][col])
				}
			}
			records = append(records, record)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: read rows: %v", ErrInvalidFormat, err)
		}
	}
	return records, nil
}

// inferSchema builds a required-column schema from the first record. Column
// order matches the built schema's field order.
func inferSchema(records []map[string]any) (*parquet.Schema, []string, error) {
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: cannot infer parquet schema from zero records", ErrInvalidFormat)
	}

	names := make([]string, 0, len(records[0]))
	for name := range records[0] {
		names = append(names, name)
	}
	sort.Strings(names)

	group := make(parquet.Group, len(names))
	for _, name := range names {
		switch records[0][name].(type) {
		case int, int32, int64:
			group[name] = parquet.Int(64)
		case float32, float64:
			group[name] = parquet.Leaf(parquet.DoubleType)
		case bool:
			group[name] = parquet.Leaf(parquet.BooleanType)
		case string:
			group[name] = parquet.String()
		default:
			return nil, nil, fmt.Errorf("%w: unsupported parquet column type %T for %q",
				ErrInvalidFormat, records[0][name], name)
		}
	}
	schema := parquet.NewSchema("record", group)

	columns := make([]string, len(schema.Fields()))
	for i, field := range schema.Fields() {
		columns[i] = field.Name()
	}
	return schema, columns, nil
}

func toParquetValue(val any, name string, row int) (parquet.Value, error) {
	switch v := val.(type) {
	case int:
		return parquet.Int64Value(int64(v)), nil
	case int32:
		return parquet.Int64Value(int64(v)), nil
	case int64:
		return parquet.Int64Value(v), nil
	case float32:
		return parquet.DoubleValue(float64(v)), nil
	case float64:
		return parquet.DoubleValue(v), nil
	case bool:
		return parquet.BooleanValue(v), nil
	case string:
		return parquet.ByteArrayValue([]byte(v)), nil
	default:
		return parquet.Value{}, fmt.Errorf("%w: record %d field %q: unsupported type %T",
			ErrInvalidFormat, row, name, val)
	}
}

func fromParquetValue(val parquet.Value) any {
	switch val.Kind() {
	case parquet.Boolean:
		return val.Boolean()
	case parquet.Int32:
		return int64(val.Int32())
	case parquet.Int64:
		return val.Int64()
	case parquet.Float:
		return float64(val.Float())
	case parquet.Double:
		return val.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(val.ByteArray())
	default:
		return nil
	}
}
