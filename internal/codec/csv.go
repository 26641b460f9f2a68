package codec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// CSV implements Codec using comma-separated values with a header row.
// Decoded values are parsed as int64, float64, or bool where possible and
// kept as strings otherwise.
type CSV struct{}

// NewCSV creates a CSV codec.
func NewCSV() *CSV {
	return &CSV{}
}

// Name returns the codec identifier.
func (c *CSV) Name() string {
	return "csv"
}

// Encode writes records with a header derived from the first record's
// column names in sorted order.
func (c *CSV) Encode(w io.Writer, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}
	columns := make([]string, 0, len(records[0]))
	for name := range records[0] {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for _, record := range records {
		for i, name := range columns {
			row[i] = fmt.Sprint(record[name])
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Decode reads a header row followed by data rows.
func (c *CSV) Decode(data []byte) ([]map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := rows[0]
	records := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]any, len(columns))
		for i, name := range columns {
			if i < len(row) {
				record[name] = parseScalar(row[i])
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func parseScalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
