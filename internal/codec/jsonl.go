package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONL implements Codec using JSON Lines: one JSON object per line.
type JSONL struct{}

// NewJSONL creates a JSONL codec.
func NewJSONL() *JSONL {
	return &JSONL{}
}

// Name returns the codec identifier.
func (j *JSONL) Name() string {
	return "jsonl"
}

// Encode writes records as JSON Lines.
func (j *JSONL) Encode(w io.Writer, records []map[string]any) error {
	enc := json.NewEncoder(w)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads JSON Lines, skipping empty lines.
func (j *JSONL) Decode(data []byte) ([]map[string]any, error) {
	var records []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
