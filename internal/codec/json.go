package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"netbloom/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads a bare tuple list or a {"connections": [...]} object
func (c *JSONCodec) Parse(r io.Reader) ([]domain.Connection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var conns []domain.Connection
		if err := json.Unmarshal(data, &conns); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return conns, nil
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return snap.Connections, nil
}

// Export writes the snapshot as a JSON object
func (c *JSONCodec) Export(snap *domain.Snapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
