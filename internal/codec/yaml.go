package codec

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"netbloom/internal/domain"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse reads a bare tuple sequence or a mapping with a connections key
func (c *YAMLCodec) Parse(r io.Reader) ([]domain.Connection, error) {
	var doc yaml.Node
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	switch root.Kind {
	case yaml.SequenceNode:
		var conns []domain.Connection
		if err := root.Decode(&conns); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if conns == nil {
			conns = []domain.Connection{}
		}
		return conns, nil

	case yaml.MappingNode:
		var snap domain.Snapshot
		if err := root.Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return snap.Connections, nil

	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return nil, nil
		}
	}

	return nil, fmt.Errorf("failed to parse YAML: snapshot must be a list or a mapping")
}

// Export writes the snapshot as a YAML mapping
func (c *YAMLCodec) Export(snap *domain.Snapshot, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
