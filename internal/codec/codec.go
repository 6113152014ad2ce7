// Package codec reads and writes connection snapshots.
//
// A snapshot document is either a bare list of connection tuples or an
// object with a "connections" list. A document that carries no snapshot at
// all (null, empty input, or an object without "connections") decodes to a
// nil slice, which the engine treats as "no data this cycle". An empty list
// decodes to an empty, non-nil slice and clears the graph.
package codec

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"netbloom/internal/domain"
)

// Importer parses a snapshot document
type Importer interface {
	Parse(r io.Reader) ([]domain.Connection, error)
	Format() string
}

// Exporter writes a snapshot document
type Exporter interface {
	Export(snap *domain.Snapshot, w io.Writer) error
	Format() string
}

// Codec is both an Importer and an Exporter
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec for a format name (json, yaml, yml)
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot format: %s", format)
	}
}

// ForPath picks the codec from a file extension
func ForPath(path string) (Codec, error) {
	return ForFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ForContentType picks the codec from an HTTP Content-Type. Unknown or
// missing types fall back to JSON.
func ForContentType(contentType string) Codec {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return NewJSONCodec()
	}
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return NewYAMLCodec()
	default:
		return NewJSONCodec()
	}
}
