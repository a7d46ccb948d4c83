// Package metadata loads project metadata files into generic maps.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ParseError reports a metadata file that exists but cannot be decoded.
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s metadata %s: %v", e.Format, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads the metadata file at path. The decoder is picked from the
// file extension: .yaml and .yml use YAML, .toml uses TOML and anything
// else is read as JSON.
// A missing file yields an empty map and no error.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes data using the format implied by name.
func Parse(name string, data []byte) (map[string]any, error) {
	format := Format(name)
	out := map[string]any{}
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &out)
	case "toml":
		err = toml.Unmarshal(data, &out)
	default:
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, &ParseError{Path: name, Format: format, Err: err}
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Format returns the metadata format for a file name.
func Format(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}
