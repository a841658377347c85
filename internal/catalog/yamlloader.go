package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level structure of an exercises YAML file.
//
// Example:
//
//	exercises:
//	  - id: twinkle
//	    words: [twinkle, twinkle, little, star]
//	  - id: abc
//	    words: [a, b, c, d, e, f, g]
type File struct {
	Exercises []Exercise `yaml:"exercises"`
}

// LoadFile reads and parses an exercises YAML file from disk and builds a
// validated [Catalog].
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open exercises file %q: %w", path, err)
	}
	defer f.Close()

	c, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	return c, nil
}

// LoadFromReader decodes an exercises YAML document from r and builds a
// validated [Catalog]. Unknown fields are rejected. Useful in tests where
// catalogues are constructed from string literals.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return New(file.Exercises)
}
