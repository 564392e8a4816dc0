package core

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Table is anything declarations can be assigned into by name.
type Table interface {
	Set(name string, value any)
}

// LoadStatic declares one static fixture per top-level key of the YAML
// mapping read from r, in document order. opts apply to every fixture.
func LoadStatic(table Table, r io.Reader, opts ...Option) error {
	var doc yaml.Node

	err := yaml.NewDecoder(r).Decode(&doc)
	if errors.Is(err, io.EOF) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to parse static fixtures: %w", err)
	}

	if len(doc.Content) == 0 {
		return nil
	}

	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: static fixtures must be a mapping, line %d", errStaticDocument, mapping.Line)
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, node := mapping.Content[i], mapping.Content[i+1]

		var value any

		err := node.Decode(&value)
		if err != nil {
			return fmt.Errorf("failed to decode static fixture %q: %w", key.Value, err)
		}

		decl, err := Static(value, opts...)
		if err != nil {
			return fmt.Errorf("static fixture %q: %w", key.Value, err)
		}

		table.Set(key.Value, decl)
	}

	return nil
}

// unexported variables.
var (
	errStaticDocument = errors.New("invalid static fixture document")
)
