package schema

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

// Schema is the canonical payload schema document (subject / contract /
// appraiser), kept as a raw map so it can be loaded straight from the
// versioned configuration document.
type Schema map[string]any

func (s *Schema) String() string {
	bytes, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(bytes)
}

// Version returns the schema document's declared version, if any.
func (s *Schema) Version() string {
	if s == nil {
		return ""
	}
	if v, ok := (*s)["version"].(string); ok {
		return v
	}
	return ""
}

// Compile builds the executable schema. A nil receiver compiles to nil,
// meaning structural validation is skipped.
func (s *Schema) Compile() (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return compiled, nil
}
