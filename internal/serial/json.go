package serial

import (
	"encoding/json"

	"github.com/yarikc/composer/internal/ast"
)

// MarshalJSON renders a composition as the spec.md §6.1 document,
// indented the way cmd/composer's default (no-flag) mode emits it.
func MarshalJSON(c *ast.Composition) ([]byte, error) {
	doc, err := EncodeDocument(c)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalJSON parses a spec.md §6.1 document back into a composition.
func UnmarshalJSON(data []byte) (*ast.Composition, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return DecodeDocument(&doc)
}
