package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON schema used to check model output shape.
type Schema struct {
	compiled *jsonschema.Schema
}

var schemaCache sync.Map // name -> *Schema

// CompileSchema compiles schemaMap once per name.
func CompileSchema(name string, schemaMap map[string]any) (*Schema, error) {
	if s, ok := schemaCache.Load(name); ok {
		return s.(*Schema), nil
	}
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	s := &Schema{compiled: compiled}
	actual, _ := schemaCache.LoadOrStore(name, s)
	return actual.(*Schema), nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(name string, schemaMap map[string]any) *Schema {
	s, err := CompileSchema(name, schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks an already-decoded JSON value.
func (s *Schema) Validate(v any) error {
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// NullableString is the schema fragment for "string|null".
func NullableString() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

// NullableOf is the schema fragment for "<t>|null".
func NullableOf(t string) map[string]any {
	return map[string]any{"type": []any{t, "null"}}
}
