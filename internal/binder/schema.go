package binder

import (
	"errors"
	"fmt"

	"github.com/eugenenazirov/proptest/internal/coerce"
)

// ErrInvalidSchema is returned by Bind for schemas that cannot be bound.
var ErrInvalidSchema = errors.New("invalid schema")

// Field declares one attribute of a record: its name relative to the record
// prefix, its kind, and whether it is required or has a default.
type Field struct {
	Name       string
	Kind       coerce.Kind
	Elem       coerce.Kind
	Required   bool
	Default    string
	HasDefault bool
	// Schema is set for nested records; Kind is ignored then.
	Schema *Schema
}

// String declares a string attribute.
func String(name string) Field {
	return Field{Name: name, Kind: coerce.String}
}

// Int declares a base-10 integer attribute.
func Int(name string) Field {
	return Field{Name: name, Kind: coerce.Int}
}

// List declares a comma-separated list attribute.
func List(name string) Field {
	return Field{Name: name, Kind: coerce.List}
}

// Map declares an inline map attribute whose values have kind elem.
func Map(name string, elem coerce.Kind) Field {
	return Field{Name: name, Kind: coerce.Map, Elem: elem}
}

// Nested declares a child record bound from prefix.name.*.
func Nested(name string, schema Schema) Field {
	return Field{Name: name, Schema: &schema}
}

// Require marks the field as required.
func (f Field) Require() Field {
	f.Required = true
	return f
}

// WithDefault sets the raw value used when the key is absent. The default
// is resolved and coerced like any other value.
func (f Field) WithDefault(raw string) Field {
	f.Default = raw
	f.HasDefault = true
	return f
}

func (f Field) nested() bool {
	return f.Schema != nil
}

// Schema describes the attributes of a record.
type Schema struct {
	Name   string
	Fields []Field
}

// NewSchema creates a schema.
func NewSchema(name string, fields ...Field) Schema {
	return Schema{Name: name, Fields: fields}
}

func (s Schema) validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s has a field without a name", ErrInvalidSchema, s.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s declares %q twice", ErrInvalidSchema, s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.nested() {
			if f.HasDefault {
				return fmt.Errorf("%w: nested record %q cannot have a default", ErrInvalidSchema, f.Name)
			}
			if err := f.Schema.validate(); err != nil {
				return err
			}
			continue
		}
		if f.Required && f.HasDefault {
			return fmt.Errorf("%w: %q is both required and defaulted", ErrInvalidSchema, f.Name)
		}
		if f.Kind == coerce.Map && f.Elem != coerce.String && f.Elem != coerce.Int {
			return fmt.Errorf("%w: map %q has unsupported value kind %s", ErrInvalidSchema, f.Name, f.Elem)
		}
	}
	return nil
}
