package binder

import (
	"fmt"
	"maps"

	"github.com/go-viper/mapstructure/v2"

	"github.com/eugenenazirov/proptest/internal/coerce"
)

// State tells where the value of a bound attribute came from.
type State int

const (
	// StateAbsent marks an optional attribute with no key and no default.
	StateAbsent State = iota
	// StateBound marks a value read from a source.
	StateBound
	// StateDefaulted marks a value taken from the schema default.
	StateDefaulted
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateDefaulted:
		return "defaulted"
	default:
		return "absent"
	}
}

// Value is a single bound attribute.
type Value struct {
	Key   string
	Kind  coerce.Kind
	State State
	value any
}

// Present reports whether the attribute carries a value.
func (v Value) Present() bool {
	return v.State != StateAbsent
}

// Raw returns the typed value: string, int, []string, map[string]any or
// *Record. Lists and maps are copies.
func (v Value) Raw() any {
	switch val := v.value.(type) {
	case []string:
		return append([]string(nil), val...)
	case map[string]any:
		return maps.Clone(val)
	default:
		return val
	}
}

// Record is an immutable set of attributes bound from a key prefix. It
// holds no reference to the source it was bound from.
type Record struct {
	prefix string
	schema string
	order  []string
	values map[string]Value
}

func newRecord(prefix string, schema Schema) *Record {
	return &Record{
		prefix: prefix,
		schema: schema.Name,
		order:  make([]string, 0, len(schema.Fields)),
		values: make(map[string]Value, len(schema.Fields)),
	}
}

func (r *Record) set(name string, v Value) {
	r.order = append(r.order, name)
	r.values[name] = v
}

// Prefix returns the key prefix the record was bound from.
func (r *Record) Prefix() string {
	return r.prefix
}

// Schema returns the schema name.
func (r *Record) Schema() string {
	return r.schema
}

// Fields returns attribute names in declaration order.
func (r *Record) Fields() []string {
	return append([]string(nil), r.order...)
}

// Get returns the attribute called name; ok is false for undeclared names.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether name was bound or defaulted.
func (r *Record) Has(name string) bool {
	v, ok := r.values[name]
	return ok && v.Present()
}

// String returns a string attribute, or "" when absent.
func (r *Record) String(name string) string {
	s, _ := r.values[name].value.(string)
	return s
}

// Int returns an integer attribute, or 0 when absent.
func (r *Record) Int(name string) int {
	n, _ := r.values[name].value.(int)
	return n
}

// List returns a copy of a list attribute, or nil when absent.
func (r *Record) List(name string) []string {
	l, _ := r.values[name].value.([]string)
	if l == nil {
		return nil
	}
	return append([]string(nil), l...)
}

// Map returns a copy of a map attribute, or nil when absent.
func (r *Record) Map(name string) map[string]any {
	m, _ := r.values[name].value.(map[string]any)
	return maps.Clone(m)
}

// Record returns a nested record, or nil for undeclared names.
func (r *Record) Record(name string) *Record {
	child, _ := r.values[name].value.(*Record)
	return child
}

// AsMap returns present attributes keyed by name; nested records become
// nested maps.
func (r *Record) AsMap() map[string]any {
	out := make(map[string]any, len(r.values))
	for _, name := range r.order {
		v := r.values[name]
		if !v.Present() {
			continue
		}
		if child, ok := v.value.(*Record); ok {
			out[name] = child.AsMap()
			continue
		}
		out[name] = v.Raw()
	}
	return out
}

// Decode copies the record into out, a pointer to a struct whose fields are
// matched by their mapstructure tag or, failing that, case-insensitively by
// name. Absent attributes leave the target field untouched.
func (r *Record) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(r.AsMap()); err != nil {
		return fmt.Errorf("decode %s: %w", r.prefix, err)
	}
	return nil
}
