// Package binder maps a key prefix of a configuration source onto a
// declarative Schema, producing an immutable Record.
package binder

import (
	"fmt"
	"strings"

	"github.com/eugenenazirov/proptest/internal/coerce"
	"github.com/eugenenazirov/proptest/internal/placeholder"
	"github.com/eugenenazirov/proptest/internal/source"
)

// Binder binds schemas against resolved source values.
type Binder struct {
	resolver *placeholder.Resolver
	coercer  *coerce.Coercer
}

// New creates a Binder.
func New(resolver *placeholder.Resolver, coercer *coerce.Coercer) *Binder {
	return &Binder{resolver: resolver, coercer: coercer}
}

// Bind walks schema and binds every attribute from prefix.<name>. Unknown
// keys under prefix are ignored. A nested record without any matching key
// is still returned, filled with defaults and absent markers.
func (b *Binder) Bind(prefix string, schema Schema) (*Record, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	return b.bind(prefix, schema)
}

func (b *Binder) bind(prefix string, schema Schema) (*Record, error) {
	rec := newRecord(prefix, schema)

	for _, f := range schema.Fields {
		key := source.Join(prefix, f.Name)

		if f.nested() {
			child, err := b.bind(key, *f.Schema)
			if err != nil {
				return nil, err
			}
			rec.set(f.Name, Value{Key: key, State: StateBound, value: child})
			continue
		}

		v, err := b.bindField(key, f, schema.Name)
		if err != nil {
			return nil, err
		}
		rec.set(f.Name, v)
	}

	return rec, nil
}

func (b *Binder) bindField(key string, f Field, schemaName string) (Value, error) {
	raw, found, err := b.resolver.Lookup(key)
	if err != nil {
		return Value{}, fmt.Errorf("resolve %s: %w", key, err)
	}

	if found {
		typed, err := b.coercer.Coerce(key, raw, f.Kind, f.Elem)
		if err != nil {
			return Value{}, err
		}
		return Value{Key: key, Kind: f.Kind, State: StateBound, value: typed}, nil
	}

	if f.Kind == coerce.Map {
		m, ok, err := b.collectMap(key, f.Elem)
		if err != nil {
			return Value{}, err
		}
		if ok {
			return Value{Key: key, Kind: f.Kind, State: StateBound, value: m}, nil
		}
	}

	switch {
	case f.HasDefault:
		resolved, err := b.resolver.Resolve(f.Default)
		if err != nil {
			return Value{}, fmt.Errorf("resolve default of %s: %w", key, err)
		}
		typed, err := b.coercer.Coerce(key, resolved, f.Kind, f.Elem)
		if err != nil {
			return Value{}, err
		}
		return Value{Key: key, Kind: f.Kind, State: StateDefaulted, value: typed}, nil
	case f.Required:
		return Value{}, &MissingPropertyError{Key: key, Record: schemaName}
	default:
		return Value{Key: key, Kind: f.Kind, State: StateAbsent}, nil
	}
}

// collectMap builds a map attribute from key.<entry> sub-keys, the
// alternative to an inline literal.
func (b *Binder) collectMap(key string, elem coerce.Kind) (map[string]any, bool, error) {
	keys := b.resolver.Source().KeysWithPrefix(key)
	if len(keys) == 0 {
		return nil, false, nil
	}

	depth := strings.Count(key, source.Delimiter) + 1
	out := make(map[string]any, len(keys))
	for _, full := range keys {
		segments := strings.Split(full, source.Delimiter)
		entry := strings.Join(segments[depth:], source.Delimiter)

		raw, _, err := b.resolver.Lookup(full)
		if err != nil {
			return nil, false, fmt.Errorf("resolve %s: %w", full, err)
		}

		var typed any = raw
		if elem == coerce.Int {
			n, err := b.coercer.Coerce(full, raw, coerce.Int, coerce.String)
			if err != nil {
				return nil, false, err
			}
			typed = n
		}
		out[entry] = typed
	}
	return out, true, nil
}
