// Package coerce converts raw configuration strings into typed values:
// strings, base-10 integers, comma-separated lists and inline maps.
package coerce

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Kind is the semantic type a raw value is converted to.
type Kind int

const (
	String Kind = iota
	Int
	List
	Map
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// ErrTypeCoercion is matched by every conversion failure.
var ErrTypeCoercion = errors.New("type coercion failed")

// Error describes a value that cannot be converted to its declared kind.
type Error struct {
	Key    string
	Value  string
	Target string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("cannot convert %q to %s", e.Value, e.Target)
	if e.Key != "" {
		msg = fmt.Sprintf("%s: %s", e.Key, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTypeCoercion.
func (e *Error) Is(target error) bool {
	return target == ErrTypeCoercion
}

// Coercer converts raw values. Anomalies that are not fatal, such as
// duplicate keys in a map literal, are logged.
type Coercer struct {
	logger *zap.Logger
}

// New creates a Coercer. A nil logger discards warnings.
func New(logger *zap.Logger) *Coercer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coercer{logger: logger}
}

// Coerce converts raw to kind. elem is the value kind of a Map and is
// ignored otherwise. key is only used to annotate errors and logs.
func (c *Coercer) Coerce(key, raw string, kind, elem Kind) (any, error) {
	switch kind {
	case String:
		return raw, nil
	case Int:
		v, err := c.Int(raw)
		return v, withKey(err, key)
	case List:
		return c.List(raw), nil
	case Map:
		v, err := c.parseMap(key, raw, elem)
		return v, withKey(err, key)
	default:
		return nil, &Error{Key: key, Value: raw, Target: kind.String()}
	}
}

// Int parses a base-10 integer after trimming surrounding whitespace.
func (c *Coercer) Int(raw string) (int, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 0)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &Error{Value: raw, Target: Int.String(), Err: err}
	}
	return int(v), nil
}

// List splits raw on commas and trims every element. Order and duplicates
// are preserved. An empty or blank value yields an empty list.
func (c *Coercer) List(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

// Map parses an inline literal such as {A:80,B:90} or [A:80,B:90]. Keys may
// be quoted. Values are converted to elem, which must be String or Int.
func (c *Coercer) Map(raw string, elem Kind) (map[string]any, error) {
	return c.parseMap("", raw, elem)
}

func (c *Coercer) parseMap(key, raw string, elem Kind) (map[string]any, error) {
	if elem != String && elem != Int {
		return nil, &Error{Value: raw, Target: "map of " + elem.String(), Err: errors.New("unsupported map value kind")}
	}

	body, err := unwrapLiteral(raw)
	if err != nil {
		return nil, &Error{Value: raw, Target: Map.String(), Err: err}
	}

	out := make(map[string]any)
	for _, entry := range splitTopLevel(body) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		k, v, ok := cutPair(entry)
		if !ok {
			return nil, &Error{Value: raw, Target: Map.String(), Err: fmt.Errorf("entry %q has no key separator", entry)}
		}
		k = unquote(strings.TrimSpace(k))
		if k == "" {
			return nil, &Error{Value: raw, Target: Map.String(), Err: fmt.Errorf("entry %q has an empty key", entry)}
		}
		v = unquote(strings.TrimSpace(v))

		var typed any = v
		if elem == Int {
			n, err := c.Int(v)
			if err != nil {
				return nil, &Error{Value: raw, Target: "map of int", Err: fmt.Errorf("entry %q: %w", k, err)}
			}
			typed = n
		}

		if previous, dup := out[k]; dup {
			c.logger.Warn("duplicate key in map literal, last value wins",
				zap.String("property", key),
				zap.String("key", k),
				zap.Any("previous", previous),
				zap.Any("value", typed),
			)
		}
		out[k] = typed
	}
	return out, nil
}

func unwrapLiteral(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	if len(s) >= 2 && ((s[0] == '{' && s[len(s)-1] == '}') || (s[0] == '[' && s[len(s)-1] == ']')) {
		return s[1 : len(s)-1], nil
	}
	return "", errors.New("map literal must be enclosed in {} or []")
}

// splitTopLevel splits on commas outside quotes.
func splitTopLevel(s string) []string {
	var (
		parts []string
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// cutPair splits an entry at the first ':' or '=' outside quotes.
func cutPair(entry string) (string, string, bool) {
	var quote rune
	for i, r := range entry {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ':' || r == '=':
			return entry[:i], entry[i+1:], true
		}
	}
	return "", "", false
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func withKey(err error, key string) error {
	var ce *Error
	if errors.As(err, &ce) && ce.Key == "" {
		ce.Key = key
	}
	return err
}
