package source

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Delimiter separates the segments of a hierarchical key.
const Delimiter = "."

var (
	errEmptyKey     = errors.New("key must not be empty")
	errMalformedKey = errors.New("key has an empty segment or one made only of separators")
)

// Entry is a single raw key/value pair contributed by a provider.
type Entry struct {
	Key   string
	Value string
}

// Provider yields raw entries. Providers are consulted once, by Load.
type Provider interface {
	Name() string
	Entries() ([]Entry, error)
}

// Source is an immutable snapshot of merged provider entries.
type Source struct {
	values    map[string]string
	origins   map[string]string
	relaxed   map[string]string
	keys      []string
	providers []string
}

// Load merges the entries of every provider in order. A key contributed by a
// later provider replaces the value of an earlier one, including when the two
// keys differ only in case or in '-' and '_' separators.
func Load(providers ...Provider) (*Source, error) {
	s := &Source{
		values:  make(map[string]string),
		origins: make(map[string]string),
		relaxed: make(map[string]string),
	}

	for _, p := range providers {
		if p == nil {
			continue
		}
		entries, err := p.Entries()
		if err != nil {
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				return nil, err
			}
			return nil, &LoadError{Provider: p.Name(), Err: err}
		}
		for _, e := range entries {
			key := strings.TrimSpace(e.Key)
			if err := validateKey(key); err != nil {
				return nil, &LoadError{Provider: p.Name(), Key: e.Key, Err: err}
			}
			s.put(key, e.Value, p.Name())
		}
		s.providers = append(s.providers, p.Name())
	}

	return s, nil
}

func (s *Source) put(key, value, provider string) {
	canonical := Canonical(key)
	if existing, ok := s.relaxed[canonical]; ok {
		key = existing
	} else {
		s.relaxed[canonical] = key
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
	s.origins[key] = provider
}

// Lookup returns the raw value registered for key. Exact matches win over
// relaxed ones.
func (s *Source) Lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	if v, ok := s.values[key]; ok {
		return v, true
	}
	if exact, ok := s.relaxedKey(key); ok {
		return s.values[exact], true
	}
	return "", false
}

// Origin returns the name of the provider that supplied key.
func (s *Source) Origin(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	if exact, ok := s.relaxedKey(key); ok {
		return s.origins[exact], true
	}
	return "", false
}

// relaxedKey maps key to the stored key it overrides. A key without any
// significant character never matches.
func (s *Source) relaxedKey(key string) (string, bool) {
	canonical := Canonical(key)
	if canonical == "" {
		return "", false
	}
	exact, ok := s.relaxed[canonical]
	return exact, ok
}

// Keys returns every key in sorted order.
func (s *Source) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	sort.Strings(out)
	return out
}

// KeysWithPrefix returns the sorted keys located under prefix.
func (s *Source) KeysWithPrefix(prefix string) []string {
	var out []string
	want := Canonical(prefix) + Delimiter
	for _, key := range s.Keys() {
		if strings.HasPrefix(Canonical(key), want) {
			out = append(out, key)
		}
	}
	return out
}

// Len returns the number of distinct keys.
func (s *Source) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Providers returns the names of the loaded providers, lowest precedence first.
func (s *Source) Providers() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.providers))
	copy(out, s.providers)
	return out
}

// Canonical returns the relaxed form of key used for override matching:
// lower case with '-' and '_' removed.
func Canonical(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToLower(key) {
		if r == '-' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Join builds a hierarchical key from its segments, skipping empty ones.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, Delimiter)
}

func validateKey(key string) error {
	if key == "" {
		return errEmptyKey
	}
	for _, seg := range strings.Split(key, Delimiter) {
		if Canonical(seg) == "" {
			return fmt.Errorf("%w: %q", errMalformedKey, key)
		}
	}
	return nil
}
