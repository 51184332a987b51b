package source

import (
	"os"
	"sort"
	"strings"
)

// Env exposes process environment variables twice: under their own name, so
// ${DB_USER} works, and as a dotted key (APP_NAME becomes app.name). Combined
// with relaxed matching the dotted form lets SCHOOLDEVOPS_PROPTEST_NAME
// override schooldevops.prop-test.name.
type Env struct {
	prefixes []string
	environ  func() []string
}

// NewEnv creates an environment provider. When prefixes are given only
// variables starting with one of them are included; the prefix is kept.
func NewEnv(prefixes ...string) *Env {
	return &Env{prefixes: prefixes, environ: os.Environ}
}

// Name returns "environment".
func (e *Env) Name() string {
	return "environment"
}

// Entries converts matching variables to dotted keys. Names that would
// produce an empty key segment are skipped.
func (e *Env) Entries() ([]Entry, error) {
	vars := e.environ()
	sort.Strings(vars)

	entries := make([]Entry, 0, len(vars))
	for _, kv := range vars {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !e.matches(name) {
			continue
		}
		if validateKey(name) == nil {
			entries = append(entries, Entry{Key: name, Value: value})
		}
		if key, ok := EnvToKey(name); ok {
			entries = append(entries, Entry{Key: key, Value: value})
		}
	}
	return entries, nil
}

func (e *Env) matches(name string) bool {
	if len(e.prefixes) == 0 {
		return true
	}
	for _, prefix := range e.prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// EnvToKey maps an environment variable name to a configuration key.
func EnvToKey(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	segments := strings.Split(strings.ToLower(name), "_")
	for _, seg := range segments {
		if Canonical(seg) == "" {
			return "", false
		}
	}
	return strings.Join(segments, Delimiter), true
}

// KeyToEnv maps a configuration key to its environment variable name.
func KeyToEnv(key string) string {
	key = strings.ReplaceAll(key, "-", "")
	return strings.ToUpper(strings.ReplaceAll(key, Delimiter, "_"))
}
