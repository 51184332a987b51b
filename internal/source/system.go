package source

import (
	"os"
	"os/user"
	"runtime"
	"sort"
)

// SystemProperties holds process-level properties: a set of built-in values
// describing the runtime plus any -D overrides given on the command line.
type SystemProperties struct {
	values map[string]string
}

// NewSystemProperties collects the built-in properties and applies overrides.
func NewSystemProperties(overrides map[string]string) *SystemProperties {
	values := map[string]string{
		"go.version":   runtime.Version(),
		"java.version": runtime.Version(),
		"os.name":      runtime.GOOS,
		"os.arch":      runtime.GOARCH,
	}
	if wd, err := os.Getwd(); err == nil {
		values["user.dir"] = wd
	}
	if u, err := user.Current(); err == nil {
		values["user.name"] = u.Username
	}
	if host, err := os.Hostname(); err == nil {
		values["host.name"] = host
	}
	for key, value := range overrides {
		values[key] = value
	}
	return &SystemProperties{values: values}
}

// Name returns "systemProperties".
func (p *SystemProperties) Name() string {
	return "systemProperties"
}

// Lookup returns a single property.
func (p *SystemProperties) Lookup(name string) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Entries returns every property ordered by key.
func (p *SystemProperties) Entries() ([]Entry, error) {
	keys := make([]string, 0, len(p.values))
	for key := range p.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, Entry{Key: key, Value: p.values[key]})
	}
	return entries, nil
}
