package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/magiconair/properties"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies the syntax of a file-backed provider.
type Format string

const (
	FormatProperties Format = "properties"
	FormatYAML       Format = "yaml"
	FormatTOML       Format = "toml"
)

// ErrUnsupportedFormat is returned for files whose extension maps to no Format.
var ErrUnsupportedFormat = errors.New("unsupported configuration file format")

// File is a provider backed by a properties, YAML or TOML file.
type File struct {
	path     string
	format   Format
	optional bool
}

// FileOption configures a File provider.
type FileOption func(*File)

// Optional makes a missing file contribute no entries instead of failing.
func Optional() FileOption {
	return func(f *File) {
		f.optional = true
	}
}

// WithFormat overrides the format derived from the file extension.
func WithFormat(format Format) FileOption {
	return func(f *File) {
		f.format = format
	}
}

// NewFile creates a provider for path. The format follows the extension.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{path: path, format: formatFromExt(path)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the file path.
func (f *File) Name() string {
	return f.path
}

// Entries reads and parses the file.
func (f *File) Entries() ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if f.optional && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &LoadError{Provider: f.path, Err: fmt.Errorf("read file: %w", err)}
	}

	entries, err := Parse(f.format, data)
	if err != nil {
		return nil, &LoadError{Provider: f.path, Err: err}
	}
	return entries, nil
}

// Parse decodes data in the given format into entries.
func Parse(format Format, data []byte) ([]Entry, error) {
	switch format {
	case FormatProperties:
		return parseProperties(data)
	case FormatYAML:
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
		return flatten(tree), nil
	case FormatTOML:
		var tree map[string]any
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse TOML: %w", err)
		}
		return flatten(tree), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func parseProperties(data []byte) ([]Entry, error) {
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse properties: %w", err)
	}

	keys := props.Keys()
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		value, _ := props.Get(key)
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, nil
}

// flatten turns a nested document into dotted keys. Sequences become
// comma-separated values so they coerce back into lists.
func flatten(tree map[string]any) []Entry {
	if len(tree) == 0 {
		return nil
	}
	flat, _ := maps.Flatten(tree, nil, Delimiter)

	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, Entry{Key: key, Value: stringify(flat[key])})
	}
	return entries
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any:
		if len(val) == 0 {
			return ""
		}
		return fmt.Sprint(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

func formatFromExt(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".properties":
		return FormatProperties
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return Format(strings.TrimPrefix(filepath.Ext(path), "."))
	}
}

// Static is an in-memory provider, typically holding defaults.
type Static struct {
	name    string
	entries []Entry
}

// NewStatic creates a provider from a map; entries are ordered by key.
func NewStatic(name string, values map[string]string) *Static {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, Entry{Key: key, Value: values[key]})
	}
	return &Static{name: name, entries: entries}
}

// Name returns the provider name.
func (s *Static) Name() string {
	return s.name
}

// Entries returns a copy of the entries.
func (s *Static) Entries() ([]Entry, error) {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}
