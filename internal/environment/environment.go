// Package environment composes sources, placeholder resolution, coercion and
// binding into one read-only configuration snapshot. An Environment is built
// once at startup and is safe for concurrent readers afterwards since nothing
// mutates it.
package environment

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/proptest/internal/binder"
	"github.com/eugenenazirov/proptest/internal/coerce"
	"github.com/eugenenazirov/proptest/internal/placeholder"
	"github.com/eugenenazirov/proptest/internal/source"
)

// Options lists the providers of an Environment. Precedence, lowest first:
// Defaults, DefaultsFile, Files (in order), environment variables, system
// properties.
type Options struct {
	Defaults     map[string]string
	DefaultsFile string
	Files        []string
	// EnvPrefixes restricts which environment variables are read; empty
	// means all of them.
	EnvPrefixes []string
	SkipEnv     bool
	// System holds -D style overrides applied on top of the built-in
	// system properties.
	System map[string]string
}

// Environment is the loaded configuration snapshot.
type Environment struct {
	src      *source.Source
	system   *source.SystemProperties
	resolver *placeholder.Resolver
	coercer  *coerce.Coercer
	binder   *binder.Binder
}

// New loads every provider named in opts.
func New(opts Options, logger *zap.Logger) (*Environment, error) {
	providers := make([]source.Provider, 0, len(opts.Files)+4)
	if len(opts.Defaults) > 0 {
		providers = append(providers, source.NewStatic("defaults", opts.Defaults))
	}
	if opts.DefaultsFile != "" {
		providers = append(providers, source.NewFile(opts.DefaultsFile, source.Optional()))
	}
	for _, path := range opts.Files {
		providers = append(providers, source.NewFile(path))
	}
	if !opts.SkipEnv {
		providers = append(providers, source.NewEnv(opts.EnvPrefixes...))
	}
	system := source.NewSystemProperties(opts.System)
	providers = append(providers, system)

	return NewWithProviders(logger, system, providers...)
}

// NewWithProviders builds an Environment from explicit providers. system
// backs systemProperties['...'] expressions and may be nil.
func NewWithProviders(logger *zap.Logger, system *source.SystemProperties, providers ...source.Provider) (*Environment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	src, err := source.Load(providers...)
	if err != nil {
		return nil, err
	}

	var opts []placeholder.Option
	if system != nil {
		opts = append(opts, placeholder.WithSystemProperties(system.Lookup))
	}
	resolver := placeholder.New(src, opts...)
	coercer := coerce.New(logger)

	logger.Debug("configuration sources loaded",
		zap.Strings("providers", src.Providers()),
		zap.Int("keys", src.Len()),
	)

	return &Environment{
		src:      src,
		system:   system,
		resolver: resolver,
		coercer:  coercer,
		binder:   binder.New(resolver, coercer),
	}, nil
}

// Source returns the underlying merged source.
func (e *Environment) Source() *source.Source {
	return e.src
}

// Keys returns every loaded key in sorted order.
func (e *Environment) Keys() []string {
	return e.src.Keys()
}

// Origin reports which provider supplied key.
func (e *Environment) Origin(key string) (string, bool) {
	return e.src.Origin(key)
}

// Get returns the resolved value of key. A missing key is reported as a
// placeholder.UnresolvedError.
func (e *Environment) Get(key string) (string, error) {
	v, found, err := e.resolver.Lookup(key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &placeholder.UnresolvedError{Key: key}
	}
	return v, nil
}

// GetOrDefault returns the resolved value of key or def when key is missing.
// Resolution errors are still returned.
func (e *Environment) GetOrDefault(key, def string) (string, error) {
	v, found, err := e.resolver.Lookup(key)
	if err != nil {
		return "", err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

// Resolve expands placeholders and expressions in an arbitrary value, the
// way a single injected value is resolved.
func (e *Environment) Resolve(value string) (string, error) {
	return e.resolver.Resolve(value)
}

// ResolveList resolves value and coerces it into a list.
func (e *Environment) ResolveList(value string) ([]string, error) {
	v, err := e.resolver.Resolve(value)
	if err != nil {
		return nil, err
	}
	return e.coercer.List(v), nil
}

// ResolveInt resolves value and coerces it into an integer.
func (e *Environment) ResolveInt(value string) (int, error) {
	v, err := e.resolver.Resolve(value)
	if err != nil {
		return 0, err
	}
	n, err := e.coercer.Int(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", value, err)
	}
	return n, nil
}

// ResolveMap resolves value and coerces it into a map of elem values.
func (e *Environment) ResolveMap(value string, elem coerce.Kind) (map[string]any, error) {
	v, err := e.resolver.Resolve(value)
	if err != nil {
		return nil, err
	}
	typed, err := e.coercer.Coerce(value, v, coerce.Map, elem)
	if err != nil {
		return nil, err
	}
	m, _ := typed.(map[string]any)
	return m, nil
}

// Bind binds schema from prefix.
func (e *Environment) Bind(prefix string, schema binder.Schema) (*binder.Record, error) {
	return e.binder.Bind(prefix, schema)
}

// SystemProperty returns a system property.
func (e *Environment) SystemProperty(name string) (string, bool) {
	if e.system == nil {
		return "", false
	}
	return e.system.Lookup(name)
}
