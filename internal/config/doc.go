// Package config loads the runtime options of the proptest command itself
// (which property files to read, logging, the optional HTTP view) from
// multiple sources with precedence: CLI flags > environment variables >
// YAML config > defaults. The application properties are handled by the
// environment package, not here.
package config
