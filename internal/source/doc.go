// Package source loads flat key/value configuration from an ordered list of
// providers (property files, YAML and TOML documents, in-memory defaults, the
// process environment and system properties). Later providers override earlier
// ones by key. The resulting Source is immutable once Load returns.
package source
