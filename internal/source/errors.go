package source

import (
	"errors"
	"fmt"
)

// ErrSourceLoad is matched by every error returned from Load.
var ErrSourceLoad = errors.New("configuration source could not be loaded")

// LoadError reports a malformed or unreadable provider.
type LoadError struct {
	// Provider names the provider that failed, usually a file path.
	Provider string
	// Key is the offending key, if the failure concerns a single entry.
	Key string
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("load %s: key %q: %v", e.Provider, e.Key, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSourceLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrSourceLoad
}
