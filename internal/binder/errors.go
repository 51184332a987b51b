package binder

import (
	"errors"
	"fmt"
)

// ErrMissingRequiredProperty is matched by MissingPropertyError.
var ErrMissingRequiredProperty = errors.New("missing required property")

// MissingPropertyError names the full key of a required attribute that no
// source provides.
type MissingPropertyError struct {
	Key    string
	Record string
}

// Error implements the error interface.
func (e *MissingPropertyError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("missing required property %q for %s", e.Key, e.Record)
	}
	return fmt.Sprintf("missing required property %q", e.Key)
}

// Is reports whether target is ErrMissingRequiredProperty.
func (e *MissingPropertyError) Is(target error) bool {
	return target == ErrMissingRequiredProperty
}
