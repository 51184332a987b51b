package placeholder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnresolvedPlaceholder is matched by errors for missing keys without a default.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")
	// ErrCircularReference is matched by errors for self-referencing placeholders.
	ErrCircularReference = errors.New("circular placeholder reference")
)

// UnresolvedError reports a referenced key that has no value and no default.
type UnresolvedError struct {
	Key   string
	Value string
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("property %q is not defined", e.Key)
	}
	return fmt.Sprintf("could not resolve placeholder %q in value %q", e.Key, e.Value)
}

// Is reports whether target is ErrUnresolvedPlaceholder.
func (e *UnresolvedError) Is(target error) bool {
	return target == ErrUnresolvedPlaceholder
}

// CircularReferenceError reports the chain of keys that loops back on itself.
type CircularReferenceError struct {
	Chain []string
}

// Error implements the error interface.
func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular placeholder reference: %s", strings.Join(e.Chain, " -> "))
}

// Is reports whether target is ErrCircularReference.
func (e *CircularReferenceError) Is(target error) bool {
	return target == ErrCircularReference
}

// ExpressionError reports a #{...} body outside the supported grammar.
type ExpressionError struct {
	Expr string
	Pos  int
	Msg  string
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	return fmt.Sprintf("invalid expression %q at offset %d: %s", e.Expr, e.Pos, e.Msg)
}

// Is reports whether target is ErrUnresolvedPlaceholder.
func (e *ExpressionError) Is(target error) bool {
	return target == ErrUnresolvedPlaceholder
}
