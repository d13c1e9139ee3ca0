package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors for rule loading. Declaration failures wrap one of these in
// a *DeclarationError so callers can match with errors.Is.
var (
	// ErrMalformedFile is returned when the rules file cannot be decoded at the top level.
	ErrMalformedFile = errors.New("malformed rules file")

	// ErrNotObject is returned when a declaration is not a JSON/YAML object.
	ErrNotObject = errors.New("declaration must be an object")

	// ErrInvalidField is returned when a declaration field has the wrong type.
	ErrInvalidField = errors.New("invalid field")

	// ErrMissingID is returned when a declaration has no id.
	ErrMissingID = errors.New("missing id")

	// ErrMissingType is returned when a declaration has no type.
	ErrMissingType = errors.New("missing type")

	// ErrUnknownType is returned for a type other than substring, contains_all or contains_any.
	ErrUnknownType = errors.New("unknown rule type")

	// ErrMissingPattern is returned when the pattern field required by the type is absent.
	ErrMissingPattern = errors.New("missing pattern")

	// ErrEmptyPatterns is returned when contains_all/contains_any has an empty list.
	ErrEmptyPatterns = errors.New("patterns must not be empty")

	// ErrEmptyPattern is returned when a pattern is the empty string, which would match every command.
	ErrEmptyPattern = errors.New("pattern must not be the empty string")
)

// DeclarationError reports one rejected declaration in a rules file.
type DeclarationError struct {
	// Index is the zero-based position in the rules list.
	Index int
	// ID is the declared id, if one could be read.
	ID  string
	Err error
}

func (e *DeclarationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("rules[%d] (%s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("rules[%d]: %v", e.Index, e.Err)
}

func (e *DeclarationError) Unwrap() error {
	return e.Err
}

// Warning is a non-fatal problem met while building an Engine.
type Warning struct {
	Layer Layer
	Err   error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s layer: %v", w.Layer, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// SplitErrors flattens an errors.Join result into its parts. A nil error
// yields nil and a plain error yields itself.
func SplitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
