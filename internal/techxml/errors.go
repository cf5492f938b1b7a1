package techxml

import (
	"fmt"
)

// SchemaValidationError reports a malformed or non-conforming document:
// an XML syntax error, a grammar violation, a bad attribute value or an
// unknown enumeration name.
type SchemaValidationError struct {
	File   string
	Line   int
	Column int
	Msg    string
	// Err is the underlying cause, when there is one.
	Err error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// DecodeError attaches a document position to a model error such as
// *tech.DuplicateDefinitionError or *tech.MissingResolutionError.
type DecodeError struct {
	File   string
	Line   int
	Column int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %v", e.File, e.Line, e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
