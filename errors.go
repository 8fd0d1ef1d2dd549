package mooceditor

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned when a type tag is not in the catalog.
	ErrUnknownType = errors.New("unknown question type")
	// ErrIndexOutOfRange is returned for list positions outside the list.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrMinItems is returned when a delete would leave a list below its minimum size.
	ErrMinItems = errors.New("list is already at its minimum size")
	// ErrFormat is returned when user input text cannot be parsed.
	ErrFormat = errors.New("invalid format")
	// ErrNotArray is returned when a document's root is not a JSON array.
	ErrNotArray = errors.New("document must contain an array of questions")
	// ErrWrongForm is returned when a form does not belong to the question's type.
	ErrWrongForm = errors.New("form does not match question type")
	// ErrUndecoded is returned when editing a question whose payload failed to decode.
	ErrUndecoded = errors.New("question payload could not be decoded")
	// ErrValidation matches every *ValidationError with errors.Is.
	ErrValidation = errors.New("validation failed")
)

// ParseError reports JSON that could not be parsed, either a document on
// disk or a language model response.
type ParseError struct {
	Source string
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("failed to parse %s at offset %d: %v", e.Source, e.Offset, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(source string, err error) *ParseError {
	pe := &ParseError{Source: source, Err: err}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		pe.Offset = syntaxErr.Offset
	}
	return pe
}

// ValidationError reports a rejected form field. The question being edited
// is left unchanged whenever one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
