package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownSchema     = errors.New("unknown schema")
	ErrNotFound          = errors.New("not found")
)

// Error keys produced by the pipeline itself rather than by a schema.
const (
	KeyReadError  = "error.read"
	KeyParseError = "error.parse"
	KeyParseAt    = "error.parse_at"
)

var ErrInvalidRunID = errors.New("invalid run id")

// ParseError reports malformed JSON in a single file. Line and Column are
// 1-based and zero when the decoder gave no offset.
type ParseError struct {
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
