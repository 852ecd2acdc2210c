package expression

import (
	"errors"
	"fmt"
)

// ErrUnterminatedPattern is wrapped by InvalidPatternError when a regex
// literal is missing its closing quote.
var ErrUnterminatedPattern = errors.New("unterminated pattern literal")

// SyntaxError reports malformed expression text.
type SyntaxError struct {
	Pos     int
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// UnknownFieldError reports a predicate on a field outside the known set.
type UnknownFieldError struct {
	Name string
	Pos  int
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q at position %d", e.Name, e.Pos)
}

// InvalidPatternError reports a regex operand the regex engine rejected.
type InvalidPatternError struct {
	Pattern string
	Pos     int
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q at position %d: %v", e.Pattern, e.Pos, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}
