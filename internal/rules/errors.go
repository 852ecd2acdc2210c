package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors for rule construction.
var (
	// ErrInvalidParameter indicates a rule parameter with an unusable value.
	ErrInvalidParameter = errors.New("invalid rule parameter")

	// ErrUnknownRule indicates a rule kind the pipeline cannot execute.
	ErrUnknownRule = errors.New("unknown rule")
)

// ParamError reports an invalid parameter of a rule. Param is the
// parameter path relative to the rule, such as "pattern" or
// "mapper[1].attributes.logo".
type ParamError struct {
	Rule  Kind
	Param string
	Err   error
}

// Error implements the error interface.
func (e *ParamError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Rule, e.Param, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParamError) Unwrap() error {
	return e.Err
}

// Path returns the addressable parameter path, e.g. "rename.pattern".
func (e *ParamError) Path() string {
	return string(e.Rule) + "." + e.Param
}

func paramErr(kind Kind, param string, err error) *ParamError {
	return &ParamError{Rule: kind, Param: param, Err: err}
}

func invalidf(kind Kind, param, format string, args ...any) *ParamError {
	return paramErr(kind, param, fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...)))
}
