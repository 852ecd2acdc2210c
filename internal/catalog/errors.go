package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors for catalog validation.
var (
	ErrEmptyCatalog     = errors.New("catalog is empty")
	ErrNameRequired     = errors.New("name is required")
	ErrDuplicateTarget  = errors.New("duplicate target name")
	ErrDuplicateInput   = errors.New("duplicate input name")
	ErrUnknownOutput    = errors.New("unknown output kind")
	ErrUnknownInputType = errors.New("unknown input type")
	ErrURLRequired      = errors.New("url is required")
	ErrInvalidFilename  = errors.New("filename must be a plain file name")
	ErrRuleKey          = errors.New("rule must set exactly one of rename, sort, mapping, watch, map")
)

// ConfigError is a configuration error at an addressable path.
type ConfigError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("catalog: %v", e.Err)
	}
	return fmt.Sprintf("catalog: %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(path string, err error) *ConfigError {
	return &ConfigError{Path: path, Err: err}
}
