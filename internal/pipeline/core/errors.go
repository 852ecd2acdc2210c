package core

import (
	"errors"
	"fmt"
)

// Pipeline errors.
var (
	// ErrTargetAlreadyRunning indicates a run of the same target is in progress.
	ErrTargetAlreadyRunning = errors.New("target is already running")

	// ErrNoStages indicates a factory produced an empty pipeline.
	ErrNoStages = errors.New("no stages configured")

	// ErrInvalidConfiguration indicates invalid pipeline dependencies.
	ErrInvalidConfiguration = errors.New("invalid pipeline configuration")
)

// TargetError is a failure of one target, attributed to the stage that
// raised it. It never affects other targets of the same run.
type TargetError struct {
	Target string
	Stage  string
	Err    error
}

// Error implements the error interface.
func (e *TargetError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("target %s: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("target %s: stage %s: %v", e.Target, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *TargetError) Unwrap() error {
	return e.Err
}

// NewTargetError creates a new TargetError.
func NewTargetError(target, stage string, err error) *TargetError {
	return &TargetError{Target: target, Stage: stage, Err: err}
}

// ConfigurationError represents a missing or invalid dependency.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap matches ErrInvalidConfiguration.
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}
