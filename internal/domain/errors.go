package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during validation operations.
var (
	// ErrPreconditionNotMet is matched by every PreconditionError through
	// errors.Is.
	ErrPreconditionNotMet = errors.New("validation precondition not met")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ErrorCode is a machine-readable precondition failure code.
type ErrorCode string

// Precondition failure codes.
const (
	CodeMissingMatchKey    ErrorCode = "MISSING_MATCH_KEY"
	CodeMissingTeamNumber  ErrorCode = "MISSING_TEAM_NUMBER"
	CodeMissingEventKey    ErrorCode = "MISSING_EVENT_KEY"
	CodeMissingSeasonYear  ErrorCode = "MISSING_SEASON_YEAR"
	CodeInsufficientScouts ErrorCode = "INSUFFICIENT_SCOUTS"
)

// PreconditionError reports that a validation was invoked without the inputs
// it needs. Callers normally check CanValidate first; this error is the
// contract for misuse.
type PreconditionError struct {
	// Code identifies the failed precondition.
	Code ErrorCode

	// Field names the missing context field, if any.
	Field string

	// Found and Required are set for CodeInsufficientScouts.
	Found    int
	Required int
}

// Error implements the error interface for PreconditionError.
func (e *PreconditionError) Error() string {
	if e.Code == CodeInsufficientScouts {
		return fmt.Sprintf("precondition failed: code=%s, found=%d, required=%d", e.Code, e.Found, e.Required)
	}
	return fmt.Sprintf("precondition failed: code=%s, field=%s", e.Code, e.Field)
}

// Is makes every PreconditionError match ErrPreconditionNotMet.
func (e *PreconditionError) Is(target error) bool { return target == ErrPreconditionNotMet }

// NewMissingFieldError creates a PreconditionError for an absent context field.
func NewMissingFieldError(code ErrorCode, field string) *PreconditionError {
	return &PreconditionError{Code: code, Field: field}
}

// NewInsufficientScoutsError creates a PreconditionError carrying the scout
// counts.
func NewInsufficientScoutsError(found, required int) *PreconditionError {
	return &PreconditionError{
		Code:     CodeInsufficientScouts,
		Found:    found,
		Required: required,
	}
}

// ConfigValidationError collects configuration problems for one entity.
type ConfigValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ConfigValidationError.
func (e *ConfigValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match ErrInvalidConfiguration.
func (e *ConfigValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ConfigValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ConfigValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewConfigValidationError creates a new ConfigValidationError for the given entity.
func NewConfigValidationError(entity string) *ConfigValidationError {
	return &ConfigValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
