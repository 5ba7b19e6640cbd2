package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrNotFound indicates that a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInvalidRecord indicates that a stored record could not be decoded.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// RepositoryError represents a failed read or write against the record
// store. It includes the key and operation that failed.
type RepositoryError struct {
	// Operation is the name of the repository operation that failed.
	Operation string

	// Key is the match key or other identifier involved.
	Key string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for RepositoryError.
func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *RepositoryError) Unwrap() error { return e.Err }

// NewRepositoryError creates a new RepositoryError with the given details.
func NewRepositoryError(operation, key string, err error) *RepositoryError {
	return &RepositoryError{
		Operation: operation,
		Key:       key,
		Err:       err,
	}
}

// SinkError represents a failure delivering results to a ResultSink.
type SinkError struct {
	// Sink names the destination, e.g. "postgres" or "redis_stream".
	Sink string

	// Count is the number of results in the failed batch.
	Count int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for SinkError.
func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: sink=%s, results=%d, err=%v", e.Sink, e.Count, e.Err)
}

// Unwrap returns the underlying error.
func (e *SinkError) Unwrap() error { return e.Err }

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
