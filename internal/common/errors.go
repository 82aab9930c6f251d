package common

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// DataAccessError is the single error kind returned by the collection exporter.
// It records the failing operation, the location that caught the failure and the cause.
type DataAccessError struct {
	Op   string
	File string
	Line int
	Err  error
}

// NewDataAccessError wraps err for op and records the caller's file and line.
func NewDataAccessError(op string, err error) *DataAccessError {
	return newDataAccessError(op, err, 2)
}

func newDataAccessError(op string, err error, skip int) *DataAccessError {
	e := &DataAccessError{Op: op, Err: err}
	if _, file, line, ok := runtime.Caller(skip); ok {
		e.File = filepath.Base(file)
		e.Line = line
	}
	return e
}

func (e *DataAccessError) Error() string {
	cause := "unknown error"
	if e.Err != nil {
		cause = e.Err.Error()
	}
	if e.File == "" {
		return fmt.Sprintf("data access error during '%s': %s", e.Op, cause)
	}
	return fmt.Sprintf("data access error during '%s' (%s:%d): %s", e.Op, e.File, e.Line, cause)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// ConfigError is returned for general configuration loading and validation errors.
type ConfigError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error during '%s': %s", e.Op, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DataValidationError is returned for data validation errors not related to config.
type DataValidationError struct {
	Database string
	Op       string
	Reason   string
	Err      error
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("data validation error on '%s' (%s): %s", e.Database, e.Op, e.Reason)
}

func (e *DataValidationError) Unwrap() error {
	return e.Err
}

// DatabaseConnectionError is returned when a connection to a database fails.
type DatabaseConnectionError struct {
	Database string
	Reason   string
	Err      error
}

func (e *DatabaseConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database '%s': %s", e.Database, e.Reason)
}

func (e *DatabaseConnectionError) Unwrap() error {
	return e.Err
}

// DatabaseOperationError is returned for database operation (read/write) errors.
type DatabaseOperationError struct {
	Database string
	Op       string
	Reason   string
	Err      error
}

func (e *DatabaseOperationError) Error() string {
	return fmt.Sprintf("database operation error on '%s' (%s): %s", e.Database, e.Op, e.Reason)
}

func (e *DatabaseOperationError) Unwrap() error {
	return e.Err
}

// FileIOError is returned for file I/O related errors.
type FileIOError struct {
	Op     string
	Reason string
	Err    error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("file I/O error during '%s': %s", e.Op, e.Reason)
}

func (e *FileIOError) Unwrap() error {
	return e.Err
}

// LoadError is returned when creating, initializing, or loading to the destination fails.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load error: %s", e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError is returned when no table writer is registered for a format.
type UnsupportedFormatError struct {
	Format    string
	Available []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q (available: %v)", e.Format, e.Available)
}
