package models

import (
	"errors"
	"fmt"
)

// MigrationRejectedError reports a rolled-back migration. Non-fatal.
type MigrationRejectedError struct {
	Kind    string
	Name    string
	Reason  string
	wrapped error
}

// NewMigrationRejectedError creates a new migration rejection
func NewMigrationRejectedError(kind, name, reason string, wrapped error) *MigrationRejectedError {
	return &MigrationRejectedError{Kind: kind, Name: name, Reason: reason, wrapped: wrapped}
}

func (e *MigrationRejectedError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("migration rejected for %s/%s: %s: %v", e.Kind, e.Name, e.Reason, e.wrapped)
	}
	return fmt.Sprintf("migration rejected for %s/%s: %s", e.Kind, e.Name, e.Reason)
}

func (e *MigrationRejectedError) Unwrap() error { return e.wrapped }

// IsMigrationRejected checks if an error is a migration rejection
func IsMigrationRejected(err error) bool {
	var mr *MigrationRejectedError
	return errors.As(err, &mr)
}

// AmbiguousMigrationError rejects a migration that would require guessing,
// e.g. synthesizing a selector with no template labels to derive it from.
type AmbiguousMigrationError struct {
	Kind    string
	Name    string
	message string
}

// NewAmbiguousMigrationError creates a new ambiguous migration error
func NewAmbiguousMigrationError(kind, name, format string, args ...interface{}) *AmbiguousMigrationError {
	return &AmbiguousMigrationError{Kind: kind, Name: name, message: fmt.Sprintf(format, args...)}
}

func (e *AmbiguousMigrationError) Error() string {
	return fmt.Sprintf("ambiguous migration for %s/%s: %s", e.Kind, e.Name, e.message)
}

// IsAmbiguousMigration checks if an error is an ambiguous migration
func IsAmbiguousMigration(err error) bool {
	var am *AmbiguousMigrationError
	return errors.As(err, &am)
}

// IOFailureError is fatal for one file's write; it does not abort the scan.
type IOFailureError struct {
	Path    string
	Op      string
	wrapped error
}

// NewIOFailureError creates a new I/O failure error
func NewIOFailureError(path, op string, wrapped error) *IOFailureError {
	return &IOFailureError{Path: path, Op: op, wrapped: wrapped}
}

func (e *IOFailureError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Path, e.wrapped)
}

func (e *IOFailureError) Unwrap() error { return e.wrapped }

// IsIOFailure checks if an error is an I/O failure
func IsIOFailure(err error) bool {
	var io *IOFailureError
	return errors.As(err, &io)
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{message: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string { return e.message }

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
