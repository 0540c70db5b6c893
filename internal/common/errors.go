// Package common defines shared constants and sentinel errors used across
// bucketvault layers. Callers should use errors.Is / errors.As to match them.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// User account errors.
	ErrEmailTaken = errors.New("email already registered")

	// Input errors. Every *ValidationError matches ErrValidation.
	ErrValidation        = errors.New("validation error")
	ErrInvalidName error = &ValidationError{
		Field: "folderName",
		Msg:   "use only letters, numbers, spaces, hyphens, and underscores",
	}

	// Bucket registry errors.
	ErrDuplicateBucket = errors.New("duplicate bucket")
	ErrQuotaExceeded   = errors.New("bucket limit exceeded")
	ErrNotConfigured   = errors.New("no bucket configured")

	// Credential vault integrity errors.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrDecryptionFailed    = errors.New("decryption failed")

	// Storage backend errors.
	ErrObjectNotFound  = errors.New("object not found")
	ErrUpstreamStorage = errors.New("upstream storage error")
)

// ValidationError reports malformed caller input. Msg is safe to show verbatim.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError is a shorthand for &ValidationError{Field: field, Msg: msg}.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// DuplicateBucketError is returned when a user registers the same provider
// bucket twice.
type DuplicateBucketError struct {
	BucketName string
}

func (e *DuplicateBucketError) Error() string {
	return fmt.Sprintf("bucket %q is already registered in this account", e.BucketName)
}

func (e *DuplicateBucketError) Is(target error) bool { return target == ErrDuplicateBucket }

// QuotaExceededError carries the numbers needed to render a precise message.
type QuotaExceededError struct {
	Current int
	Max     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("bucket limit reached: %d of %d buckets in use", e.Current, e.Max)
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// UpstreamStorageError wraps a failure reported by the object-storage backend.
// The backend message is kept so callers can surface it.
type UpstreamStorageError struct {
	Op  string
	Err error
}

func (e *UpstreamStorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *UpstreamStorageError) Unwrap() error { return e.Err }

func (e *UpstreamStorageError) Is(target error) bool { return target == ErrUpstreamStorage }
