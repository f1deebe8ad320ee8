package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested document was not found
	ErrNotFound = errors.New("not found")

	// ErrNotReady indicates the pipeline has not finished bootstrap
	ErrNotReady = errors.New("pipeline not ready")

	// ErrInvalidChunking indicates a bad chunker configuration
	// (overlap_tokens must be strictly less than max_tokens)
	ErrInvalidChunking = errors.New("invalid chunking configuration")
)

// ValidationError reports every violated Document field at once.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid document: " + strings.Join(e.Violations, "; ")
}

// ProviderError indicates an embedding provider failure: the call itself
// failed or the response was malformed (wrong count, inconsistent dimensions).
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StoreError indicates a vector or metadata store failure.
type StoreError struct {
	Store string // "postgres" or "qdrant"
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
