// Package apperror holds the error taxonomy shared by the ingestion,
// indexing and conversation pipeline.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrEmptyInput rejects a Process action with no files or no usable text.
	ErrEmptyInput = errors.New("no document text to process")

	// ErrIndexConflict is returned by a vector store when the index name is taken.
	ErrIndexConflict = errors.New("vector index already exists")

	ErrEmptyQuestion = errors.New("question is empty")
	ErrNotReady      = errors.New("documents have not been processed yet")
	ErrBusy          = errors.New("another action is already running for this session")
)

// IngestionError marks one unreadable file in a batch. The batch continues without it.
type IngestionError struct {
	File string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("cannot read %q: %v", e.File, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// ExternalServiceError wraps a failed call to a hosted API.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalServiceError classifies err by HTTP status: 408, 429 and 5xx are
// transient, as are network timeouts when no status is available.
func NewExternalServiceError(service string, statusCode int, err error) *ExternalServiceError {
	transient := IsTransientStatus(statusCode)
	if statusCode == 0 {
		transient = isTransientNetError(err)
	}
	return &ExternalServiceError{Service: service, StatusCode: statusCode, Transient: transient, Err: err}
}

func IsTransientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// IsTransient reports whether a retry may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		return ext.Transient
	}
	return isTransientNetError(err)
}

func isTransientNetError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
