package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", NewExternalServiceError("openai", 429, errors.New("slow down")), true},
		{"server error", NewExternalServiceError("qdrant", 503, errors.New("unavailable")), true},
		{"bad request", NewExternalServiceError("openai", 400, errors.New("bad input")), false},
		{"unauthorized", NewExternalServiceError("openai", 401, errors.New("bad key")), false},
		{"wrapped transient", fmt.Errorf("embed batch 2: %w", NewExternalServiceError("openai", 500, errors.New("boom"))), true},
		{"net timeout", timeoutErr{}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"no status timeout", NewExternalServiceError("ollama", 0, timeoutErr{}), true},
		{"plain", errors.New("whatever"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIngestionError_Unwraps(t *testing.T) {
	cause := errors.New("malformed xref")
	err := fmt.Errorf("ingest: %w", &IngestionError{File: "a.pdf", Err: cause})

	var ingErr *IngestionError
	assert.True(t, errors.As(err, &ingErr))
	assert.Equal(t, "a.pdf", ingErr.File)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `"a.pdf"`)
}
