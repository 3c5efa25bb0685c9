package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/pkg/apperror"
)

func fastPolicy(attempts uint) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	var notified []uint

	got, err := Do(context.Background(), fastPolicy(4), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", apperror.NewExternalServiceError("openai", 429, errors.New("rate limited"))
		}
		return "ok", nil
	}, func(attempt uint, err error, wait time.Duration) {
		notified = append(notified, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []uint{1, 2}, notified)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	cause := apperror.NewExternalServiceError("openai", 401, errors.New("invalid key"))

	_, err := Do(context.Background(), fastPolicy(4), func(ctx context.Context) (int, error) {
		calls++
		return 0, cause
	}, nil)

	assert.Equal(t, 1, calls)
	var ext *apperror.ExternalServiceError
	require.True(t, errors.As(err, &ext))
	assert.Same(t, cause, ext)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0

	_, err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, apperror.NewExternalServiceError("openai", 503, errors.New("unavailable"))
	}, nil)

	assert.Equal(t, 3, calls)
	assert.True(t, apperror.IsTransient(err))
}

func TestDo_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, Policy{MaxAttempts: 10, InitialInterval: time.Hour, MaxInterval: time.Hour}, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, apperror.NewExternalServiceError("openai", 500, errors.New("boom"))
	}, nil)

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}
