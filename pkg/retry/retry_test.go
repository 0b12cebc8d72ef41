package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupdigest/summary-platform/internal/engine"
)

func fastPolicy() Policy {
	return Policy{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  200 * time.Millisecond,
	}
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(engine.ErrGenerationTimeout(nil)))
	assert.True(t, Transient(context.DeadlineExceeded))
	assert.False(t, Transient(nil))
	assert.False(t, Transient(engine.ErrGenerationFailed("invalid credential", nil)))
	assert.False(t, Transient(engine.ErrModelNotFound("/x")))
	assert.False(t, Transient(errors.New("plain failure")))
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func() error {
		attempts++
		if attempts < 3 {
			return engine.ErrGenerationTimeout(nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := engine.ErrGenerationFailed("invalid credential", nil)
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func() error {
		attempts++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts, "permanent errors are not retried")
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastPolicy(), func() error {
		return engine.ErrGenerationTimeout(nil)
	})

	assert.Error(t, err)
}

func TestDoGivesUpEventually(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func() error {
		attempts++
		return engine.ErrGenerationTimeout(nil)
	})

	assert.Equal(t, engine.KindGenerationTimeout, engine.KindOf(err))
	assert.Greater(t, attempts, 1)
}
