package util

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/avast/retry-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scmfs/internal/common"
)

func TestIsLockHeld(t *testing.T) {
	t.Parallel()

	assert.False(t, IsLockHeld(nil))
	assert.False(t, IsLockHeld(errors.New("something else")))
	assert.True(t, IsLockHeld(common.ErrAlreadyOpen))
	assert.True(t, IsLockHeld(fmt.Errorf("opening: %w", common.ErrAlreadyOpen)))
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithResultStopsOnNonRetryable(t *testing.T) {
	t.Parallel()

	permanent := errors.New("permanent")
	attempts := 0
	_, err := RetryWithResult(context.Background(), func() (int, error) {
		attempts++
		return 0, permanent
	}, retry.Attempts(5), retry.RetryIf(IsLockHeld), retry.LastErrorOnly(true))

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts, "non-retryable error should stop immediately")
}
