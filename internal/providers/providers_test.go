package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_RetriesOnlyRetryableKinds(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		return &Error{Kind: KindAuth, VendorMessage: "bad key"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "auth errors must not be retried")
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &Error{Kind: KindNetwork, Retryable: true, VendorMessage: "connection reset"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&Error{Kind: KindTimeout}))
	assert.True(t, IsRetryable(&Error{Kind: KindRateLimited}))
	assert.False(t, IsRetryable(&Error{Kind: KindNotFound}))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Kind: KindNetwork, Cause: cause}
	assert.ErrorIs(t, err, cause)
}
