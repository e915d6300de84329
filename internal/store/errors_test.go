package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundErrors(t *testing.T) {
	t.Parallel()

	// Entity-specific errors are recognized as not-found
	assert.True(t, IsNotFoundError(ErrResultNotFound))
	assert.True(t, IsNotFoundError(ErrDeadLetterNotFound))
	assert.True(t, IsNotFoundError(ErrRetryPolicyNotFound))

	// Wrapped errors keep their identity
	wrapped := fmt.Errorf("loading task abc: %w", ErrDeadLetterNotFound)
	assert.True(t, IsNotFoundError(wrapped))
	assert.True(t, errors.Is(wrapped, ErrDeadLetterNotFound))
	assert.True(t, errors.Is(wrapped, ErrNotFound))

	// Unrelated errors are not
	assert.False(t, IsNotFoundError(ErrQueueEmpty))
	assert.False(t, IsNotFoundError(errors.New("boom")))
	assert.False(t, IsNotFoundError(nil))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewStoreError("dead letter", "purge", "backend unavailable", cause)

	assert.Contains(t, err.Error(), "purge operation on dead letter failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))

	var storeErr *StoreError
	assert.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "dead letter", storeErr.Entity)

	// Without a cause, the message stands alone
	bare := NewStoreError("task", "enqueue", "serialization failed", nil)
	assert.Equal(t, "enqueue operation on task failed: serialization failed", bare.Error())
	assert.Nil(t, errors.Unwrap(bare))
}
