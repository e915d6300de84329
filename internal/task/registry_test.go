package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	t.Run("successful registration", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		err := registry.Register("send_email", noopHandler)
		require.NoError(t, err)

		handler, err := registry.Resolve("send_email")
		require.NoError(t, err)
		assert.NotNil(t, handler)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		err := registry.Register("", noopHandler)
		assert.ErrorIs(t, err, ErrRegistryNameEmpty)
	})

	t.Run("nil handler rejected", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		err := registry.Register("send_email", nil)
		assert.ErrorIs(t, err, ErrRegistryHandlerNil)
	})

	t.Run("re-registration replaces the binding", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		require.NoError(t, registry.Register("send_email", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			return "first", nil
		}))
		require.NoError(t, registry.Register("send_email", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
			return "second", nil
		}))

		handler, err := registry.Resolve("send_email")
		require.NoError(t, err)

		value, err := handler(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "second", value)
	})
}

func TestRegistry_Resolve_Missing(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	_, err := registry.Resolve("never_registered")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingHandler))
	assert.Contains(t, err.Error(), "never_registered")
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	require.NoError(t, registry.Register("warm_cache", noopHandler))
	require.NoError(t, registry.Register("send_email", noopHandler))
	require.NoError(t, registry.Register("sync_ledger", noopHandler))

	assert.Equal(t, []string{"send_email", "sync_ledger", "warm_cache"}, registry.Names())
}
