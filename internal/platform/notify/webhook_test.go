package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookClient_Post(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
	}))
	t.Cleanup(server.Close)

	client := NewWebhookClient()
	err := client.Post(context.Background(), server.URL, map[string]any{
		"queue":      "taskforge",
		"error_type": "RuntimeError",
	})
	require.NoError(t, err)

	assert.Equal(t, "taskforge", captured["queue"])
	assert.Equal(t, "RuntimeError", captured["error_type"])
}

func TestWebhookClient_Post_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := NewWebhookClient()
	err := client.Post(context.Background(), server.URL, map[string]any{"queue": "taskforge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestWebhookClient_Post_EmptyURL(t *testing.T) {
	t.Parallel()

	client := NewWebhookClient()
	err := client.Post(context.Background(), "", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")
}
