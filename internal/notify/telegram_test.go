package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("test-token", time.Second)
	notifier.baseURL = srv.URL

	err := notifier.Send(context.Background(), "12345", "device dev-42 reported an error")
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "12345", gotBody["chat_id"])
	assert.Equal(t, "device dev-42 reported an error", gotBody["text"])
}

func TestTelegramSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("test-token", time.Second)
	notifier.baseURL = srv.URL

	err := notifier.Send(context.Background(), "0", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramSendWithoutToken(t *testing.T) {
	notifier := NewTelegramNotifier("", time.Second)
	assert.Error(t, notifier.Send(context.Background(), "12345", "text"))
}
