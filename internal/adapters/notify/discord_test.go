package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/rsibot/internal/adapters/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscord_Alert(t *testing.T) {
	var got map[string][]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := notify.NewDiscord(srv.URL, "rsibot")
	require.NoError(t, d.Alert(context.Background(), "absolute_stop_loss", "capital 2400.00 <= 2500.00"))

	require.Len(t, got["embeds"], 1)
	embed := got["embeds"][0]
	assert.Equal(t, "absolute_stop_loss", embed["title"])
	assert.Equal(t, "capital 2400.00 <= 2500.00", embed["description"])
	assert.EqualValues(t, 0xE74C3C, embed["color"])
}

func TestDiscord_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := notify.NewDiscord(srv.URL, "").Alert(context.Background(), "daily_loss_lock", "x")
	assert.Error(t, err)
}

func TestDiscord_DisabledIsNoop(t *testing.T) {
	d := notify.NewDiscord("", "")
	assert.False(t, d.Enabled())
	assert.NoError(t, d.Alert(context.Background(), "anything", "x"))
}
