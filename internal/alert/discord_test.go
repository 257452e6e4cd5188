package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifierSendPostsEmbed(t *testing.T) {
	var gotBody discordWebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordNotifier(srv.URL)
	err := d.Send(context.Background(), "irrecoverable close", "code 4100: invalid token")
	require.NoError(t, err)
	require.Len(t, gotBody.Embeds, 1)
	assert.Equal(t, "irrecoverable close", gotBody.Embeds[0].Title)
	assert.Equal(t, "code 4100: invalid token", gotBody.Embeds[0].Description)
	assert.Equal(t, discordAlertColor, gotBody.Embeds[0].Color)
	assert.NotEmpty(t, gotBody.Embeds[0].Timestamp)
	assert.Equal(t, "discord", d.Name())
}

func TestDiscordNotifierSendFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer srv.Close()

	d := NewDiscordNotifier(srv.URL)
	err := d.Send(context.Background(), "title", "message")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}
