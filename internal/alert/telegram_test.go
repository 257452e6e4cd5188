package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripFunc lets a test stub http.Client.Transport without standing up
// a real listener, since TelegramNotifier builds its URL against the fixed
// Telegram Bot API host rather than taking one as a constructor argument.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTelegramNotifierSendPostsMessage(t *testing.T) {
	var gotURL string
	var gotBody map[string]any
	tn := NewTelegramNotifier("bot-token", "chat-42")
	tn.client.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"ok":true}`)),
			Header:     make(http.Header),
		}, nil
	})

	err := tn.Send(context.Background(), "ping deadline missed", "3 consecutive misses")
	require.NoError(t, err)
	assert.Contains(t, gotURL, "bot-token/sendMessage")
	assert.Equal(t, "chat-42", gotBody["chat_id"])
	assert.Equal(t, "HTML", gotBody["parse_mode"])
	assert.Equal(t, true, gotBody["disable_web_page_preview"])
	assert.Contains(t, gotBody["text"], "<b>ping deadline missed</b>")
	assert.Equal(t, "telegram", tn.Name())
}

func TestTelegramNotifierEscapesHTMLInAlertText(t *testing.T) {
	var gotBody map[string]any
	tn := NewTelegramNotifier("bot-token", "chat-42")
	tn.client.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"ok":true}`)),
			Header:     make(http.Header),
		}, nil
	})

	err := tn.Send(context.Background(), "invalid_token", "close code <unknown> & reconnectable=false")
	require.NoError(t, err)
	assert.Contains(t, gotBody["text"], "&lt;unknown&gt;")
	assert.Contains(t, gotBody["text"], "&amp;")
}

func TestTelegramNotifierSendFailsOnNon2xx(t *testing.T) {
	tn := NewTelegramNotifier("bot-token", "chat-42")
	tn.client.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Body:       io.NopCloser(strings.NewReader(`{"description":"Unauthorized"}`)),
			Header:     make(http.Header),
		}, nil
	})

	err := tn.Send(context.Background(), "title", "message")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Unauthorized")
}
