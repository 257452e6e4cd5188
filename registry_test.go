package wireclient

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireclient/wireclient/internal/protocol"
)

func noopTokenProvider(ctx context.Context) (TokenProviderResult, error) {
	return TokenProviderResult{}, nil
}

func newTestSubscription(channel string) *Subscription {
	c := New("wss://example.test/connection/websocket", "tok-123")
	return newSubscription(c, channel, TokenProviderFunc(noopTokenProvider), nil)
}

func TestRegistryAddRejectsDuplicateChannel(t *testing.T) {
	r := newRegistry()
	sub1 := newTestSubscription("room:1")
	sub2 := newTestSubscription("room:1")

	require.NoError(t, r.add(sub1))
	err := r.add(sub2)
	require.ErrorIs(t, err, ErrAlreadySubscribed)
	assert.Equal(t, 1, r.count())
}

func TestRegistryRemoveNotifiesCountChanged(t *testing.T) {
	r := newRegistry()
	var observed []int
	r.onCountChanged = func(n int) { observed = append(observed, n) }

	sub := newTestSubscription("room:1")
	require.NoError(t, r.add(sub))
	r.remove("room:1")

	assert.Equal(t, []int{1, 0}, observed)
	assert.False(t, r.contains("room:1"))
}

func TestRegistryRecoverMarksMentionedSyncedAndRestUnsynced(t *testing.T) {
	r := newRegistry()
	mentioned := newTestSubscription("room:1")
	unmentioned := newTestSubscription("room:2")
	require.NoError(t, r.add(mentioned))
	require.NoError(t, r.add(unmentioned))

	r.recover(protocol.ConnectResult{
		Subs: map[string]protocol.SubscribeResult{
			"room:1": {Epoch: "ep1", Offset: 5},
		},
	})

	assert.Equal(t, SubscriptionSynced, mentioned.State())
	assert.Equal(t, SubscriptionUnsynced, unmentioned.State())
	assert.Equal(t, uint64(5), mentioned.Offset())
}

func TestRegistryMarkAllUnsyncedSkipsTerminalStates(t *testing.T) {
	r := newRegistry()
	synced := newTestSubscription("room:1")
	synced.setState(SubscriptionSynced)
	unsubscribed := newTestSubscription("room:2")
	unsubscribed.setState(SubscriptionUnsubscribed)
	require.NoError(t, r.add(synced))
	require.NoError(t, r.add(unsubscribed))

	r.markAllUnsynced()

	assert.Equal(t, SubscriptionUnsynced, synced.State())
	assert.Equal(t, SubscriptionUnsubscribed, unsubscribed.State())
}

func TestRegistryClearEmptiesSubs(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.add(newTestSubscription("room:1")))
	require.NoError(t, r.add(newTestSubscription("room:2")))
	r.clear()
	assert.Equal(t, 0, r.count())
	assert.Empty(t, r.all())
}

func TestSubscriptionRequestsForReconnectSkipsFailedTokenFetch(t *testing.T) {
	r := newRegistry()
	c := New("wss://example.test/connection/websocket", "tok-123")

	ok := newSubscription(c, "room:1", TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{Channel: "room:1", Token: "t"}, nil
	}), nil)
	require.NoError(t, r.add(ok))
	failing := newSubscription(c, "room:2", TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{}, errors.New("token service unavailable")
	}), nil)
	require.NoError(t, r.add(failing))

	reqs := r.subscriptionRequestsForReconnect(context.Background(), slog.Default())
	assert.Contains(t, reqs, "room:1")
	assert.NotContains(t, reqs, "room:2")
}
