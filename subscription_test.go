package wireclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireclient/wireclient/internal/protocol"
	"github.com/wireclient/wireclient/internal/transport"
)

// recordingObserver captures every callback a SubscriptionObserver can
// receive, for assertions without needing a mock-generation library — the
// same hand-rolled recorder style used by the root package's other tests.
type recordingObserver struct {
	publications []string
	stateChanges []SubscriptionState
	kicked       bool
	errs         []error
}

func (o *recordingObserver) OnPublication(sub *Subscription, text string, data []byte) {
	o.publications = append(o.publications, text)
}
func (o *recordingObserver) OnStateChange(sub *Subscription, from, to SubscriptionState) {
	o.stateChanges = append(o.stateChanges, to)
}
func (o *recordingObserver) OnKicked(sub *Subscription) { o.kicked = true }
func (o *recordingObserver) OnError(sub *Subscription, err error) {
	o.errs = append(o.errs, err)
}

func connectedClientForTest(t *testing.T) (*Client, *transport.Fake) {
	t.Helper()
	factory, fakes := fakeFactory()
	c := New("wss://example.test/connection/websocket", "tok-123", WithTransportFactory(factory))

	go func() {
		fake := <-fakes
		frame := <-fake.Outbound
		id := firstCommandID(t, frame)
		fake.Deliver([]byte(fmt.Sprintf(`{"id":%d,"connect":{"ping":25,"pong":true}}`, id)))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	var fake *transport.Fake
	require.Eventually(t, func() bool {
		tr := c.transportRef()
		f, ok := tr.(*transport.Fake)
		if !ok {
			return false
		}
		fake = f
		return true
	}, time.Second, time.Millisecond)
	return c, fake
}

func TestSubscribeSucceedsAndDeliversRecoveredPublications(t *testing.T) {
	c, fake := connectedClientForTest(t)

	obs := &recordingObserver{}
	tp := TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{Channel: "room:1", Token: "sub-token"}, nil
	})

	// CreateChannel itself kicks off the Subscribe round trip in the
	// background once the client is already connected.
	sub, err := c.CreateChannel(context.Background(), tp, obs)
	require.NoError(t, err)

	frame := <-fake.Outbound
	id := firstCommandID(t, frame)
	reply := fmt.Sprintf(`{"id":%d,"subscribe":{"epoch":"ep1","offset":3,"publications":[{"offset":1,"data":{"payload":"hello"}},{"offset":2,"data":{"payload":"world"}}]}}`, id)
	fake.Deliver([]byte(reply))

	require.Eventually(t, func() bool {
		return sub.State() == SubscriptionSynced
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"hello", "world"}, obs.publications)
	assert.Equal(t, "ep1", sub.Epoch())
}

func TestSubscribeFailsOnChannelMismatch(t *testing.T) {
	factory, _ := fakeFactory()
	c := New("wss://example.test/connection/websocket", "tok-123", WithTransportFactory(factory))

	tp := TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{Channel: "room:1", Token: "sub-token"}, nil
	})
	// The client is not connected, so CreateChannel only registers the
	// entity — it does not kick off a background Subscribe to race with.
	sub, err := c.CreateChannel(context.Background(), tp, nil)
	require.NoError(t, err)

	// Swap the token provider's return value to a different channel, as
	// if the backend started minting tokens for the wrong resource.
	sub.tokenProvider = TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{Channel: "room:2", Token: "sub-token"}, nil
	})

	err = sub.Subscribe(context.Background())
	require.ErrorIs(t, err, ErrChannelChanged)
	assert.Equal(t, SubscriptionError, sub.State())
}

func TestOnPublicationDeliversThenAdvancesOffset(t *testing.T) {
	factory, _ := fakeFactory()
	c := New("wss://example.test/connection/websocket", "tok-123", WithTransportFactory(factory))
	obs := &recordingObserver{}
	tp := TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{Channel: "room:1", Token: "tok"}, nil
	})
	sub, err := c.CreateChannel(context.Background(), tp, obs)
	require.NoError(t, err)

	sub.onPublication(protocol.Publication{Offset: 7, Data: protocol.PublicationData{Payload: "payload-a"}})
	assert.Equal(t, []string{"payload-a"}, obs.publications)
	assert.Equal(t, uint64(7), sub.Offset())
}

func TestReleaseRemovesFromRegistryAndIsIdempotent(t *testing.T) {
	factory, _ := fakeFactory()
	c := New("wss://example.test/connection/websocket", "tok-123", WithTransportFactory(factory))
	tp := TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{Channel: "room:1", Token: "tok"}, nil
	})
	sub, err := c.CreateChannel(context.Background(), tp, nil)
	require.NoError(t, err)
	assert.Len(t, c.Subscriptions(), 1)

	sub.Release()
	assert.Empty(t, c.Subscriptions())
	// A second Release is a no-op, not a panic.
	sub.Release()
}

func TestMarkUnsyncedLeavesTerminalStatesAlone(t *testing.T) {
	factory, _ := fakeFactory()
	c := New("wss://example.test/connection/websocket", "tok-123", WithTransportFactory(factory))
	tp := TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{Channel: "room:1", Token: "tok"}, nil
	})
	sub, err := c.CreateChannel(context.Background(), tp, nil)
	require.NoError(t, err)

	sub.setState(SubscriptionUnsubscribed)
	sub.markUnsynced()
	assert.Equal(t, SubscriptionUnsubscribed, sub.State())
}

func TestUnsubscribeFailsWhenAlreadyUnsubscribed(t *testing.T) {
	factory, _ := fakeFactory()
	c := New("wss://example.test/connection/websocket", "tok-123", WithTransportFactory(factory))
	tp := TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{Channel: "room:1", Token: "tok"}, nil
	})
	sub, err := c.CreateChannel(context.Background(), tp, nil)
	require.NoError(t, err)

	// A server-initiated kick moves the entity into the terminal
	// Unsubscribed state without the caller ever calling Unsubscribe.
	sub.onKick()

	err = sub.Unsubscribe(context.Background())
	require.ErrorIs(t, err, ErrAlreadyUnsubscribed)
}

func TestDisposeReturnsAlreadyUnsubscribedWithoutSendingAnotherCommand(t *testing.T) {
	c, fake := connectedClientForTest(t)
	tp := TokenProviderFunc(func(ctx context.Context) (TokenProviderResult, error) {
		return TokenProviderResult{Channel: "room:1", Token: "tok"}, nil
	})
	sub, err := c.CreateChannel(context.Background(), tp, nil)
	require.NoError(t, err)

	// Drain the background Subscribe frame CreateChannel kicked off so it
	// doesn't sit unread in front of the assertion below.
	<-fake.Outbound

	sub.onKick()
	err = sub.Dispose(context.Background())
	require.ErrorIs(t, err, ErrAlreadyUnsubscribed)
	assert.Empty(t, c.Subscriptions())

	select {
	case frame := <-fake.Outbound:
		t.Fatalf("unexpected frame sent for an already-unsubscribed entity: %s", frame)
	default:
	}
}
