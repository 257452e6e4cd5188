package wireclient

import (
	"context"

	"github.com/wireclient/wireclient/internal/protocol"
)

// ConnectionState is the Connection Manager's observed connection state —
// distinct from "want connected", which is the caller's intent and is
// tracked separately so a caller asking to stay connected through a flaky
// network doesn't need to re-issue Connect after every drop.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// SubscriptionState is the Subscription Entity's lifecycle state.
type SubscriptionState int

const (
	SubscriptionUnsynced SubscriptionState = iota
	SubscriptionSubscribing
	SubscriptionSynced
	SubscriptionUnsubscribed
	SubscriptionError
)

func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionUnsynced:
		return "unsynced"
	case SubscriptionSubscribing:
		return "subscribing"
	case SubscriptionSynced:
		return "synced"
	case SubscriptionUnsubscribed:
		return "unsubscribed"
	case SubscriptionError:
		return "error"
	default:
		return "unknown"
	}
}

// ClientObserver is the single capability interface through which a caller
// watches the Connection Manager. There is exactly one observer per
// Client — a sink, not a multicast bus — so a caller that wants to fan out
// to several listeners composes its own ClientObserver that does so.
type ClientObserver interface {
	// OnConnected fires once per successful handshake, after the
	// connection's state has already flipped to StateConnected.
	OnConnected(c *Client)
	// OnDisconnected fires whenever a previously connecting-or-connected
	// transport goes away, after the state has already flipped to
	// StateDisconnected. A close that follows Disconnect (state
	// StateDisconnecting) does not fire it. reason is a short
	// human-readable description; closeCode is the raw code the transport
	// reported.
	OnDisconnected(c *Client, reason string, closeCode protocol.CloseCode)
	// OnError reports a non-fatal error observed on the connection (a
	// transport-level I/O error, a failed handshake). The connection is
	// not necessarily being torn down because of it.
	OnError(c *Client, err error)
}

// SubscriptionObserver is the single capability interface through which a
// caller watches one Subscription.
type SubscriptionObserver interface {
	// OnPublication delivers a single message in channel order. text is
	// the UTF-8 payload; data is the same bytes, provided for callers
	// that prefer to treat the payload as opaque binary.
	OnPublication(sub *Subscription, text string, data []byte)
	// OnStateChange fires after sub's state field has already been
	// updated to to.
	OnStateChange(sub *Subscription, from, to SubscriptionState)
	// OnKicked fires when the server unsubscribes this channel out from
	// under the client (an admin action, a permission revocation).
	OnKicked(sub *Subscription)
	// OnError reports a failure specific to this subscription (a token
	// fetch failure, a rejected subscribe command).
	OnError(sub *Subscription, err error)
}

// TokenProviderResult is what a TokenProvider resolves to: the channel it
// is valid for plus the bearer token itself. The channel is returned by
// the provider (rather than supplied up front by the caller) because in
// this protocol a subscribe token is minted for a specific channel, and
// the Subscription Entity treats that first-returned channel as immutable
// for the lifetime of the entity — a later mismatch surfaces as
// ErrChannelChanged.
type TokenProviderResult struct {
	Channel string
	Token   string
}

// TokenProvider mints subscribe tokens on demand: once to establish a
// subscription, and again on every resubscribe (including across
// reconnects, where the old token may have expired).
type TokenProvider interface {
	GetToken(ctx context.Context) (TokenProviderResult, error)
}

// TokenProviderFunc adapts a plain function to a TokenProvider.
type TokenProviderFunc func(ctx context.Context) (TokenProviderResult, error)

func (f TokenProviderFunc) GetToken(ctx context.Context) (TokenProviderResult, error) {
	return f(ctx)
}
