// Package transport defines the socket abstraction the Connection Manager
// drives, plus a gorilla/websocket-backed default implementation. Keeping
// this as an interface rather than a concrete *websocket.Conn field is
// what lets tests substitute an in-memory transport instead of dialing a
// real socket — the same seam AndrewWPhillips-eggql exercises with
// posener/wstest, generalized to our own Transport contract instead of
// net/http's.
package transport

import (
	"context"

	"github.com/wireclient/wireclient/internal/protocol"
)

// State is the transport's own connectedness, independent of the
// Connection Manager's higher-level ConnectionState.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

// Handlers are the callbacks a Transport invokes as events occur. All
// fields are optional; a nil handler is simply not called. A successful
// Connect invokes OnOpen before it returns — OnOpen is the signal that
// writes may now succeed; a Connect whose dial fails returns the error and
// does not invoke OnOpen.
type Handlers struct {
	OnOpen    func()
	OnMessage func([]byte)
	OnError   func(error)
	OnClose   func(protocol.CloseCode)
}

// Transport is the minimal capability surface the Connection Manager
// needs: dial, send, close, and report current state. Everything else
// (framing, ping/pong bookkeeping at the protocol level, reconnection) is
// the Connection Manager's job, not the transport's.
type Transport interface {
	// Connect dials url and, on success, begins delivering Handlers
	// callbacks. It returns once the dial either succeeds or fails; it
	// does not block for the lifetime of the connection.
	Connect(ctx context.Context, url string) error
	// Send writes a single frame. Safe for concurrent use.
	Send(data []byte) error
	// Close begins an orderly shutdown. It is safe to call more than
	// once and safe to call before Connect.
	Close() error
	// State reports the transport's current connectedness.
	State() State
}
