package wireclient

import (
	"errors"
	"fmt"

	"github.com/wireclient/wireclient/internal/command"
	"github.com/wireclient/wireclient/internal/protocol"
)

// Sentinel errors. Callers should compare against these with errors.Is;
// ConnectionFailedError and CommandInterruptedError below unwrap to the
// sentinel that matches their kind. SubscribeError wraps no sentinel.
var (
	ErrEmptyToken           = errors.New("wireclient: empty token")
	ErrEmptyChannel         = errors.New("wireclient: empty channel")
	ErrChannelChanged       = errors.New("wireclient: token provider returned a different channel")
	ErrAlreadySubscribed    = errors.New("wireclient: channel already has a registry entry")
	ErrAlreadyUnsubscribed  = errors.New("wireclient: subscription is already unsubscribed")
	ErrDisposed             = errors.New("wireclient: subscription already disposed")
	ErrNotConnected         = errors.New("wireclient: not connected")
	ErrConnectionFailed     = errors.New("wireclient: connection failed")
	ErrTokenRetrieverFailed = errors.New("wireclient: token retriever failed")

	// ErrCommandTimeout aliases the command package's ErrTimeout so callers
	// never need to import internal/command themselves to use errors.Is
	// against a timed-out command. ErrCommandInterrupted is this package's
	// own sentinel, which CommandInterruptedError unwraps to.
	ErrCommandTimeout     = command.ErrTimeout
	ErrCommandInterrupted = errors.New("wireclient: command interrupted by disconnect")
)

// ConnectionFailedError carries the reason a Connect handshake failed.
type ConnectionFailedError struct {
	Reason string
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("wireclient: connection failed: %s", e.Reason)
}

func (e *ConnectionFailedError) Unwrap() error { return ErrConnectionFailed }

// CommandInterruptedError carries the close code that interrupted every
// command that was still awaiting a reply when the transport dropped.
type CommandInterruptedError struct {
	CloseCode protocol.CloseCode
}

func (e *CommandInterruptedError) Error() string {
	return fmt.Sprintf("wireclient: command interrupted: closed with %s (%d)", e.CloseCode, e.CloseCode)
}

func (e *CommandInterruptedError) Unwrap() error { return ErrCommandInterrupted }

// SubscribeError carries a server-rejected subscribe/unsubscribe attempt.
type SubscribeError struct {
	Channel string
	Reason  string
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("wireclient: subscribe %s: %s", e.Channel, e.Reason)
}
