// Package protocol implements the wire encoding for the Centrifuge-style
// command/reply/push protocol: framing, the command and reply shapes, and
// the mapping from WebSocket/Centrifuge close codes to a reconnect policy.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Method identifies the kind of command carried by a frame. Centrifuge
// itself keys this off which optional sub-object is populated; Method gives
// callers (metrics tags, logs) a typed value instead of re-deriving it.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodConnect
	MethodSubscribe
	MethodUnsubscribe
	MethodPublish
	MethodPing
)

func (m Method) String() string {
	switch m {
	case MethodConnect:
		return "connect"
	case MethodSubscribe:
		return "subscribe"
	case MethodUnsubscribe:
		return "unsubscribe"
	case MethodPublish:
		return "publish"
	case MethodPing:
		return "ping"
	default:
		return "unknown"
	}
}

// Error is the error object a Reply carries when the server rejected a
// command.
type Error struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol: server error %d: %s", e.Code, e.Message)
}

// PublicationData is the opaque payload of a Publication. Payload is
// UTF-8 text that the subscriber may also interpret as raw bytes.
type PublicationData struct {
	Payload string `json:"payload"`
}

// Publication is a single ordered message delivered on a channel.
type Publication struct {
	Offset uint64          `json:"offset"`
	Data   PublicationData `json:"data"`
}

// Unsub is a server-initiated push telling the client to drop a channel.
type Unsub struct {
	Code uint32 `json:"code,omitempty"`
}

// Push is a server-initiated, non-reply frame scoped to a channel.
type Push struct {
	Channel string       `json:"channel"`
	Pub     *Publication `json:"pub,omitempty"`
	Unsub   *Unsub       `json:"unsub,omitempty"`
}

// SubscribeRequest is the per-channel payload of a Connect or Subscribe
// command.
type SubscribeRequest struct {
	Channel string `json:"channel,omitempty"`
	Token   string `json:"token,omitempty"`
	Recover bool   `json:"recover,omitempty"`
	Offset  uint64 `json:"offset,omitempty"`
	Epoch   string `json:"epoch,omitempty"`
}

// embeddedPublication is the single-publication form seen in some server
// dialects: result.data.data.payload, incrementing offset by one rather
// than carrying an explicit offset.
type embeddedPublication struct {
	Data PublicationData `json:"data"`
}

// SubscribeResult is the server's reply to a Subscribe command, or an
// entry in a Connect reply's Subs map.
type SubscribeResult struct {
	Epoch        string                `json:"epoch,omitempty"`
	Offset       uint64                `json:"offset"`
	Recoverable  bool                  `json:"recoverable,omitempty"`
	Publications []Publication         `json:"publications,omitempty"`
	Data         *embeddedPublication  `json:"data,omitempty"`
}

// ConnectRequest is the payload of a Connect command: the bearer token plus
// the set of channels to recover/subscribe in the same round trip.
type ConnectRequest struct {
	Token string                      `json:"token,omitempty"`
	Subs  map[string]SubscribeRequest `json:"subs,omitempty"`
}

// ConnectResult is the server's reply to a Connect command.
type ConnectResult struct {
	Ping uint32                     `json:"ping"`
	Pong bool                       `json:"pong"`
	Subs map[string]SubscribeResult `json:"subs,omitempty"`
}

// UnsubscribeRequest is the payload of an Unsubscribe command.
type UnsubscribeRequest struct {
	Channel string `json:"channel,omitempty"`
}

// PublishRequest is the payload of a Publish command.
type PublishRequest struct {
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Command is an outbound client request. Exactly one of the method-specific
// fields is populated; ID is 0 only for commands that expect no reply
// (there are none defined here — Publish, Subscribe, Unsubscribe and
// Connect all correlate a reply).
type Command struct {
	ID          uint32              `json:"id,omitempty"`
	Connect     *ConnectRequest     `json:"connect,omitempty"`
	Subscribe   *SubscribeRequest   `json:"subscribe,omitempty"`
	Unsubscribe *UnsubscribeRequest `json:"unsubscribe,omitempty"`
	Publish     *PublishRequest     `json:"publish,omitempty"`
}

// Method reports which command this is, derived from which payload field is set.
func (c *Command) Method() Method {
	switch {
	case c.Connect != nil:
		return MethodConnect
	case c.Subscribe != nil:
		return MethodSubscribe
	case c.Unsubscribe != nil:
		return MethodUnsubscribe
	case c.Publish != nil:
		return MethodPublish
	default:
		return MethodUnknown
	}
}

// Reply is an inbound frame: either a reply to a previously-sent Command
// (ID > 0), a server push (ID == 0, Push != nil), or the heartbeat frame
// {} (ID == 0, nothing else set).
type Reply struct {
	ID        uint32           `json:"id,omitempty"`
	Error     *Error           `json:"error,omitempty"`
	Connect   *ConnectResult   `json:"connect,omitempty"`
	Subscribe *SubscribeResult `json:"subscribe,omitempty"`
	Push      *Push            `json:"push,omitempty"`
}

// IsHeartbeat reports whether this reply is the literal {} ping frame.
func (r Reply) IsHeartbeat() bool {
	return r.ID == 0 && r.Error == nil && r.Connect == nil && r.Subscribe == nil && r.Push == nil
}

// PingFrame is the literal heartbeat frame exchanged in both directions.
var PingFrame = []byte("{}")

// Encode serializes a Command to a single JSON document.
func Encode(cmd *Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode command: %w", err)
	}
	return data, nil
}

// Decode splits an inbound frame on '\n' (the server batches replies this
// way) and parses each non-empty document into a Reply. A malformed
// document fails the whole frame — callers must not process a partial
// batch.
func Decode(frame []byte) ([]Reply, error) {
	lines := bytes.Split(frame, []byte("\n"))
	replies := make([]Reply, 0, len(lines))
	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var r Reply
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("protocol: decode frame: %w", err)
		}
		replies = append(replies, r)
	}
	return replies, nil
}
