// Package wireclient is a real-time messaging client core for a
// Centrifuge-style command/reply/push protocol over WebSocket. It manages
// a single connection's lifecycle (handshake, reconnect with backoff,
// ping-deadline liveness), correlates commands to replies, and tracks a
// registry of channel subscriptions that recover their position across
// reconnects.
//
// The Client is the Connection Manager and the main entry point:
//
//	c := wireclient.New("wss://example.test/connection/websocket", token)
//	if err := c.Connect(ctx); err != nil {
//		...
//	}
//	sub, err := c.CreateChannel(ctx, tokenProvider, observer)
//
// Everything that can block (dialing, awaiting a reply) takes a
// context.Context; everything that can be observed (connection state,
// subscription state, publications) is delivered through a small
// capability interface rather than a multicast event bus, so a single
// implementation can choose exactly which callbacks it wants.
package wireclient
