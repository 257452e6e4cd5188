package wireclient

import "github.com/wireclient/wireclient/internal/diag"

// ConnectionState implements diag.StatusProvider.
func (c *Client) ConnectionState() string {
	return c.State().String()
}

// SubscriptionSnapshot implements diag.StatusProvider: a point-in-time
// view of every entity in the Subscription Registry, for the
// /debug/subscriptions endpoint.
func (c *Client) SubscriptionSnapshot() []diag.SubscriptionSnapshot {
	subs := c.Subscriptions()
	out := make([]diag.SubscriptionSnapshot, 0, len(subs))
	for _, s := range subs {
		out = append(out, diag.SubscriptionSnapshot{
			Channel: s.Channel(),
			State:   s.State().String(),
			Offset:  s.Offset(),
			Epoch:   s.Epoch(),
		})
	}
	return out
}
