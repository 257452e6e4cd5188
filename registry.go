package wireclient

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wireclient/wireclient/internal/protocol"
)

// Registry is the Subscription Registry: the single source of truth for
// which channels have a live Subscription entity, keyed by channel name.
// Exactly one entity exists per channel at a time — add rejects a second
// registration for a channel that already has one, mirroring
// centrifuge-go's subs map but exposed as its own type rather than a bare
// field on the client, since it is a distinct component with its own
// recovery and lifecycle responsibilities.
type Registry struct {
	mu             sync.RWMutex
	subs           map[string]*Subscription
	onCountChanged func(count int)
}

func newRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscription)}
}

func (r *Registry) add(sub *Subscription) error {
	r.mu.Lock()
	if _, exists := r.subs[sub.channel]; exists {
		r.mu.Unlock()
		return ErrAlreadySubscribed
	}
	r.subs[sub.channel] = sub
	r.mu.Unlock()
	r.notifyCountChanged()
	return nil
}

func (r *Registry) remove(channel string) {
	r.mu.Lock()
	_, existed := r.subs[channel]
	if existed {
		delete(r.subs, channel)
	}
	r.mu.Unlock()
	if existed {
		r.notifyCountChanged()
	}
}

func (r *Registry) get(channel string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[channel]
	return sub, ok
}

func (r *Registry) contains(channel string) bool {
	_, ok := r.get(channel)
	return ok
}

func (r *Registry) all() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

func (r *Registry) clear() {
	r.mu.Lock()
	r.subs = make(map[string]*Subscription)
	r.mu.Unlock()
	r.notifyCountChanged()
}

func (r *Registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *Registry) notifyCountChanged() {
	if r.onCountChanged != nil {
		r.onCountChanged(r.count())
	}
}

// subscriptionRequestsForReconnect builds the subs map a Connect command
// should carry so the server can recover every still-live channel in the
// same round trip as the handshake, instead of one Subscribe command per
// channel afterward. Entities whose token fetch fails are skipped — they
// fall back to an individual Subscribe call once the connection is up.
func (r *Registry) subscriptionRequestsForReconnect(ctx context.Context, logger *slog.Logger) map[string]protocol.SubscribeRequest {
	out := make(map[string]protocol.SubscribeRequest)
	for _, sub := range r.all() {
		req, ok := sub.reconnectRequest(ctx, logger)
		if ok {
			out[sub.channel] = req
		}
	}
	return out
}

// recover applies a successful Connect command's embedded subscribe
// results to the matching entities, and marks every entity the server did
// not mention as unsynced so it issues its own fresh Subscribe.
func (r *Registry) recover(result protocol.ConnectResult) {
	seen := make(map[string]bool, len(result.Subs))
	for channel, subRes := range result.Subs {
		seen[channel] = true
		if sub, ok := r.get(channel); ok {
			sub.applyRecovery(subRes)
			sub.setState(SubscriptionSynced)
		}
	}
	for _, sub := range r.all() {
		if !seen[sub.channel] {
			sub.markUnsynced()
		}
	}
}

// markAllUnsynced is called when the transport drops: every live entity
// loses its server-side state and must resubscribe on the next connect.
func (r *Registry) markAllUnsynced() {
	for _, sub := range r.all() {
		sub.markUnsynced()
	}
}
