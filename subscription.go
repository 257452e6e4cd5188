package wireclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wireclient/wireclient/internal/metrics"
	"github.com/wireclient/wireclient/internal/protocol"
)

// Subscription is the Subscription Entity: one channel's state machine,
// offset/epoch bookkeeping for stream recovery, and the single observer
// sink through which its publications are delivered. Callers never
// construct one directly — they go through Client.CreateChannel, which is
// what registers the entity in the Subscription Registry.
type Subscription struct {
	client        *Client
	channel       string
	tokenProvider TokenProvider
	observer      SubscriptionObserver

	mu       sync.Mutex
	state    SubscriptionState
	token    string
	offset   uint64
	epoch    string
	disposed bool
}

func newSubscription(c *Client, channel string, tp TokenProvider, observer SubscriptionObserver) *Subscription {
	return &Subscription{
		client:        c,
		channel:       channel,
		tokenProvider: tp,
		observer:      observer,
		state:         SubscriptionUnsynced,
	}
}

// Channel returns the immutable channel name this entity was created for.
func (s *Subscription) Channel() string { return s.channel }

// State returns the current lifecycle state.
func (s *Subscription) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Offset returns the last publication offset observed on this channel.
func (s *Subscription) Offset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Epoch returns the current recovery epoch, or "" if the channel has
// never been (re)synced.
func (s *Subscription) Epoch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Subscription) setToken(tok string) {
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
}

func (s *Subscription) setState(newState SubscriptionState) {
	s.mu.Lock()
	old := s.state
	s.state = newState
	s.mu.Unlock()
	if old != newState && s.observer != nil {
		s.observer.OnStateChange(s, old, newState)
	}
}

// Subscribe fetches a fresh token and issues a subscribe command for this
// channel. Subsequent calls after the first establish recovery parameters
// (offset/epoch) from whatever this entity has already observed, so a
// manual re-Subscribe after an Unsubscribe still catches up cleanly.
func (s *Subscription) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return ErrDisposed
	}

	tok, err := s.tokenProvider.GetToken(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrTokenRetrieverFailed, err)
		s.setState(SubscriptionError)
		s.reportError(wrapped)
		return wrapped
	}
	if tok.Channel != s.channel {
		s.setState(SubscriptionError)
		s.reportError(ErrChannelChanged)
		return ErrChannelChanged
	}
	s.setToken(tok.Token)
	s.setState(SubscriptionSubscribing)

	s.mu.Lock()
	offset, epoch := s.offset, s.epoch
	s.mu.Unlock()

	id := protocol.NextCommandID()
	if err := s.client.commands.Register(id); err != nil {
		s.setState(SubscriptionError)
		return err
	}
	cmd := &protocol.Command{
		ID: id,
		Subscribe: &protocol.SubscribeRequest{
			Channel: s.channel,
			Token:   tok.Token,
			Recover: epoch != "",
			Offset:  offset,
			Epoch:   epoch,
		},
	}
	if err := s.client.sendCommandAwaitingConnect(ctx, cmd); err != nil {
		s.setState(SubscriptionError)
		s.reportError(err)
		return err
	}

	start := time.Now()
	reply, err := s.client.commands.AwaitReply(ctx, id, s.client.cfg.CommandTimeout)
	s.client.recordCommandMetric(protocol.MethodSubscribe, time.Since(start), err)
	if err != nil {
		s.setState(SubscriptionError)
		s.reportError(err)
		return err
	}
	if reply.Error != nil {
		subErr := &SubscribeError{Channel: s.channel, Reason: reply.Error.Message}
		s.setState(SubscriptionError)
		s.reportError(subErr)
		return subErr
	}
	result := reply.Subscribe
	if result == nil {
		subErr := &SubscribeError{Channel: s.channel, Reason: "missing subscribe result"}
		s.setState(SubscriptionError)
		s.reportError(subErr)
		return subErr
	}

	s.applyRecovery(*result)
	s.setState(SubscriptionSynced)
	return nil
}

// Unsubscribe asks the server to drop this channel. If the client is not
// currently connected there is nothing to send; the entity simply moves
// to Unsynced. It stays in the registry, so the next reconnect includes it
// in the Connect command's subs and subscribes it again.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	disposed := s.disposed
	already := s.state == SubscriptionUnsubscribed
	s.mu.Unlock()
	if disposed {
		return ErrDisposed
	}
	if already {
		return ErrAlreadyUnsubscribed
	}

	if !s.client.IsConnected() {
		s.setState(SubscriptionUnsynced)
		return nil
	}

	id := protocol.NextCommandID()
	if err := s.client.commands.Register(id); err != nil {
		return err
	}
	cmd := &protocol.Command{ID: id, Unsubscribe: &protocol.UnsubscribeRequest{Channel: s.channel}}
	if err := s.client.sendCommandAwaitingConnect(ctx, cmd); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.client.commands.AwaitReply(ctx, id, s.client.cfg.CommandTimeout)
	s.client.recordCommandMetric(protocol.MethodUnsubscribe, time.Since(start), err)
	s.setState(SubscriptionUnsynced)
	return err
}

// onPublication delivers a single publication to the observer, then
// advances the recovery offset. The ordering matters: a crash between
// delivery and the offset update must re-deliver the publication on the
// next recovery rather than silently skip it, matching
// other_examples/.../centrifuge-go's handleServerPublication sequencing.
func (s *Subscription) onPublication(pub protocol.Publication) {
	text := pub.Data.Payload
	if s.observer != nil {
		s.observer.OnPublication(s, text, []byte(text))
	}
	s.mu.Lock()
	s.offset = pub.Offset
	s.mu.Unlock()
}

func (s *Subscription) onKick() {
	s.setState(SubscriptionUnsubscribed)
	if s.observer != nil {
		s.observer.OnKicked(s)
	}
}

// markUnsynced is the connectivity-loss transition: a Synced or
// Subscribing entity whose transport just dropped loses its server-side
// state and must resubscribe from scratch on the next connect. Entities
// already in a terminal state (Unsubscribed, Error) are left alone.
func (s *Subscription) markUnsynced() {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()
	if cur == SubscriptionUnsubscribed || cur == SubscriptionError {
		return
	}
	s.setState(SubscriptionUnsynced)
}

// applyRecovery applies a SubscribeResult's catch-up publications (or the
// single embedded-publication form) and advances offset/epoch.
func (s *Subscription) applyRecovery(result protocol.SubscribeResult) {
	s.mu.Lock()
	s.epoch = result.Epoch
	s.offset = result.Offset
	s.mu.Unlock()

	if len(result.Publications) > 0 {
		for _, pub := range result.Publications {
			s.onPublication(pub)
		}
		return
	}
	if result.Data != nil {
		text := result.Data.Data.Payload
		if s.observer != nil {
			s.observer.OnPublication(s, text, []byte(text))
		}
		s.mu.Lock()
		s.offset++
		s.mu.Unlock()
	}
}

// reconnectRequest builds this entity's entry for the next Connect
// command's subs map, fetching a fresh token in the process. ok is false
// if the token fetch failed or returned a different channel, in which
// case the caller omits this entity from the batch entirely.
func (s *Subscription) reconnectRequest(ctx context.Context, logger *slog.Logger) (protocol.SubscribeRequest, bool) {
	s.mu.Lock()
	disposed := s.disposed
	offset, epoch := s.offset, s.epoch
	s.mu.Unlock()
	if disposed {
		return protocol.SubscribeRequest{}, false
	}

	tok, err := s.tokenProvider.GetToken(ctx)
	if err != nil {
		logger.Warn("token fetch failed building reconnect subscribe request",
			slog.String("channel", s.channel), slog.String("error", err.Error()))
		return protocol.SubscribeRequest{}, false
	}
	if tok.Channel != s.channel {
		logger.Error("token provider returned a different channel across calls",
			slog.String("channel", s.channel), slog.String("got", tok.Channel))
		s.setState(SubscriptionError)
		s.reportError(ErrChannelChanged)
		return protocol.SubscribeRequest{}, false
	}

	s.setToken(tok.Token)
	s.setState(SubscriptionSubscribing)
	return protocol.SubscribeRequest{
		Channel: s.channel,
		Token:   tok.Token,
		Recover: epoch != "",
		Offset:  offset,
		Epoch:   epoch,
	}, true
}

func (s *Subscription) reportError(err error) {
	if s.observer != nil {
		s.observer.OnError(s, err)
	}
}

// Dispose performs deterministic disposal: if connected, it sends an
// Unsubscribe command and waits for the round trip before releasing local
// bookkeeping. Safe to call more than once. If the entity was already
// unsubscribed (e.g. kicked by the server) before Dispose ran, the
// unsubscribe step is skipped and ErrAlreadyUnsubscribed is returned —
// local bookkeeping is still released.
func (s *Subscription) Dispose(ctx context.Context) error {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return nil
	}

	// Unsubscribe refuses a disposed entity, so it runs before the flag is set.
	var err error
	if s.client.IsConnected() {
		err = s.Unsubscribe(ctx)
	}

	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
	s.client.registry.remove(s.channel)
	s.client.metrics.Gauge(metrics.MetricSubscriptionCount, float64(s.client.registry.count()))
	s.clearObserver()
	return err
}

// Release performs non-deterministic disposal: local bookkeeping only, no
// network round trip. It exists for finalizer-driven cleanup paths, where
// blocking on an Unsubscribe reply (or even touching the transport) would
// be unsafe. Safe to call more than once.
func (s *Subscription) Release() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()

	s.client.registry.remove(s.channel)
	s.client.metrics.Gauge(metrics.MetricSubscriptionCount, float64(s.client.registry.count()))
	s.clearObserver()
}

func (s *Subscription) clearObserver() {
	s.mu.Lock()
	s.observer = nil
	s.mu.Unlock()
}
