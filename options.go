package wireclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/wireclient/wireclient/internal/alert"
	"github.com/wireclient/wireclient/internal/metrics"
	"github.com/wireclient/wireclient/internal/reachability"
	"github.com/wireclient/wireclient/internal/scheduler"
	"github.com/wireclient/wireclient/internal/transport"
)

// ClientConfig holds the Connection Manager's tunables. New starts from
// defaultClientConfig's values; each With* option overwrites its field as
// given, a zero value included.
type ClientConfig struct {
	// CommandTimeout bounds how long a single command (connect, subscribe,
	// unsubscribe) waits for a reply before failing.
	CommandTimeout time.Duration
	// MaxServerPingDelay is the grace period added on top of the
	// server-advertised ping interval before the Connection Manager
	// decides the connection has gone stale and closes it.
	MaxServerPingDelay time.Duration
	// ReachabilityInterval is how often the Network Reachability Gate is
	// re-polled while no network path is available.
	ReachabilityInterval time.Duration
	// DialHeader is sent with the WebSocket upgrade request, e.g. for
	// additional auth headers beyond the protocol-level token.
	DialHeader http.Header
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		CommandTimeout:       10 * time.Second,
		MaxServerPingDelay:   5 * time.Second,
		ReachabilityInterval: 5 * time.Second,
	}
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics overrides the default no-op metrics.Sink.
func WithMetrics(sink metrics.Sink) Option {
	return func(c *Client) { c.metrics = sink }
}

// WithScheduler overrides the default time.AfterFunc-based scheduler.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(c *Client) { c.scheduler = s }
}

// WithReachabilityGate overrides the default TCP-dial reachability probe.
func WithReachabilityGate(g reachability.Gate) Option {
	return func(c *Client) { c.gate = g }
}

// WithObserver sets the single ClientObserver for connection-level events.
func WithObserver(o ClientObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithAlertNotifier enables fatal-state alerting (irrecoverable close
// codes, repeated ping timeouts) through the given notifier.
func WithAlertNotifier(n *alert.Notifier) Option {
	return func(c *Client) { c.alerter = n }
}

// WithCommandTimeout overrides ClientConfig.CommandTimeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Client) { c.cfg.CommandTimeout = d }
}

// WithMaxServerPingDelay overrides ClientConfig.MaxServerPingDelay.
func WithMaxServerPingDelay(d time.Duration) Option {
	return func(c *Client) { c.cfg.MaxServerPingDelay = d }
}

// WithReachabilityInterval overrides ClientConfig.ReachabilityInterval.
func WithReachabilityInterval(d time.Duration) Option {
	return func(c *Client) { c.cfg.ReachabilityInterval = d }
}

// WithDialHeader overrides ClientConfig.DialHeader.
func WithDialHeader(h http.Header) Option {
	return func(c *Client) { c.cfg.DialHeader = h }
}

// WithTransportFactory overrides how the Client constructs a Transport for
// each connection attempt. Tests use this to inject transport.NewFake.
func WithTransportFactory(f func(transport.Handlers) transport.Transport) Option {
	return func(c *Client) { c.transportFactory = f }
}
