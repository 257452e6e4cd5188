package wireclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wireclient/wireclient/internal/alert"
	"github.com/wireclient/wireclient/internal/backoff"
	"github.com/wireclient/wireclient/internal/command"
	"github.com/wireclient/wireclient/internal/metrics"
	"github.com/wireclient/wireclient/internal/protocol"
	"github.com/wireclient/wireclient/internal/reachability"
	"github.com/wireclient/wireclient/internal/scheduler"
	"github.com/wireclient/wireclient/internal/transport"
)

// Client is the Connection Manager: it owns a single logical connection's
// lifecycle, the Command Manager used to correlate replies, and the
// Subscription Registry of live channels. Its state machine and reconnect
// algorithm follow other_examples/.../centrifuge-go's Client.connectFromScratch
// and handleDisconnect, generalized onto our own Transport/Scheduler/Gate
// seams so the same logic can run against an in-memory transport in tests
// or a single-threaded host's cooperative scheduler in production.
type Client struct {
	address string
	cfg     ClientConfig

	transportFactory func(transport.Handlers) transport.Transport
	scheduler        scheduler.Scheduler
	gate             reachability.Gate
	metrics          metrics.Sink
	alerter          *alert.Notifier
	logger           *slog.Logger
	observer         ClientObserver

	registry *Registry
	commands *command.Manager
	backoff  *backoff.Backoff

	mu            sync.Mutex
	accessToken   string
	state         ConnectionState
	wantConnected bool
	disabled      bool

	transport transport.Transport

	connectFuture  *connectFuture
	disconnectDone chan struct{}

	reconnectScheduled bool
	reconnectActionID  scheduler.ActionID

	networkWaitScheduled bool
	networkWaitActionID  scheduler.ActionID

	pingDeadlineScheduled bool
	pingDeadlineID        scheduler.ActionID
	serverPing            time.Duration
	serverPong            bool
	pingMisses            int
}

// New constructs a Client for the given WebSocket address and initial
// access token. The client does not dial until Connect is called.
func New(address, accessToken string, opts ...Option) *Client {
	c := &Client{
		address:     address,
		accessToken: accessToken,
		cfg:         defaultClientConfig(),
		registry:    newRegistry(),
		commands:    command.NewManager(),
		backoff:     backoff.New(),
		scheduler:   scheduler.NewTimerScheduler(),
		gate:        reachability.NewDialGate(""),
		metrics:     metrics.NoopSink{},
		logger:      slog.Default(),
		state:       StateDisconnected,
	}
	c.transportFactory = func(h transport.Handlers) transport.Transport {
		tr := transport.NewWebsocketTransport(h)
		if c.cfg.DialHeader != nil {
			tr.WithHeader(c.cfg.DialHeader)
		}
		return tr
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// connectFuture lets any number of concurrent Connect callers await the
// single in-flight handshake rather than each triggering their own.
type connectFuture struct {
	done chan struct{}
	err  error
}

func newConnectFuture() *connectFuture {
	return &connectFuture{done: make(chan struct{})}
}

func (f *connectFuture) complete(err error) {
	f.err = err
	close(f.done)
}

func (f *connectFuture) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

func (c *Client) wantConnectedSnapshot() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wantConnected
}

// SetToken replaces the bearer token used on the next Connect attempt
// (including automatic reconnects). It does not itself trigger a
// reconnect; combine with OnIdentityChanged when the token change implies
// a different logical identity.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// Connect establishes the connection if not already connected or
// connecting, and blocks until the handshake resolves or ctx is done. A
// call while a handshake is already in flight joins that handshake rather
// than starting a second one.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.reconnectScheduled {
		c.scheduler.CancelAction(c.reconnectActionID)
		c.reconnectScheduled = false
	}
	if c.networkWaitScheduled {
		c.scheduler.CancelAction(c.networkWaitActionID)
		c.networkWaitScheduled = false
	}

	for c.state == StateDisconnecting {
		done := c.disconnectDone
		c.mu.Unlock()
		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		c.mu.Lock()
	}

	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		fut := c.connectFuture
		c.mu.Unlock()
		if fut == nil {
			return nil
		}
		return fut.wait(ctx)
	}

	c.wantConnected = true
	c.disabled = false
	c.state = StateConnecting
	fut := newConnectFuture()
	c.connectFuture = fut
	c.mu.Unlock()

	c.metrics.Counter(metrics.MetricConnectionStateChange, 1, map[string]string{"state": StateConnecting.String()})
	c.openTransport(ctx)

	return fut.wait(ctx)
}

func (c *Client) openTransport(ctx context.Context) {
	handlers := transport.Handlers{
		OnOpen:    c.handleOpen,
		OnMessage: c.handleMessage,
		OnError:   c.handleTransportError,
		OnClose:   c.handleClose,
	}
	tr := c.transportFactory(handlers)

	c.mu.Lock()
	c.transport = tr
	c.mu.Unlock()

	go func() {
		if err := tr.Connect(ctx, c.address); err != nil {
			c.logger.Error("transport dial failed", slog.String("error", err.Error()))
			c.metrics.Counter(metrics.MetricWebsocketError, 1, nil)
			c.handleClose(protocol.CloseAbnormalClosure)
		}
	}()
}

func (c *Client) handleOpen() {
	go c.performHandshake()
}

func (c *Client) transportRef() transport.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

func (c *Client) performHandshake() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CommandTimeout)
	defer cancel()

	token := c.getAccessToken()
	if token == "" {
		c.failConnect(ErrEmptyToken)
		if tr := c.transportRef(); tr != nil {
			_ = tr.Close()
		}
		return
	}

	subs := c.registry.subscriptionRequestsForReconnect(ctx, c.logger)
	id := protocol.NextCommandID()
	if err := c.commands.Register(id); err != nil {
		c.failConnect(&ConnectionFailedError{Reason: err.Error()})
		return
	}

	cmd := &protocol.Command{ID: id, Connect: &protocol.ConnectRequest{Token: token, Subs: subs}}
	if err := c.sendCommand(cmd); err != nil {
		c.failConnect(&ConnectionFailedError{Reason: err.Error()})
		return
	}

	start := time.Now()
	reply, err := c.commands.AwaitReply(ctx, id, c.cfg.CommandTimeout)
	c.recordCommandMetric(protocol.MethodConnect, time.Since(start), err)
	if err != nil {
		c.failConnect(&ConnectionFailedError{Reason: err.Error()})
		if tr := c.transportRef(); tr != nil {
			_ = tr.Close()
		}
		return
	}
	if reply.Error != nil {
		c.failConnect(&ConnectionFailedError{Reason: reply.Error.Message})
		if tr := c.transportRef(); tr != nil {
			_ = tr.Close()
		}
		return
	}
	result := reply.Connect
	if result == nil {
		c.failConnect(&ConnectionFailedError{Reason: "missing connect result"})
		if tr := c.transportRef(); tr != nil {
			_ = tr.Close()
		}
		return
	}

	c.backoff.Reset()
	c.registry.recover(*result)
	for _, sub := range c.registry.all() {
		if sub.State() == SubscriptionUnsynced {
			go func(sub *Subscription) { _ = sub.Subscribe(context.Background()) }(sub)
		}
	}

	c.mu.Lock()
	c.serverPing = time.Duration(result.Ping) * time.Second
	c.serverPong = result.Pong
	c.pingMisses = 0
	c.state = StateConnected
	fut := c.connectFuture
	c.connectFuture = nil
	c.mu.Unlock()

	c.metrics.Counter(metrics.MetricConnectionStateChange, 1, map[string]string{"state": StateConnected.String()})
	c.metrics.Gauge(metrics.MetricSubscriptionCount, float64(c.registry.count()))
	c.armPingDeadline()

	if fut != nil {
		fut.complete(nil)
	}
	if c.observer != nil {
		c.observer.OnConnected(c)
	}
}

func (c *Client) failConnect(err error) {
	c.mu.Lock()
	fut := c.connectFuture
	c.connectFuture = nil
	c.mu.Unlock()
	if fut != nil {
		fut.complete(err)
	}
	if c.observer != nil {
		c.observer.OnError(c, err)
	}
}

// Disconnect tears the connection down deliberately: want_connected is
// cleared so no reconnect follows, and the call blocks until the
// transport has actually finished closing.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.reconnectScheduled {
		c.scheduler.CancelAction(c.reconnectActionID)
		c.reconnectScheduled = false
	}
	if c.networkWaitScheduled {
		c.scheduler.CancelAction(c.networkWaitActionID)
		c.networkWaitScheduled = false
	}
	c.wantConnected = false

	switch c.state {
	case StateDisconnected:
		c.mu.Unlock()
		return nil
	case StateDisconnecting:
		done := c.disconnectDone
		c.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	c.disconnectDone = done
	c.state = StateDisconnecting
	tr := c.transport
	c.mu.Unlock()

	if tr != nil {
		_ = tr.Close()
	} else {
		c.handleClose(protocol.CloseNormalClosure)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disable marks the client as administratively disabled: it disconnects
// (if connected) and will not reconnect on its own until Connect is called
// again. Like Disconnect, it cancels a scheduled reconnect or reachability
// wait; in addition it sets the disabled flag that the reconnect and
// reachability callbacks check before connecting.
func (c *Client) Disable() {
	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()
	_ = c.Disconnect(context.Background())
}

// OnIdentityChanged handles a change of logical identity (e.g. a
// different signed-in player): it disconnects, drops every in-flight
// command and registered channel, and — if a non-empty token is already
// set — reconnects under the new identity.
func (c *Client) OnIdentityChanged(ctx context.Context, note string) error {
	c.logger.Info("identity changed", slog.String("note", note))
	hasToken := c.getAccessToken() != ""

	if err := c.Disconnect(ctx); err != nil {
		return err
	}
	c.commands.Clear()
	c.registry.clear()

	if !hasToken {
		return nil
	}
	return c.Connect(ctx)
}

// CreateChannel fetches an initial token, registers a new Subscription
// Entity for the channel the provider resolves to, and — if the
// connection is already up — kicks off the subscribe round trip in the
// background.
func (c *Client) CreateChannel(ctx context.Context, tp TokenProvider, observer SubscriptionObserver) (*Subscription, error) {
	tok, err := tp.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenRetrieverFailed, err)
	}
	if tok.Channel == "" {
		return nil, ErrEmptyChannel
	}
	if tok.Token == "" {
		return nil, ErrEmptyToken
	}

	sub := newSubscription(c, tok.Channel, tp, observer)
	sub.setToken(tok.Token)
	if err := c.registry.add(sub); err != nil {
		return nil, err
	}
	c.metrics.Gauge(metrics.MetricSubscriptionCount, float64(c.registry.count()))

	if c.IsConnected() {
		go func() { _ = sub.Subscribe(context.Background()) }()
	}
	return sub, nil
}

// Subscriptions returns a snapshot of every live entity in the registry.
func (c *Client) Subscriptions() []*Subscription {
	return c.registry.all()
}

func (c *Client) sendCommand(cmd *protocol.Command) error {
	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	return c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) error {
	tr := c.transportRef()
	if tr == nil {
		return ErrNotConnected
	}
	return tr.Send(data)
}

// sendCommandAwaitingConnect sends cmd once the current handshake (if
// any) has resolved. This is what lets Subscribe/Unsubscribe calls made
// immediately after Connect queue behind the handshake instead of failing
// outright.
func (c *Client) sendCommandAwaitingConnect(ctx context.Context, cmd *protocol.Command) error {
	c.mu.Lock()
	fut := c.connectFuture
	c.mu.Unlock()
	if fut != nil {
		if err := fut.wait(ctx); err != nil {
			return err
		}
	}
	return c.sendCommand(cmd)
}

func (c *Client) recordCommandMetric(method protocol.Method, dur time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.metrics.Histogram(metrics.MetricCommand, float64(dur.Milliseconds()),
		map[string]string{"method": method.String(), "result": result})
}

func (c *Client) handleTransportError(err error) {
	c.logger.Error("transport error", slog.String("error", err.Error()))
	c.metrics.Counter(metrics.MetricWebsocketError, 1, nil)
	if c.observer != nil {
		c.observer.OnError(c, err)
	}
}

func (c *Client) handleMessage(raw []byte) {
	c.metrics.Counter(metrics.MetricMessageReceived, 1, nil)

	c.cancelPingDeadline()
	pong := c.serverPongSnapshot()

	replies, err := protocol.Decode(raw)
	if err != nil {
		c.logger.Error("failed to decode frame, closing connection", slog.String("error", err.Error()))
		if tr := c.transportRef(); tr != nil {
			_ = tr.Close()
		}
		return
	}
	for _, reply := range replies {
		c.handleReply(reply)
	}

	if pong {
		_ = c.sendRaw(protocol.PingFrame)
	}
	c.armPingDeadline()
}

func (c *Client) serverPongSnapshot() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverPong
}

func (c *Client) handleReply(reply protocol.Reply) {
	if reply.ID > 0 {
		c.commands.OnReply(reply)
		return
	}
	if reply.Push == nil {
		return // heartbeat
	}
	c.handlePush(*reply.Push)
}

func (c *Client) handlePush(push protocol.Push) {
	sub, ok := c.registry.get(push.Channel)
	if !ok {
		c.logger.Warn("push for unknown channel", slog.String("channel", push.Channel))
		return
	}
	switch {
	case push.Pub != nil:
		c.metrics.Counter(metrics.MetricPushReceived, 1, map[string]string{"push_type": "publication"})
		sub.onPublication(*push.Pub)
	case push.Unsub != nil:
		c.metrics.Counter(metrics.MetricPushReceived, 1, map[string]string{"push_type": "unsub"})
		sub.onKick()
	}
}

func (c *Client) armPingDeadline() {
	c.mu.Lock()
	if c.pingDeadlineScheduled {
		c.scheduler.CancelAction(c.pingDeadlineID)
	}
	grace := c.cfg.MaxServerPingDelay
	deadline := c.serverPing + grace
	if deadline <= 0 {
		deadline = grace
	}
	c.pingDeadlineID = c.scheduler.ScheduleAction(c.onPingDeadline, deadline)
	c.pingDeadlineScheduled = true
	c.mu.Unlock()
}

func (c *Client) cancelPingDeadline() {
	c.mu.Lock()
	if c.pingDeadlineScheduled {
		c.scheduler.CancelAction(c.pingDeadlineID)
		c.pingDeadlineScheduled = false
	}
	c.mu.Unlock()
}

func (c *Client) onPingDeadline() {
	c.mu.Lock()
	c.pingMisses++
	misses := c.pingMisses
	tr := c.transport
	c.mu.Unlock()

	c.logger.Warn("ping deadline exceeded, closing stalled connection", slog.Int("misses", misses))
	if misses == 3 {
		c.maybeAlert("wireclient: repeated ping timeouts",
			"the connection has stalled through its liveness deadline three times consecutively")
	}
	if tr != nil {
		_ = tr.Close()
	}
}

// handleClose is the transport's OnClose callback: it runs whether the
// close was caused by us (Disconnect), the server, or the network, and is
// the single place the reconnect decision is made.
func (c *Client) handleClose(code protocol.CloseCode) {
	c.mu.Lock()
	wasLive := c.state == StateConnecting || c.state == StateConnected
	c.transport = nil
	if c.pingDeadlineScheduled {
		c.scheduler.CancelAction(c.pingDeadlineID)
		c.pingDeadlineScheduled = false
	}
	fut := c.connectFuture
	c.connectFuture = nil
	disconnectDone := c.disconnectDone
	c.disconnectDone = nil
	c.state = StateDisconnected
	// The pong requirement belongs to the connection that just closed; the
	// next handshake sets it again.
	c.serverPong = false
	wantReconnect := c.wantConnected && !c.disabled && code.Reconnectable()
	c.mu.Unlock()

	c.commands.OnDisconnect(&CommandInterruptedError{CloseCode: code})
	c.registry.markAllUnsynced()

	if fut != nil {
		fut.complete(&ConnectionFailedError{Reason: fmt.Sprintf("closed: %s", code)})
	}
	if disconnectDone != nil {
		close(disconnectDone)
	}

	c.metrics.Counter(metrics.MetricConnectionStateChange, 1, map[string]string{"state": StateDisconnected.String()})

	if wasLive && c.observer != nil {
		c.observer.OnDisconnected(c, "transport closed", code)
	}

	if !code.Reconnectable() {
		c.maybeAlert("wireclient: irrecoverable disconnect",
			fmt.Sprintf("connection closed with code %s; reconnection will not be attempted", code))
	}

	if !wantReconnect {
		return
	}

	if !c.gate.IsReachable(context.Background()) {
		c.scheduleNetworkWait()
		return
	}

	var delay time.Duration
	if code == protocol.CloseTokenVerificationFailed {
		delay = 10 * time.Second
	} else {
		delay = c.backoff.Next()
	}
	c.scheduleReconnect(delay)
}

func (c *Client) maybeAlert(title, message string) {
	if c.alerter == nil {
		return
	}
	go func() {
		_ = c.alerter.Notify(context.Background(), title, message)
	}()
}

func (c *Client) scheduleReconnect(delay time.Duration) {
	c.mu.Lock()
	c.reconnectActionID = c.scheduler.ScheduleAction(c.reconnectNow, delay)
	c.reconnectScheduled = true
	c.mu.Unlock()
}

func (c *Client) reconnectNow() {
	c.mu.Lock()
	c.reconnectScheduled = false
	ok := c.wantConnected && !c.disabled && c.state == StateDisconnected
	c.mu.Unlock()
	if !ok {
		return
	}
	_ = c.Connect(context.Background())
}

// scheduleNetworkWait re-polls the reachability gate on an interval
// instead of attempting a reconnect that is certain to fail. The first
// successful probe triggers an immediate Connect.
func (c *Client) scheduleNetworkWait() {
	c.mu.Lock()
	c.networkWaitScheduled = true
	c.mu.Unlock()

	var poll func()
	poll = func() {
		if c.gate.IsReachable(context.Background()) {
			c.mu.Lock()
			c.networkWaitScheduled = false
			ok := c.wantConnected && !c.disabled && c.state == StateDisconnected
			c.mu.Unlock()
			if ok {
				_ = c.Connect(context.Background())
			}
			return
		}

		c.mu.Lock()
		if !c.networkWaitScheduled {
			c.mu.Unlock()
			return
		}
		interval := c.cfg.ReachabilityInterval
		if interval <= 0 {
			interval = time.Second
		}
		c.networkWaitActionID = c.scheduler.ScheduleAction(poll, interval)
		c.mu.Unlock()
	}
	poll()
}
