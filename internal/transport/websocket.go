package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wireclient/wireclient/internal/protocol"
)

// A generous write deadline paired with a read pump that owns the
// connection until it errors.
const writeWait = 10 * time.Second

// WebsocketTransport is the default Transport, backed by
// gorilla/websocket. It owns exactly one *websocket.Conn at a time and
// runs a single read pump goroutine per connection.
type WebsocketTransport struct {
	handshakeTimeout time.Duration
	header           http.Header
	handlers         Handlers

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State

	writeMu sync.Mutex
}

// NewWebsocketTransport constructs a transport that will invoke handlers
// as connection events occur. The dial handshake timeout starts at 15
// seconds; WithHandshakeTimeout changes it.
func NewWebsocketTransport(handlers Handlers) *WebsocketTransport {
	return &WebsocketTransport{
		handshakeTimeout: 15 * time.Second,
		handlers:         handlers,
		state:            StateIdle,
	}
}

// WithHandshakeTimeout overrides the dial timeout.
func (t *WebsocketTransport) WithHandshakeTimeout(d time.Duration) *WebsocketTransport {
	t.handshakeTimeout = d
	return t
}

// WithHeader sets additional headers (e.g. a bearer token) sent with the
// upgrade request.
func (t *WebsocketTransport) WithHeader(h http.Header) *WebsocketTransport {
	t.header = h
	return t
}

func (t *WebsocketTransport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *WebsocketTransport) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *WebsocketTransport) Connect(ctx context.Context, url string) error {
	t.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: t.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, t.header)
	if err != nil {
		t.setState(StateClosed)
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.state = StateOpen
	t.mu.Unlock()

	go t.readPump(conn)

	if t.handlers.OnOpen != nil {
		t.handlers.OnOpen()
	}
	return nil
}

func (t *WebsocketTransport) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := closeCodeFromErr(err)
			t.mu.Lock()
			owns := t.conn == conn
			if owns {
				t.conn = nil
				t.state = StateClosed
			}
			t.mu.Unlock()
			if owns && t.handlers.OnClose != nil {
				t.handlers.OnClose(code)
			}
			return
		}
		if t.handlers.OnMessage != nil {
			t.handlers.OnMessage(data)
		}
	}
}

func (t *WebsocketTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return errors.New("transport: send on a closed connection")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WebsocketTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	if t.state == StateClosed {
		t.mu.Unlock()
		return nil
	}
	t.state = StateClosed
	// t.conn stays set so the read pump still owns the connection: it
	// clears it and reports OnClose once the read fails.
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}

func closeCodeFromErr(err error) protocol.CloseCode {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return protocol.CloseCode(ce.Code)
	}
	return protocol.CloseAbnormalClosure
}
