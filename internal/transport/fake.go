package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/wireclient/wireclient/internal/protocol"
)

// Fake is an in-memory Transport for tests, standing in for a real socket
// the way posener/wstest stands in for a real HTTP listener in
// AndrewWPhillips-eggql's test suite — except here it implements our own
// Transport interface directly rather than intercepting net/http.
//
// Sent frames land on the Outbound channel for the test to inspect or
// react to; the test delivers server frames by calling Deliver, and ends
// the connection by calling DeliverClose.
type Fake struct {
	handlers Handlers
	Outbound chan []byte

	mu    sync.Mutex
	state State

	// ConnectErr, if set, is returned by Connect instead of succeeding.
	ConnectErr error
}

// NewFake returns a Fake transport with a buffered outbound channel large
// enough for ordinary test traffic.
func NewFake(handlers Handlers) *Fake {
	return &Fake{
		handlers: handlers,
		Outbound: make(chan []byte, 64),
		state:    StateIdle,
	}
}

func (f *Fake) Connect(ctx context.Context, url string) error {
	if f.ConnectErr != nil {
		f.mu.Lock()
		f.state = StateClosed
		f.mu.Unlock()
		return f.ConnectErr
	}
	f.mu.Lock()
	f.state = StateOpen
	f.mu.Unlock()
	if f.handlers.OnOpen != nil {
		f.handlers.OnOpen()
	}
	return nil
}

func (f *Fake) Send(data []byte) error {
	f.mu.Lock()
	open := f.state == StateOpen
	f.mu.Unlock()
	if !open {
		return errors.New("transport: fake send while not open")
	}
	f.Outbound <- data
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	if f.state == StateClosed {
		f.mu.Unlock()
		return nil
	}
	f.state = StateClosed
	f.mu.Unlock()
	if f.handlers.OnClose != nil {
		f.handlers.OnClose(protocol.CloseNormalClosure)
	}
	return nil
}

func (f *Fake) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Deliver simulates an inbound frame from the server.
func (f *Fake) Deliver(data []byte) {
	if f.handlers.OnMessage != nil {
		f.handlers.OnMessage(data)
	}
}

// DeliverClose simulates the server (or network) closing the connection
// with the given code, without going through Close.
func (f *Fake) DeliverClose(code protocol.CloseCode) {
	f.mu.Lock()
	f.state = StateClosed
	f.mu.Unlock()
	if f.handlers.OnClose != nil {
		f.handlers.OnClose(code)
	}
}
