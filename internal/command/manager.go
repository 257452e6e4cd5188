// Package command implements the correlation layer between outbound
// commands and their inbound replies: a Register/AwaitReply/OnReply split
// so a caller can send a command, hand its ID to the transport, and block
// (with a timeout, cancellable by context) until the matching reply
// arrives — or until the connection drops and every pending command fails
// at once. This generalizes the requests-map pattern in
// other_examples/.../centrifuge-go's client.go into a standalone,
// injectable component the Connection Manager composes rather than owns.
package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wireclient/wireclient/internal/protocol"
)

// ErrTimeout is returned by AwaitReply when no reply arrives within the
// given timeout.
var ErrTimeout = errors.New("command: timed out waiting for reply")

// ErrNotRegistered is returned by AwaitReply when called with an ID that
// was never registered, or whose reply (or failure) was already delivered.
var ErrNotRegistered = errors.New("command: id not registered")

// ErrAlreadyRegistered is returned by Register when called twice with the
// same ID before it has been resolved.
var ErrAlreadyRegistered = errors.New("command: id already registered")

type pending struct {
	ch chan outcome
}

type outcome struct {
	reply protocol.Reply
	err   error
}

// Manager correlates command IDs to their eventual reply. It holds no
// reference to a transport: callers send the encoded command themselves
// and only use Manager to register the ID beforehand and await the result
// afterward.
type Manager struct {
	mu      sync.Mutex
	pending map[uint32]*pending
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{pending: make(map[uint32]*pending)}
}

// Register reserves bookkeeping for id before the corresponding command is
// sent, so a reply (or a disconnect) racing ahead of the caller reaching
// AwaitReply is never lost.
func (m *Manager) Register(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[id]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyRegistered, id)
	}
	m.pending[id] = &pending{ch: make(chan outcome, 1)}
	return nil
}

// AwaitReply blocks until the reply for id arrives, the timeout elapses, or
// ctx is cancelled. In every case the registration for id is cleaned up
// before AwaitReply returns: an ID is resolved exactly once.
func (m *Manager) AwaitReply(ctx context.Context, id uint32, timeout time.Duration) (protocol.Reply, error) {
	m.mu.Lock()
	p, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return protocol.Reply{}, fmt.Errorf("%w: %d", ErrNotRegistered, id)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-p.ch:
		return o.reply, o.err
	case <-timer.C:
		m.remove(id)
		return protocol.Reply{}, fmt.Errorf("%w: %d", ErrTimeout, id)
	case <-ctx.Done():
		m.remove(id)
		return protocol.Reply{}, ctx.Err()
	}
}

func (m *Manager) remove(id uint32) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// OnReply delivers an inbound reply to whichever goroutine is waiting on
// its ID. A reply for an ID nobody registered (already timed out, or
// simply unknown) is dropped.
func (m *Manager) OnReply(reply protocol.Reply) {
	m.mu.Lock()
	p, ok := m.pending[reply.ID]
	if ok {
		delete(m.pending, reply.ID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	p.ch <- outcome{reply: reply}
}

// OnDisconnect fails every currently pending command with err at once and
// clears the correlation table. Callers typically pass a
// CommandInterruptedError carrying the close code that caused the drop.
func (m *Manager) OnDisconnect(err error) {
	m.mu.Lock()
	drained := m.pending
	m.pending = make(map[uint32]*pending)
	m.mu.Unlock()

	for _, p := range drained {
		p.ch <- outcome{err: err}
	}
}

// Clear discards all pending registrations without resolving them. Used
// when a caller is certain nothing is still awaiting those IDs (e.g. an
// identity change that invalidates every in-flight command).
func (m *Manager) Clear() {
	m.mu.Lock()
	m.pending = make(map[uint32]*pending)
	m.mu.Unlock()
}

// Len reports the number of commands currently awaiting a reply, mainly
// for tests and diagnostics.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
