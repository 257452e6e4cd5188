// Package reachability implements the Network Reachability Gate: a cheap,
// scheduler-driven probe the Connection Manager consults before retrying a
// reconnect, so a host with no network path doesn't spin through its full
// backoff curve for nothing. Its shape — a small polled capability
// interface plus a default net.Dialer probe — follows the same
// injectable-interface idiom the rest of the package uses for Transport
// and Scheduler.
package reachability

import (
	"context"
	"net"
	"time"
)

// Gate reports whether the host currently appears to have a usable
// network path. Implementations must not block for long — IsReachable is
// called from the Connection Manager's reconnect path and is expected to
// return within its own timeout budget.
type Gate interface {
	IsReachable(ctx context.Context) bool
}

// DialGate is the default Gate: it attempts a TCP dial to a well-known
// address and reports success within Timeout.
type DialGate struct {
	// ProbeAddr is the host:port dialed to test reachability. Defaults to
	// a public DNS resolver's HTTPS port, which is reachable from
	// virtually any network that has a path to the internet at all.
	ProbeAddr string
	// Timeout bounds how long a single probe may take.
	Timeout time.Duration
}

// NewDialGate returns a DialGate. An empty probeAddr falls back to
// "1.1.1.1:443".
func NewDialGate(probeAddr string) *DialGate {
	if probeAddr == "" {
		probeAddr = "1.1.1.1:443"
	}
	return &DialGate{ProbeAddr: probeAddr, Timeout: 3 * time.Second}
}

func (g *DialGate) IsReachable(ctx context.Context) bool {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := net.Dialer{}
	conn, err := d.DialContext(dialCtx, "tcp", g.ProbeAddr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// AlwaysReachable is a Gate for hosts that manage their own connectivity
// checks upstream (or tests that want to disable gating entirely).
type AlwaysReachable struct{}

func (AlwaysReachable) IsReachable(ctx context.Context) bool { return true }
