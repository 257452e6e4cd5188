package protocol

import "sync/atomic"

// cmdCounter backs NextCommandID. It is process-wide rather than
// per-connection: the Command Manager's correlation map is keyed by this
// value, and a process-wide monotonic counter means IDs never collide even
// across independently-constructed clients in the same process.
var cmdCounter uint32

// NextCommandID returns a fresh, monotonically increasing command ID.
// It never returns 0, which is reserved for fire-and-forget frames.
func NextCommandID() uint32 {
	return atomic.AddUint32(&cmdCounter, 1)
}

// ResetCommandIDCounter resets the process-wide counter to zero. It exists
// for tests that assert on specific ID values; production code never calls it.
func ResetCommandIDCounter() {
	atomic.StoreUint32(&cmdCounter, 0)
}
