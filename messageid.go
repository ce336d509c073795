package ldap

import "sync/atomic"

// messageIDAllocator is a monotonically increasing 32-bit counter, reset on
// session open: message ids are strictly increasing within a session and
// reset to 0 at each connect.
type messageIDAllocator struct {
	next atomic.Uint32
}

// reset returns the counter to its initial state, called from connect().
func (a *messageIDAllocator) reset() { a.next.Store(0) }

// allocate returns the next message id, starting at 1 (0 is reserved for
// unsolicited notifications such as NoticeOfDisconnect, per RFC 4511 §4.4).
func (a *messageIDAllocator) allocate() uint32 {
	return a.next.Add(1)
}
