package ldap

import (
	"sync"
)

// pendingRegistry tracks in-flight message ids and their sinks. It is
// grounded on rumere-ldap's conn.go chanResults map: a single mutex-guarded
// map rather than sync.Map, because the read:write ratio here is roughly
// even (every request registers once and is looked up at most a handful of
// times) and sync.Map only pays off when reads dominate writes by a wide
// margin.
type pendingRegistry struct {
	mu      sync.Mutex
	pending map[uint32]sink
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{pending: make(map[uint32]sink)}
}

// register adds a sink for messageID. It returns false if the id is already
// in use (should never happen given messageIDAllocator's monotonic counter).
func (r *pendingRegistry) register(messageID uint32, s sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[messageID]; exists {
		return false
	}
	r.pending[messageID] = s
	return true
}

// deliver routes msg to its sink. It returns false if no sink is registered
// for the message id (a stray or already-abandoned response). The sink's
// own deliver is called with r.mu released: streamSink.deliver can block on
// a full channel, and holding the lock across that send would deadlock
// against a concurrent remove (e.g. from Abandon or cursor Close) that needs
// the same lock to drain the other side.
func (r *pendingRegistry) deliver(msg *inboundMessage) bool {
	r.mu.Lock()
	s, ok := r.pending[msg.MessageID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	if s.deliver(msg) {
		r.mu.Lock()
		delete(r.pending, msg.MessageID)
		r.mu.Unlock()
	}
	return true
}

// remove unregisters messageID (used by Abandon and by search cursor
// cancellation) and returns the sink removed, if any.
func (r *pendingRegistry) remove(messageID uint32) sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.pending[messageID]
	delete(r.pending, messageID)
	return s
}

// failAll aborts every pending sink with err and clears the registry. Called
// when the reader goroutine observes the connection die.
func (r *pendingRegistry) failAll(err error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[uint32]sink)
	r.mu.Unlock()

	for _, s := range pending {
		s.fail(err)
	}
}
