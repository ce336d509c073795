package ldap

// sink is the per-message-id destination for decoded response PDUs. It comes
// in two shapes: single-shot (one response ends the exchange) and streaming
// (a bounded sequence of entries terminated by a SearchResultDone).
type sink interface {
	// deliver hands one decoded message to the sink. It returns true when
	// the message was terminal and the sink is now done (the registry
	// should remove the message id).
	deliver(msg *inboundMessage) bool
	// fail aborts the sink with err, used on connection loss, timeout, or
	// abandon.
	fail(err error)
}

// singleShotSink completes a single request/response exchange (Bind, Add,
// Delete, Modify, ModifyDN, Compare, Extended, StartTLS).
type singleShotSink struct {
	done chan *singleShotResult
}

type singleShotResult struct {
	msg *inboundMessage
	err error
}

func newSingleShotSink() *singleShotSink {
	return &singleShotSink{done: make(chan *singleShotResult, 1)}
}

func (s *singleShotSink) deliver(msg *inboundMessage) bool {
	s.done <- &singleShotResult{msg: msg}
	return true
}

func (s *singleShotSink) fail(err error) {
	select {
	case s.done <- &singleShotResult{err: err}:
	default:
	}
}

// streamSink fans SearchResultEntry/SearchResultReference/
// IntermediateResponse messages into a bounded channel, closing it when a
// SearchResultDone (or an error) arrives.
type streamSink struct {
	entries chan *streamItem
}

type streamItem struct {
	msg *inboundMessage
	err error
}

func newStreamSink(bufSize int) *streamSink {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &streamSink{entries: make(chan *streamItem, bufSize)}
}

func (s *streamSink) deliver(msg *inboundMessage) bool {
	switch msg.Kind {
	case kindSearchResultDone:
		s.entries <- &streamItem{msg: msg}
		close(s.entries)
		return true
	default:
		s.entries <- &streamItem{msg: msg}
		return false
	}
}

func (s *streamSink) fail(err error) {
	defer func() {
		// fail may race a concurrent deliver-triggered close; recover
		// absorbs the send on, or second close of, an already-closed channel.
		recover()
	}()
	select {
	case s.entries <- &streamItem{err: err}:
	default:
		// Buffer full: the error item is dropped rather than blocking the
		// caller; the consumer drains what is buffered, then sees the close.
	}
	close(s.entries)
}
