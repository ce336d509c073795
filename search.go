package ldap

import "context"

// SearchCursor streams SearchResultEntry/SearchResultReference messages for
// one in-flight Search, terminated by a SearchResultDone. It is lazy,
// finite, and not restartable: Next must be called until it returns false,
// after which Err reports any failure and Result reports the terminal
// LDAPResult.
type SearchCursor struct {
	conn      *Conn
	messageID uint32
	stream    *streamSink

	entry     *SearchResultEntryMsg
	reference *SearchResultReferenceMsg
	result    *Result
	err       error
	ctx       context.Context
	cancel    context.CancelFunc
}

// Next advances the cursor. It returns false when the stream is exhausted
// (check Err for failure) or the search completed successfully (check
// Result).
func (cur *SearchCursor) Next() bool {
	cur.entry = nil
	cur.reference = nil

	select {
	case item, ok := <-cur.stream.entries:
		if !ok {
			return false
		}
		if item.err != nil {
			cur.err = item.err
			return false
		}
		switch item.msg.Kind {
		case kindSearchResultEntry:
			cur.entry = item.msg.Entry
			return true
		case kindSearchResultReference:
			cur.reference = item.msg.Reference
			return true
		case kindSearchResultDone:
			cur.result = item.msg.Result
			return false
		default:
			cur.err = newErr("Search", KindProtocolError, "unexpected message kind in search stream", nil)
			return false
		}
	case <-cur.ctx.Done():
		_ = cur.conn.abandon(cur.messageID)
		cur.err = newErr("Search", KindTimeout, "search timed out", cur.ctx.Err())
		return false
	}
}

// Entry returns the entry produced by the most recent Next call that
// returned an entry, or nil otherwise.
func (cur *SearchCursor) Entry() *SearchResultEntryMsg { return cur.entry }

// Reference returns the continuation reference produced by the most recent
// Next call that returned one, or nil otherwise.
func (cur *SearchCursor) Reference() *SearchResultReferenceMsg { return cur.reference }

// Result returns the terminal LDAPResult once the stream is exhausted
// successfully, or nil if it ended in error or is still in progress.
func (cur *SearchCursor) Result() *Result { return cur.result }

// Err returns the first error encountered, or nil.
func (cur *SearchCursor) Err() error { return cur.err }

// Close abandons the search if still in flight and releases cursor
// resources. Safe to call multiple times.
func (cur *SearchCursor) Close() {
	cur.cancel()
	if cur.result == nil && cur.err == nil {
		_ = cur.conn.abandon(cur.messageID)
	}
}

// Search issues a SearchRequest and returns a lazily-consumed SearchCursor.
// The search is bounded by ReadOperationTimeout when set, otherwise by
// Config.Timeout; a deadline or cancellation carried by ctx also ends it,
// whichever comes first.
func (c *Conn) Search(ctx context.Context, req *SearchRequest) (*SearchCursor, error) {
	if req == nil {
		return nil, invalidArgument("Search", "request must not be nil")
	}
	// Validate the filter up front so a malformed filter string fails
	// before a message id is burned or anything is written to the wire.
	if _, err := compileFilter(req.Filter); err != nil {
		return nil, invalidArgument("Search", "invalid filter: "+err.Error())
	}

	deadline := effectiveDeadline(0, c.cfg.ReadOperationTimeout, c.cfg.Timeout)
	opCtx, cancel := contextForDeadline(ctx, deadline)

	stream := newStreamSink(c.cfg.SearchChannelSize)
	id, err := c.doRequest(func(msgID uint32) []byte {
		b, _ := c.cfg.Codec.EncodeSearchRequest(msgID, req)
		return b
	}, stream)
	if err != nil {
		cancel()
		return nil, err
	}

	return &SearchCursor{
		conn:      c,
		messageID: id,
		stream:    stream,
		ctx:       opCtx,
		cancel:    cancel,
	}, nil
}

// Lookup performs a base-scope search for dn and returns its single entry.
// It fails with KindDirectoryError if dn does not exist.
func (c *Conn) Lookup(ctx context.Context, dn string, attributes []string, controls ...Control) (*SearchResultEntryMsg, error) {
	if dn == "" {
		return nil, invalidArgument("Lookup", "DN must not be empty")
	}
	cur, err := c.Search(ctx, &SearchRequest{
		BaseDN:     dn,
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: attributes,
		Controls:   controls,
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var entry *SearchResultEntryMsg
	for cur.Next() {
		if e := cur.Entry(); e != nil {
			entry = e
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if res := cur.Result(); res != nil {
		if err := res.Err("Lookup"); err != nil {
			return nil, err
		}
	}
	if entry == nil {
		return nil, newErr("Lookup", KindDirectoryError, "no such object", nil)
	}
	return entry, nil
}
