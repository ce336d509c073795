package ldap

import "testing"

func TestStreamSinkDeliversEntriesThenCloses(t *testing.T) {
	s := newStreamSink(4)

	done := s.deliver(&inboundMessage{Kind: kindSearchResultEntry, Entry: &SearchResultEntryMsg{DN: "uid=a"}})
	if done {
		t.Fatal("a SearchResultEntry should not terminate the stream")
	}

	done = s.deliver(&inboundMessage{Kind: kindSearchResultDone, Result: &Result{ResultCode: ResultSuccess}})
	if !done {
		t.Fatal("a SearchResultDone should terminate the stream")
	}

	item := <-s.entries
	if item.msg.Kind != kindSearchResultEntry {
		t.Fatalf("expected entry first, got kind %v", item.msg.Kind)
	}

	item = <-s.entries
	if item.msg.Kind != kindSearchResultDone {
		t.Fatalf("expected done second, got kind %v", item.msg.Kind)
	}

	if _, ok := <-s.entries; ok {
		t.Fatal("channel should be closed after SearchResultDone")
	}
}

func TestStreamSinkFailClosesChannel(t *testing.T) {
	s := newStreamSink(1)
	s.fail(errTestTeardown)

	item := <-s.entries
	if item.err != errTestTeardown {
		t.Fatalf("expected the failure error, got %v", item.err)
	}
	if _, ok := <-s.entries; ok {
		t.Fatal("channel should be closed after fail")
	}
}

var errTestTeardown = newErr("test", KindCancelled, "teardown", nil)
