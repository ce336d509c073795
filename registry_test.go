package ldap

import (
	"errors"
	"testing"
)

func TestPendingRegistryDeliverRoutesToSink(t *testing.T) {
	r := newPendingRegistry()
	s := newSingleShotSink()
	if !r.register(1, s) {
		t.Fatal("register should succeed for a fresh id")
	}

	msg := &inboundMessage{MessageID: 1, Kind: kindBindResponse, Result: &Result{ResultCode: ResultSuccess}}
	if !r.deliver(msg) {
		t.Fatal("deliver should report true for a registered id")
	}

	select {
	case res := <-s.done:
		if res.msg != msg {
			t.Fatal("sink received a different message than delivered")
		}
	default:
		t.Fatal("expected the sink to have received the message")
	}
}

func TestPendingRegistryDeliverUnknownID(t *testing.T) {
	r := newPendingRegistry()
	msg := &inboundMessage{MessageID: 42, Kind: kindBindResponse}
	if r.deliver(msg) {
		t.Fatal("deliver should report false for an unregistered id")
	}
}

func TestPendingRegistryRegisterRejectsDuplicate(t *testing.T) {
	r := newPendingRegistry()
	s1, s2 := newSingleShotSink(), newSingleShotSink()
	if !r.register(5, s1) {
		t.Fatal("first register should succeed")
	}
	if r.register(5, s2) {
		t.Fatal("second register for the same id should fail")
	}
}

func TestPendingRegistryRemove(t *testing.T) {
	r := newPendingRegistry()
	s := newSingleShotSink()
	r.register(7, s)

	removed := r.remove(7)
	if removed != sink(s) {
		t.Fatal("remove should return the registered sink")
	}
	if r.deliver(&inboundMessage{MessageID: 7}) {
		t.Fatal("deliver should report false after remove")
	}
}

func TestPendingRegistryFailAll(t *testing.T) {
	r := newPendingRegistry()
	s1, s2 := newSingleShotSink(), newSingleShotSink()
	r.register(1, s1)
	r.register(2, s2)

	wantErr := errors.New("connection lost")
	r.failAll(wantErr)

	for _, s := range []*singleShotSink{s1, s2} {
		select {
		case res := <-s.done:
			if !errors.Is(res.err, wantErr) {
				t.Fatalf("expected wrapped err, got %v", res.err)
			}
		default:
			t.Fatal("expected sink to be failed")
		}
	}

	if r.deliver(&inboundMessage{MessageID: 1}) {
		t.Fatal("registry should be empty after failAll")
	}
}
