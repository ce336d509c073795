package ldap

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := newErr("Bind", KindTimeout, "took too long", nil)
	sentinel := &Error{Kind: KindTimeout}

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected errors.Is to match on Kind")
	}

	other := &Error{Kind: KindTransportFailed}
	if errors.Is(err, other) {
		t.Fatalf("expected errors.Is to not match a different Kind")
	}
}

func TestKindOf(t *testing.T) {
	err := invalidArgument("Search", "bad filter")
	kind, ok := KindOf(err)
	if !ok || kind != KindInvalidArgument {
		t.Fatalf("KindOf = (%v, %v), want (%v, true)", kind, ok, KindInvalidArgument)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("expected KindOf to report false for a non-*Error")
	}
}

func TestResultErrReturnsNilOnSuccess(t *testing.T) {
	r := &Result{ResultCode: ResultSuccess}
	if err := r.Err("Add"); err != nil {
		t.Fatalf("expected nil error on success, got %v", err)
	}
}

func TestResultErrWrapsDirectoryError(t *testing.T) {
	r := &Result{ResultCode: ResultNoSuchObject, MatchedDN: "dc=example,dc=org", DiagnosticMessage: "no such entry"}
	err := r.Err("Delete")
	if err == nil {
		t.Fatal("expected non-nil error")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindDirectoryError {
		t.Fatalf("expected KindDirectoryError, got (%v, %v)", kind, ok)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected errors.As to unwrap *Error")
	}
	if e.ResultCode != ResultNoSuchObject {
		t.Fatalf("ResultCode = %v, want %v", e.ResultCode, ResultNoSuchObject)
	}
	if e.MatchedDN != "dc=example,dc=org" {
		t.Fatalf("MatchedDN = %q", e.MatchedDN)
	}
}

func TestCompareResultCodesAreNotTreatedAsErrorsByIsSuccess(t *testing.T) {
	if ResultCompareTrue.IsSuccess() {
		t.Fatal("CompareTrue should not be IsSuccess; callers branch on it explicitly")
	}
	if ResultCompareFalse.IsSuccess() {
		t.Fatal("CompareFalse should not be IsSuccess")
	}
}
