package ldap

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way callers are expected to branch on it.
// It is not a type hierarchy; it is a tag carried by Error.
type Kind int

const (
	// KindInvalidArgument means the caller's contract was violated locally;
	// the operation never went on the wire.
	KindInvalidArgument Kind = iota
	// KindTransportFailed means an I/O error, peer disconnect, or write
	// failure occurred.
	KindTransportFailed
	// KindTimeout means the effective deadline expired while awaiting a
	// terminal response.
	KindTimeout
	// KindTLSHandshakeFailed means TLS negotiation did not complete.
	KindTLSHandshakeFailed
	// KindAuthenticationFailed means a SASL mechanism step failed or a SASL
	// mechanism could not be constructed. A Bind or SASLBind that the server
	// answers with a non-success result code is reported as
	// KindDirectoryError carrying that code, not under this Kind.
	KindAuthenticationFailed
	// KindProtocolError means an unexpected response kind arrived for the
	// given operation, or a SASL mechanism signalled success while still
	// producing a response.
	KindProtocolError
	// KindDirectoryError wraps a structured LDAPResult whose result code is
	// not success. Result.Err also reports referral and
	// compareTrue/compareFalse codes under this Kind.
	KindDirectoryError
	// KindCancelled means local cancellation or Abandon terminated the call.
	KindCancelled
	// KindNotSupported means the server did not advertise a feature the
	// caller asked for (e.g. the subtree-delete control).
	KindNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindTransportFailed:
		return "TransportFailed"
	case KindTimeout:
		return "Timeout"
	case KindTLSHandshakeFailed:
		return "TlsHandshakeFailed"
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindProtocolError:
		return "ProtocolError"
	case KindDirectoryError:
		return "DirectoryError"
	case KindCancelled:
		return "Cancelled"
	case KindNotSupported:
		return "NotSupported"
	default:
		return "Unknown"
	}
}

// Error is the single error type the package raises. Non-success LDAP
// result codes are not raised as errors by the operation façade; see
// Result.Err for the opt-in exception-style helper.
type Error struct {
	Kind       Kind
	Op         string // operation that failed, e.g. "Search", "Bind"
	Message    string
	Cause      error
	ResultCode ResultCode // populated for KindDirectoryError
	MatchedDN  string
	Referrals  []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ldap: %s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("ldap: %s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, &Error{Kind: KindTimeout}) matches any *Error of that Kind;
// KindOf extracts the Kind directly for comparison against the Kind values.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(op string, kind Kind, msg string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Message: msg, Cause: cause}
}

func invalidArgument(op, msg string) *Error {
	return newErr(op, KindInvalidArgument, msg, nil)
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// directoryError builds a KindDirectoryError from a decoded LDAPResult.
func directoryError(op string, res *Result) *Error {
	return &Error{
		Op:         op,
		Kind:       KindDirectoryError,
		Message:    res.DiagnosticMessage,
		ResultCode: res.ResultCode,
		MatchedDN:  res.MatchedDN,
		Referrals:  res.Referrals,
	}
}
