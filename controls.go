package ldap

// Control is an optional per-request/response extension tagged by OID
// (RFC 4511 §4.1.11).
type Control struct {
	OID      string
	Critical bool
	Value    []byte
	HasValue bool
}

// Well-known OIDs the core depends on directly.
const (
	OIDStartTLS           = "1.3.6.1.4.1.1466.20037"
	OIDSubtreeDelete      = "1.2.840.113556.1.4.805"
	OIDNoticeOfDisconnect = "1.3.6.1.4.1.1466.20036"
	OIDManageDSAIT        = "2.16.840.1.113730.3.4.2"
)

// ManageDSAITControl returns the control that instructs the server not to
// return referrals for requests targeting the affected branch.
func ManageDSAITControl(critical bool) Control {
	return Control{OID: OIDManageDSAIT, Critical: critical}
}

// SubtreeDeleteControl returns the control that instructs the server to
// recursively delete an entire subtree.
func SubtreeDeleteControl(critical bool) Control {
	return Control{OID: OIDSubtreeDelete, Critical: critical}
}
