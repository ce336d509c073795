package ldap

// Kind of a decoded response PDU, used to dispatch in the inbound handler
// and to tag response sinks.
type responseKind int

const (
	kindBindResponse responseKind = iota
	kindAddResponse
	kindDeleteResponse
	kindModifyResponse
	kindModifyDNResponse
	kindCompareResponse
	kindExtendedResponse
	kindSearchResultEntry
	kindSearchResultReference
	kindSearchResultDone
	kindIntermediateResponse
	kindNoticeOfDisconnect
)

// Result is the common LDAPResult shape carried by every terminal response
// (RFC 4511 §4.1.9).
type Result struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
	Referrals         []string
	Controls          []Control
}

// Err returns a *Error of KindDirectoryError for any ResultCode other than
// ResultSuccess, and nil otherwise; CompareTrue, CompareFalse and Referral
// are reported as errors too. Non-success result codes are not raised
// automatically;
// callers opt in by calling Err.
func (r *Result) Err(op string) error {
	if r == nil || r.ResultCode.IsSuccess() {
		return nil
	}
	return directoryError(op, r)
}

// Entry represents an entry to be added, or one returned from a search.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// SearchResultEntryMsg is a single entry delivered by a Search stream.
type SearchResultEntryMsg struct {
	DN         string
	Attributes map[string][]string
	Controls   []Control
}

// SearchResultReferenceMsg carries continuation referral URLs.
type SearchResultReferenceMsg struct {
	URLs []string
}

// IntermediateResponseMsg carries an unsolicited intermediate response
// (RFC 4511 §4.13), keyed by the response name OID.
type IntermediateResponseMsg struct {
	Name  string
	Value []byte
}

// ExtendedResponseMsg is the decoded payload of an ExtendedResponse,
// before any OID-specific factory has had a chance to interpret it.
type ExtendedResponseMsg struct {
	Result
	Name  string
	Value []byte
}

// ModOp names the kind of change a Modification applies.
type ModOp int

const (
	ModAdd ModOp = iota
	ModDelete
	ModReplace
	ModIncrement
)

// Modification pairs an operation with an attribute change for Modify.
type Modification struct {
	Op        ModOp
	Attribute string
	Values    []string
}

// SearchScope selects the portion of the tree a Search covers.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

// DerefAliases selects when the server dereferences alias entries.
type DerefAliases int

const (
	NeverDerefAliases DerefAliases = iota
	DerefInSearching
	DerefFindingBaseObj
	DerefAlways
)

// SearchRequest describes a Search operation (RFC 4511 §4.5.1).
type SearchRequest struct {
	BaseDN       string
	Scope        SearchScope
	DerefAliases DerefAliases
	SizeLimit    int
	TimeLimit    int // seconds; server-side limit, independent of the client's own deadline
	TypesOnly    bool
	Filter       string
	Attributes   []string
	Controls     []Control

	// IgnoreReferrals, when true, attaches a ManageDSAIT control so the
	// server does not return referrals for this request.
	IgnoreReferrals bool
}

// AddRequest describes an Add operation.
type AddRequest struct {
	Entry    Entry
	Controls []Control
}

// DeleteRequest describes a Delete operation.
type DeleteRequest struct {
	DN       string
	Controls []Control
}

// ModifyRequest describes a Modify operation.
type ModifyRequest struct {
	DN            string
	Modifications []Modification
	Controls      []Control
}

// ModifyDNRequest describes rename/move/moveAndRename.
type ModifyDNRequest struct {
	DN           string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string // empty means "keep same superior"
	Controls     []Control
}

// CompareRequest describes a Compare operation.
type CompareRequest struct {
	DN        string
	Attribute string
	Value     string
	Controls  []Control
}

// ExtendedRequest describes an Extended operation.
type ExtendedRequest struct {
	Name     string // request OID
	Value    []byte
	HasValue bool
	Controls []Control
}
