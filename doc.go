// Package ldap implements the core of an LDAPv3 client: a framed,
// multiplexed session to a single directory server with blocking and
// future-based call styles for Bind, Search, and the CRUD operations.
//
// The package owns connection lifecycle, the message-id-keyed pending
// request registry, the Bind state machines (simple, SASL, GSSAPI),
// StartTLS/TLS negotiation, and the Search streaming cursor. Low-level BER
// encoding is delegated to github.com/go-asn1-ber/asn1-ber; the schema
// object model, DN parsing, and LDIF are genuinely out of scope and appear
// here only as narrow interfaces a caller may implement.
package ldap
