// Package ldaptest implements a minimal in-process LDAPv3 responder for
// exercising the ldap package's Conn against real wire bytes without a real
// directory. It speaks just enough of RFC 4511 to drive the end-to-end
// scenarios in the package's tests: Bind, Search, Add, Delete, Modify,
// Compare, Extended (including StartTLS), and Unbind.
package ldaptest

import (
	"crypto/tls"
	"net"
	"sync"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Application tags, duplicated from the ldap package's unexported constants
// since this is a standalone wire-level responder with no dependency on the
// package under test.
const (
	appBindRequest           ber.Tag = 0
	appBindResponse          ber.Tag = 1
	appUnbindRequest         ber.Tag = 2
	appSearchRequest         ber.Tag = 3
	appSearchResultEntry     ber.Tag = 4
	appSearchResultDone      ber.Tag = 5
	appModifyRequest         ber.Tag = 6
	appModifyResponse        ber.Tag = 7
	appAddRequest            ber.Tag = 8
	appAddResponse           ber.Tag = 9
	appDelRequest            ber.Tag = 10
	appDelResponse           ber.Tag = 11
	appModifyDNRequest       ber.Tag = 12
	appModifyDNResponse      ber.Tag = 13
	appCompareRequest        ber.Tag = 14
	appCompareResponse       ber.Tag = 15
	appAbandonRequest        ber.Tag = 16
	appExtendedRequest       ber.Tag = 23
	appExtendedResponse      ber.Tag = 24
)

const oidStartTLS = "1.3.6.1.4.1.1466.20037"

// Entry is a canned directory entry the server can return from a Search.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// Handler customizes how the server answers one operation. A nil field
// falls back to the server's builtin default for that operation.
type Handler struct {
	// Bind returns the result code for a simple bind with the given name
	// and password. It is not called for an anonymous bind (empty name and
	// password), which the server always grants. The default accepts any
	// bind whose password is "secret".
	Bind func(name, password string) int64

	// Search returns the entries for baseDN. The request's filter is not
	// decoded, so filter is always "". The server always reports success;
	// a nil field returns no entries.
	Search func(baseDN, filter string) []Entry

	// Delete returns the result code for a Delete targeting dn, given the
	// OIDs of any controls attached to the request. A nil field reports
	// success unconditionally.
	Delete func(dn string, controlOIDs []string) int64

	// ModifyDN returns the result code for a rename/move/moveAndRename
	// request. A nil field reports success unconditionally.
	ModifyDN func(dn, newRDN string, deleteOldRDN bool, newSuperior string) int64
}

// Server is a fake LDAP listener that serves each accepted connection in
// its own goroutine.
type Server struct {
	Handler Handler
	TLSConfig *tls.Config // used to complete StartTLS when requested

	ln net.Listener
	wg sync.WaitGroup
}

// Start begins listening on loopback and accepting connections in the
// background. Call Addr to discover the bound port and Stop to shut down.
func Start(h Handler) (*Server, error) {
	return StartTLS(h, nil)
}

// StartTLS is like Start but additionally makes the server answer a
// StartTLS extended request with tlsConfig, completing a server-side TLS
// handshake over the accepted connection. A nil tlsConfig behaves exactly
// like Start (StartTLS requests get protocolError).
func StartTLS(h Handler, tlsConfig *tls.Config) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{Handler: h, TLSConfig: tlsConfig, ln: ln}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the listener's address, e.g. "127.0.0.1:54321".
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Stop closes the listener and waits for the accept loop to exit.
func (s *Server) Stop() {
	s.ln.Close()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	for {
		packet, err := ber.ReadPacket(conn)
		if err != nil {
			return
		}
		if len(packet.Children) < 2 {
			return
		}
		msgID, _ := packet.Children[0].Value.(int64)
		op := packet.Children[1]

		switch op.Tag {
		case appBindRequest:
			s.handleBind(conn, msgID, op)
		case appUnbindRequest:
			return
		case appSearchRequest:
			s.handleSearch(conn, msgID, op)
		case appAddRequest:
			s.writeResult(conn, msgID, appAddResponse, 0, "")
		case appDelRequest:
			s.handleDelete(conn, msgID, op, packet)
		case appModifyRequest:
			s.writeResult(conn, msgID, appModifyResponse, 0, "")
		case appModifyDNRequest:
			s.handleModifyDN(conn, msgID, op)
		case appCompareRequest:
			s.writeResult(conn, msgID, appCompareResponse, 6, "") // compareTrue
		case appAbandonRequest:
			// no response per RFC 4511 §4.11
		case appExtendedRequest:
			newConn := s.handleExtended(conn, msgID, op)
			if newConn != nil {
				conn = newConn
			}
		default:
			return
		}
	}
}

func (s *Server) handleBind(conn net.Conn, msgID int64, op *ber.Packet) {
	var name, password string
	if len(op.Children) > 1 {
		name, _ = op.Children[1].Value.(string)
	}
	if len(op.Children) > 2 {
		if v, ok := op.Children[2].Value.(string); ok {
			password = v
		}
	}

	code := int64(49) // invalidCredentials
	if name == "" && password == "" {
		code = 0
	} else if s.Handler.Bind != nil {
		code = s.Handler.Bind(name, password)
	} else if password == "secret" {
		code = 0
	}
	s.writeResult(conn, msgID, appBindResponse, code, "")
}

func (s *Server) handleDelete(conn net.Conn, msgID int64, op, envelope *ber.Packet) {
	dn, _ := op.Value.(string)

	var oids []string
	if len(envelope.Children) > 2 {
		if ctrls := envelope.Children[len(envelope.Children)-1]; ctrls.ClassType == ber.ClassContext && ctrls.Tag == 0 {
			for _, c := range ctrls.Children {
				if len(c.Children) > 0 {
					if oid, ok := c.Children[0].Value.(string); ok {
						oids = append(oids, oid)
					}
				}
			}
		}
	}

	code := int64(0)
	if s.Handler.Delete != nil {
		code = s.Handler.Delete(dn, oids)
	}
	s.writeResult(conn, msgID, appDelResponse, code, "")
}

func (s *Server) handleModifyDN(conn net.Conn, msgID int64, op *ber.Packet) {
	var dn, newRDN, newSuperior string
	var deleteOldRDN bool
	if len(op.Children) > 0 {
		dn, _ = op.Children[0].Value.(string)
	}
	if len(op.Children) > 1 {
		newRDN, _ = op.Children[1].Value.(string)
	}
	if len(op.Children) > 2 {
		deleteOldRDN, _ = op.Children[2].Value.(bool)
	}
	if len(op.Children) > 3 {
		newSuperior, _ = op.Children[3].Value.(string)
	}

	code := int64(0)
	if s.Handler.ModifyDN != nil {
		code = s.Handler.ModifyDN(dn, newRDN, deleteOldRDN, newSuperior)
	}
	s.writeResult(conn, msgID, appModifyDNResponse, code, "")
}

func (s *Server) handleSearch(conn net.Conn, msgID int64, op *ber.Packet) {
	var baseDN string
	if len(op.Children) > 0 {
		baseDN, _ = op.Children[0].Value.(string)
	}

	var entries []Entry
	if s.Handler.Search != nil {
		entries = s.Handler.Search(baseDN, "")
	}

	for _, e := range entries {
		env := envelope(msgID)
		entryOp := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appSearchResultEntry, nil, "Search Result Entry")
		entryOp.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, e.DN, "DN"))
		attrs := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attributes")
		for typ, vals := range e.Attributes {
			a := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attribute")
			a.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, typ, "Type"))
			set := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "Values")
			for _, v := range vals {
				set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "Value"))
			}
			a.AppendChild(set)
			attrs.AppendChild(a)
		}
		entryOp.AppendChild(attrs)
		env.AppendChild(entryOp)
		conn.Write(env.Bytes())
	}

	s.writeResult(conn, msgID, appSearchResultDone, 0, "")
}

// handleExtended answers an ExtendedRequest. For StartTLS it replies success
// and then wraps conn in a server-side TLS handshake, returning the new
// *tls.Conn so the caller's read loop continues over the upgraded pipe.
func (s *Server) handleExtended(conn net.Conn, msgID int64, op *ber.Packet) net.Conn {
	var name string
	for _, c := range op.Children {
		if c.ClassType == ber.ClassContext && c.Tag == 0 {
			name, _ = c.Value.(string)
		}
	}

	if name == oidStartTLS && s.TLSConfig != nil {
		s.writeExtendedResult(conn, msgID, 0, oidStartTLS)
		tlsConn := tls.Server(conn, s.TLSConfig)
		if err := tlsConn.Handshake(); err != nil {
			return nil
		}
		return tlsConn
	}

	s.writeExtendedResult(conn, msgID, 2, "") // protocolError for unknown OIDs
	return nil
}

func (s *Server) writeResult(conn net.Conn, msgID int64, tag ber.Tag, code int64, diag string) {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tag, nil, "Response")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, code, "Result Code"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "Matched DN"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, diag, "Diagnostic Message"))
	env.AppendChild(op)
	conn.Write(env.Bytes())
}

func (s *Server) writeExtendedResult(conn net.Conn, msgID int64, code int64, responseName string) {
	env := envelope(msgID)
	op := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appExtendedResponse, nil, "Extended Response")
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, code, "Result Code"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "Matched DN"))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "Diagnostic Message"))
	if responseName != "" {
		op.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 10, responseName, "Response Name"))
	}
	env.AppendChild(op)
	conn.Write(env.Bytes())
}

func envelope(msgID int64) *ber.Packet {
	p := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAP Message")
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, msgID, "MessageID"))
	return p
}
