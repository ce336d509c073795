package ldap

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// PlainMechanism implements SASL PLAIN (RFC 4616): a single message
// carrying authzid\0authcid\0passwd.
type PlainMechanism struct {
	AuthzID  string
	Identity string
	Password string
	stepped  bool
}

func (m *PlainMechanism) Name() string { return "PLAIN" }

func (m *PlainMechanism) Step(challenge []byte) ([]byte, bool, error) {
	if m.stepped {
		return nil, true, fmt.Errorf("ldap: PLAIN mechanism already completed")
	}
	m.stepped = true
	msg := strings.Join([]string{m.AuthzID, m.Identity, m.Password}, "\x00")
	return []byte(msg), true, nil
}

// ExternalMechanism implements SASL EXTERNAL (RFC 4422 appendix A): identity
// is established by a lower layer (a client TLS certificate), so the
// initial response is empty or an explicit authzid.
type ExternalMechanism struct {
	AuthzID string
	stepped bool
}

func (m *ExternalMechanism) Name() string { return "EXTERNAL" }

func (m *ExternalMechanism) Step(challenge []byte) ([]byte, bool, error) {
	if m.stepped {
		return nil, true, fmt.Errorf("ldap: EXTERNAL mechanism already completed")
	}
	m.stepped = true
	return []byte(m.AuthzID), true, nil
}

// CRAMMD5Mechanism implements SASL CRAM-MD5 (RFC 2195): the server sends a
// challenge string, the client responds with "identity hex(hmac-md5)".
type CRAMMD5Mechanism struct {
	Identity string
	Password string
	stepped  bool
}

func (m *CRAMMD5Mechanism) Name() string { return "CRAM-MD5" }

func (m *CRAMMD5Mechanism) Step(challenge []byte) ([]byte, bool, error) {
	if m.stepped {
		return nil, true, fmt.Errorf("ldap: CRAM-MD5 mechanism already completed")
	}
	if challenge == nil {
		// the server must send a challenge before the client responds.
		return nil, false, nil
	}
	m.stepped = true
	mac := hmac.New(md5.New, []byte(m.Password))
	mac.Write(challenge)
	digest := hex.EncodeToString(mac.Sum(nil))
	return []byte(m.Identity + " " + digest), true, nil
}

// DigestMD5Mechanism implements a minimal SASL DIGEST-MD5 (RFC 2831)
// initiator: it parses the server's directive-pair challenge, computes the
// response per RFC 2831 §2.1.2.1, and does not itself negotiate a security
// layer (qop=auth only); a negotiated qop=auth-conf/auth-int security
// layer is not implemented.
type DigestMD5Mechanism struct {
	Identity string
	Password string
	Realm    string
	DigestURI string // e.g. "ldap/directory.example.com"

	stepCount int
	nonce     string
	cnonce    string
}

func (m *DigestMD5Mechanism) Name() string { return "DIGEST-MD5" }

func (m *DigestMD5Mechanism) Step(challenge []byte) ([]byte, bool, error) {
	m.stepCount++
	switch m.stepCount {
	case 1:
		if challenge == nil {
			// No initial response: the next call, carrying the server's
			// challenge, is still step 1.
			m.stepCount = 0
			return nil, false, nil
		}
		directives := parseDigestDirectives(string(challenge))
		m.nonce = directives["nonce"]
		if m.Realm == "" {
			m.Realm = directives["realm"]
		}
		m.cnonce = newClientNonce()

		response := digestMD5Response(m.Identity, m.Realm, m.Password, m.nonce, m.cnonce, m.DigestURI, "00000001")
		resp := fmt.Sprintf(
			`username="%s",realm="%s",nonce="%s",cnonce="%s",nc=00000001,qop=auth,digest-uri="%s",response=%s,charset=utf-8`,
			m.Identity, m.Realm, m.nonce, m.cnonce, m.DigestURI, response)
		return []byte(resp), false, nil
	case 2:
		// rspauth verification step: the server's response-authentication
		// message requires no further client data.
		return []byte{}, true, nil
	default:
		return nil, true, fmt.Errorf("ldap: DIGEST-MD5 mechanism already completed")
	}
}

func parseDigestDirectives(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = strings.Trim(kv[1], `"`)
	}
	return out
}

func newClientNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// digestMD5Response computes RFC 2831 §2.1.2.1's response-value for qop=auth.
func digestMD5Response(username, realm, password, nonce, cnonce, digestURI, nc string) string {
	h := func(b []byte) []byte { sum := md5.Sum(b); return sum[:] }
	hexEnc := func(b []byte) string { return hex.EncodeToString(b) }

	a1 := h([]byte(username + ":" + realm + ":" + password))
	a1Full := append(append(a1, ':'), []byte(nonce+":"+cnonce)...)
	ha1 := hexEnc(h(a1Full))

	a2 := "AUTHENTICATE:" + digestURI
	ha2 := hexEnc(h([]byte(a2)))

	kd := ha1 + ":" + nonce + ":" + nc + ":" + cnonce + ":auth:" + ha2
	return hexEnc(h([]byte(kd)))
}
