package ldap

import (
	"fmt"

	"github.com/Azure/go-ntlmssp"
)

// NTLMMechanism adapts go-ntlmssp's NEGOTIATE/CHALLENGE/AUTHENTICATE
// exchange into the generic saslMechanism contract. It is not part of the
// LDAPv3 SASL mechanism registry (RFC 4422) but several directory
// deployments (notably Active Directory over plain SASL binds rather than
// SPNEGO) negotiate it as mechanism name "NTLM" or "GSS-SPNEGO".
type NTLMMechanism struct {
	Domain   string
	Username string
	Password string

	step int
}

func (m *NTLMMechanism) Name() string { return "NTLM" }

func (m *NTLMMechanism) Step(challenge []byte) ([]byte, bool, error) {
	m.step++
	switch m.step {
	case 1:
		negotiate, err := ntlmssp.NewNegotiateMessage(m.Domain, "")
		if err != nil {
			return nil, false, fmt.Errorf("ldap: building NTLM negotiate message: %w", err)
		}
		return negotiate, false, nil
	case 2:
		if challenge == nil {
			return nil, false, fmt.Errorf("ldap: NTLM challenge missing from server response")
		}
		auth, err := ntlmssp.ProcessChallenge(challenge, m.Username, m.Password)
		if err != nil {
			return nil, false, fmt.Errorf("ldap: processing NTLM challenge: %w", err)
		}
		return auth, true, nil
	default:
		return nil, true, fmt.Errorf("ldap: NTLM mechanism already completed")
	}
}
