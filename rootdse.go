package ldap

import "context"

// RootDSE is the decoded root DSA-specific entry (RFC 4512 §5.1), used to
// discover what a server supports before relying on it.
type RootDSE struct {
	NamingContexts         []string
	SupportedControl       []string
	SupportedExtension     []string
	SupportedSASLMechanisms []string
	SupportedLDAPVersion   []string
	SubschemaSubentry      []string
}

var rootDSEAttributes = []string{
	"namingContexts",
	"supportedControl",
	"supportedExtension",
	"supportedSASLMechanisms",
	"supportedLDAPVersion",
	"subschemaSubentry",
}

// ReadRootDSE performs the standard base-object, empty-filter search used to
// retrieve the root DSE (RFC 4512 §5.1: baseObject "", scope base,
// filter "(objectClass=*)").
func (c *Conn) ReadRootDSE(ctx context.Context) (*RootDSE, error) {
	cur, err := c.Search(ctx, &SearchRequest{
		BaseDN:     "",
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: rootDSEAttributes,
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var dse *RootDSE
	for cur.Next() {
		if e := cur.Entry(); e != nil {
			dse = &RootDSE{
				NamingContexts:          e.Attributes["namingContexts"],
				SupportedControl:        e.Attributes["supportedControl"],
				SupportedExtension:      e.Attributes["supportedExtension"],
				SupportedSASLMechanisms: e.Attributes["supportedSASLMechanisms"],
				SupportedLDAPVersion:    e.Attributes["supportedLDAPVersion"],
				SubschemaSubentry:       e.Attributes["subschemaSubentry"],
			}
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if res := cur.Result(); res != nil {
		if err := res.Err("ReadRootDSE"); err != nil {
			return nil, err
		}
	}
	if dse == nil {
		return nil, newErr("ReadRootDSE", KindDirectoryError, "server returned no root DSE entry", nil)
	}
	return dse, nil
}

// IsControlSupported reports whether oid appears in supportedControl.
func (d *RootDSE) IsControlSupported(oid string) bool { return containsString(d.SupportedControl, oid) }

// IsExtensionSupported reports whether oid appears in supportedExtension.
func (d *RootDSE) IsExtensionSupported(oid string) bool {
	return containsString(d.SupportedExtension, oid)
}

// IsSASLMechanismSupported reports whether name appears in
// supportedSASLMechanisms.
func (d *RootDSE) IsSASLMechanismSupported(name string) bool {
	return containsString(d.SupportedSASLMechanisms, name)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// ExtendedResponseFactory decodes the Value of an ExtendedResponseMsg with a
// known response Name (OID) into a richer type. Registering factories lets
// callers add interpretation for vendor-specific extended operations
// without the core depending on them.
type ExtendedResponseFactory func(value []byte) (any, error)

// ExtendedOIDRegistry maps extended-operation response OIDs to decoders.
// The core never hardcodes interpretation of any OID beyond StartTLS and
// Notice of Disconnect, which are structural to the protocol itself.
type ExtendedOIDRegistry struct {
	factories map[string]ExtendedResponseFactory
}

// NewExtendedOIDRegistry returns an empty registry.
func NewExtendedOIDRegistry() *ExtendedOIDRegistry {
	return &ExtendedOIDRegistry{factories: make(map[string]ExtendedResponseFactory)}
}

// Register installs factory for responseName, replacing any prior entry.
func (r *ExtendedOIDRegistry) Register(responseName string, factory ExtendedResponseFactory) {
	r.factories[responseName] = factory
}

// Decode looks up a factory for resp.Name and applies it, returning
// (nil, false) if no factory is registered.
func (r *ExtendedOIDRegistry) Decode(resp *ExtendedResponseMsg) (any, bool, error) {
	factory, ok := r.factories[resp.Name]
	if !ok {
		return nil, false, nil
	}
	v, err := factory(resp.Value)
	return v, true, err
}
