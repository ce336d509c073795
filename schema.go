package ldap

import "context"

// SchemaEntry is the raw subschema subentry content (RFC 4512 §4.1):
// attributeTypes and objectClasses description strings, left undecoded for
// a SchemaLoader implementation to parse.
type SchemaEntry struct {
	DN             string
	AttributeTypes []string
	ObjectClasses  []string
}

var schemaAttributes = []string{"attributeTypes", "objectClasses"}

// LoadSchema discovers the server's subschemaSubentry via RootDSE and
// retrieves its attributeTypes/objectClasses definitions. The raw result is
// handed to whatever SchemaLoader the caller maintains.
func (c *Conn) LoadSchema(ctx context.Context) (*SchemaEntry, error) {
	dse, err := c.ReadRootDSE(ctx)
	if err != nil {
		return nil, err
	}
	if len(dse.SubschemaSubentry) == 0 {
		return nil, newErr("LoadSchema", KindDirectoryError, "server did not advertise a subschemaSubentry", nil)
	}
	return c.fetchSchemaEntry(ctx, dse.SubschemaSubentry[0])
}

// LoadSchemaRelaxed is like LoadSchema but tolerates a RootDSE that omits
// subschemaSubentry (or a failed RootDSE lookup) by falling back to the
// conventional "cn=subschema" entry (RFC 4512 §4.1) instead of failing.
func (c *Conn) LoadSchemaRelaxed(ctx context.Context) (*SchemaEntry, error) {
	dn := "cn=subschema"
	if dse, err := c.ReadRootDSE(ctx); err == nil && len(dse.SubschemaSubentry) > 0 {
		dn = dse.SubschemaSubentry[0]
	}
	return c.fetchSchemaEntry(ctx, dn)
}

func (c *Conn) fetchSchemaEntry(ctx context.Context, dn string) (*SchemaEntry, error) {
	entry, err := c.Lookup(ctx, dn, schemaAttributes)
	if err != nil {
		return nil, err
	}
	return &SchemaEntry{
		DN:             entry.DN,
		AttributeTypes: entry.Attributes["attributeTypes"],
		ObjectClasses:  entry.Attributes["objectClasses"],
	}, nil
}
