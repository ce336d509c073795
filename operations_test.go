package ldap

import (
	"context"
	"testing"
	"time"

	"github.com/ldapcore/ldapclient/internal/ldaptest"
)

func dialFake(t *testing.T, h ldaptest.Handler) (*ldaptest.Server, *Conn) {
	t.Helper()
	srv, err := ldaptest.Start(h)
	if err != nil {
		t.Fatalf("starting fake server: %v", err)
	}

	cfg := NewConfig()
	cfg.Host, cfg.Port = splitHostPort(t, srv.Addr())
	cfg.Timeout = 2 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, cfg)
	if err != nil {
		srv.Stop()
		t.Fatalf("Dial: %v", err)
	}
	return srv, conn
}

func TestDeleteTreeFailsNotSupportedWithoutControl(t *testing.T) {
	rootDSE := []ldaptest.Entry{{DN: "", Attributes: map[string][]string{
		"supportedControl": {OIDManageDSAIT}, // no subtree-delete
	}}}
	deleted := false
	srv, conn := dialFake(t, ldaptest.Handler{
		Search: func(baseDN, filter string) []ldaptest.Entry { return rootDSE },
		Delete: func(dn string, controlOIDs []string) int64 {
			deleted = true
			return 0
		},
	})
	defer srv.Stop()
	defer conn.Close()

	ctx := context.Background()
	_, err := conn.DeleteTree(ctx, "ou=stale,dc=example,dc=org")
	if err == nil {
		t.Fatal("expected an error when the server does not advertise subtree-delete")
	}
	if kind, ok := KindOf(err); !ok || kind != KindNotSupported {
		t.Fatalf("expected KindNotSupported, got (%v, %v)", kind, ok)
	}
	if deleted {
		t.Fatal("DeleteRequest must not be written when the control is unsupported")
	}
}

func TestDeleteTreeAttachesSubtreeControlWhenSupported(t *testing.T) {
	rootDSE := []ldaptest.Entry{{DN: "", Attributes: map[string][]string{
		"supportedControl": {OIDSubtreeDelete},
	}}}
	var gotDN string
	var gotOIDs []string
	srv, conn := dialFake(t, ldaptest.Handler{
		Search: func(baseDN, filter string) []ldaptest.Entry { return rootDSE },
		Delete: func(dn string, controlOIDs []string) int64 {
			gotDN = dn
			gotOIDs = controlOIDs
			return 0
		},
	})
	defer srv.Stop()
	defer conn.Close()

	if _, err := conn.DeleteTree(context.Background(), "ou=stale,dc=example,dc=org"); err != nil {
		t.Fatalf("DeleteTree: %v", err)
	}
	if gotDN != "ou=stale,dc=example,dc=org" {
		t.Fatalf("unexpected DN on DeleteRequest: %q", gotDN)
	}
	found := false
	for _, oid := range gotOIDs {
		if oid == OIDSubtreeDelete {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the subtree-delete control on the wire, got controls %v", gotOIDs)
	}
}

func TestModifyDNConvenienceForms(t *testing.T) {
	var gotDN, gotNewRDN, gotSuperior string
	var gotDeleteOld bool
	srv, conn := dialFake(t, ldaptest.Handler{
		ModifyDN: func(dn, newRDN string, deleteOldRDN bool, newSuperior string) int64 {
			gotDN, gotNewRDN, gotDeleteOld, gotSuperior = dn, newRDN, deleteOldRDN, newSuperior
			return 0
		},
	})
	defer srv.Stop()
	defer conn.Close()

	ctx := context.Background()

	if _, err := conn.Rename(ctx, "cn=old,dc=example,dc=org", "cn=new", true); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if gotDN != "cn=old,dc=example,dc=org" || gotNewRDN != "cn=new" || !gotDeleteOld || gotSuperior != "" {
		t.Fatalf("Rename sent unexpected ModifyDNRequest: dn=%q newRDN=%q deleteOld=%v superior=%q",
			gotDN, gotNewRDN, gotDeleteOld, gotSuperior)
	}

	if _, err := conn.Move(ctx, "cn=bob,ou=old,dc=example,dc=org", "ou=new,dc=example,dc=org"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if gotNewRDN != "cn=bob" || gotSuperior != "ou=new,dc=example,dc=org" {
		t.Fatalf("Move sent unexpected ModifyDNRequest: newRDN=%q superior=%q", gotNewRDN, gotSuperior)
	}

	if _, err := conn.MoveAndRename(ctx, "cn=bob,ou=old,dc=example,dc=org", "cn=robert", "ou=new,dc=example,dc=org", true); err != nil {
		t.Fatalf("MoveAndRename: %v", err)
	}
	if gotNewRDN != "cn=robert" || gotSuperior != "ou=new,dc=example,dc=org" || !gotDeleteOld {
		t.Fatalf("MoveAndRename sent unexpected ModifyDNRequest: newRDN=%q superior=%q deleteOld=%v",
			gotNewRDN, gotSuperior, gotDeleteOld)
	}
}

func TestFirstRDN(t *testing.T) {
	cases := map[string]string{
		"cn=bob,ou=people,dc=example,dc=org": "cn=bob",
		"cn=bob":                             "cn=bob",
		`cn=bo\,b,ou=people,dc=example,dc=org`: `cn=bo\,b`,
	}
	for dn, want := range cases {
		if got := firstRDN(dn); got != want {
			t.Errorf("firstRDN(%q) = %q, want %q", dn, got, want)
		}
	}
}

func TestLookupReturnsSingleEntry(t *testing.T) {
	entries := []ldaptest.Entry{
		{DN: "cn=bob,dc=example,dc=org", Attributes: map[string][]string{"cn": {"Bob"}}},
	}
	srv, conn := dialFake(t, ldaptest.Handler{
		Search: func(baseDN, filter string) []ldaptest.Entry { return entries },
	})
	defer srv.Stop()
	defer conn.Close()

	e, err := conn.Lookup(context.Background(), "cn=bob,dc=example,dc=org", []string{"cn"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.DN != entries[0].DN {
		t.Fatalf("Lookup returned %q, want %q", e.DN, entries[0].DN)
	}
}

func TestLookupNoSuchObject(t *testing.T) {
	srv, conn := dialFake(t, ldaptest.Handler{
		Search: func(baseDN, filter string) []ldaptest.Entry { return nil },
	})
	defer srv.Stop()
	defer conn.Close()

	_, err := conn.Lookup(context.Background(), "cn=ghost,dc=example,dc=org", nil)
	if err == nil {
		t.Fatal("expected an error for a nonexistent entry")
	}
	if kind, ok := KindOf(err); !ok || kind != KindDirectoryError {
		t.Fatalf("expected KindDirectoryError, got (%v, %v)", kind, ok)
	}
}

func TestLoadSchemaUsesSubschemaSubentryFromRootDSE(t *testing.T) {
	srv, conn := dialFake(t, ldaptest.Handler{
		Search: func(baseDN, filter string) []ldaptest.Entry {
			if baseDN == "" {
				return []ldaptest.Entry{{DN: "", Attributes: map[string][]string{
					"subschemaSubentry": {"cn=schema"},
				}}}
			}
			return []ldaptest.Entry{{DN: "cn=schema", Attributes: map[string][]string{
				"attributeTypes": {"( 2.5.4.3 NAME 'cn' )"},
				"objectClasses":  {"( 2.5.6.6 NAME 'person' )"},
			}}}
		},
	})
	defer srv.Stop()
	defer conn.Close()

	schema, err := conn.LoadSchema(context.Background())
	if err != nil {
		t.Fatalf("LoadSchema: %v", err)
	}
	if schema.DN != "cn=schema" || len(schema.AttributeTypes) != 1 || len(schema.ObjectClasses) != 1 {
		t.Fatalf("unexpected schema entry: %+v", schema)
	}
}

// neverDoneMechanism completes a single SASL round but always reports
// done=false, simulating a mechanism that still expects another challenge.
type neverDoneMechanism struct{ stepped bool }

func (m *neverDoneMechanism) Name() string { return "X-NEVERDONE" }

func (m *neverDoneMechanism) Step(challenge []byte) ([]byte, bool, error) {
	if m.stepped {
		return nil, false, nil
	}
	m.stepped = true
	return []byte("initial"), false, nil
}

func TestSASLBindRejectsPrematureSuccess(t *testing.T) {
	srv, conn := dialFake(t, ldaptest.Handler{})
	defer srv.Stop()
	defer conn.Close()

	err := conn.SASLBind(context.Background(), &neverDoneMechanism{})
	if err == nil {
		t.Fatal("expected an error when the server reports success before the mechanism is done")
	}
	if kind, ok := KindOf(err); !ok || kind != KindProtocolError {
		t.Fatalf("expected KindProtocolError, got (%v, %v)", kind, ok)
	}
	if conn.IsBound() {
		t.Fatal("connection must not be left in a bound state")
	}
}

func TestLoadSchemaRelaxedFallsBackToWellKnownEntry(t *testing.T) {
	srv, conn := dialFake(t, ldaptest.Handler{
		Search: func(baseDN, filter string) []ldaptest.Entry {
			if baseDN == "" {
				return nil // RootDSE carries no subschemaSubentry
			}
			if baseDN != "cn=subschema" {
				t.Fatalf("expected fallback lookup of cn=subschema, got %q", baseDN)
			}
			return []ldaptest.Entry{{DN: "cn=subschema", Attributes: map[string][]string{
				"attributeTypes": {"( 2.5.4.3 NAME 'cn' )"},
			}}}
		},
	})
	defer srv.Stop()
	defer conn.Close()

	schema, err := conn.LoadSchemaRelaxed(context.Background())
	if err != nil {
		t.Fatalf("LoadSchemaRelaxed: %v", err)
	}
	if schema.DN != "cn=subschema" || len(schema.AttributeTypes) != 1 {
		t.Fatalf("unexpected schema entry: %+v", schema)
	}
}
