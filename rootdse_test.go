package ldap

import (
	"context"
	"testing"
	"time"

	"github.com/ldapcore/ldapclient/internal/ldaptest"
)

func TestReadRootDSE(t *testing.T) {
	entries := []ldaptest.Entry{
		{DN: "", Attributes: map[string][]string{
			"namingContexts":          {"dc=example,dc=org"},
			"supportedControl":        {OIDManageDSAIT},
			"supportedExtension":      {OIDStartTLS},
			"supportedSASLMechanisms": {"PLAIN", "CRAM-MD5"},
			"supportedLDAPVersion":    {"3"},
		}},
	}
	srv, err := ldaptest.Start(ldaptest.Handler{
		Search: func(baseDN, filter string) []ldaptest.Entry { return entries },
	})
	if err != nil {
		t.Fatalf("starting fake server: %v", err)
	}
	defer srv.Stop()

	cfg := NewConfig()
	cfg.Host, cfg.Port = splitHostPort(t, srv.Addr())
	cfg.Timeout = 2 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, cfg)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	dse, err := conn.ReadRootDSE(ctx)
	if err != nil {
		t.Fatalf("ReadRootDSE: %v", err)
	}
	if len(dse.NamingContexts) != 1 || dse.NamingContexts[0] != "dc=example,dc=org" {
		t.Fatalf("unexpected NamingContexts: %v", dse.NamingContexts)
	}
	if !dse.IsControlSupported(OIDManageDSAIT) {
		t.Fatal("expected ManageDSAIT control to be reported supported")
	}
	if !dse.IsExtensionSupported(OIDStartTLS) {
		t.Fatal("expected StartTLS extension to be reported supported")
	}
	if !dse.IsSASLMechanismSupported("PLAIN") || dse.IsSASLMechanismSupported("DIGEST-MD5") {
		t.Fatal("unexpected SASL mechanism support result")
	}
}

func TestExtendedOIDRegistry(t *testing.T) {
	reg := NewExtendedOIDRegistry()
	reg.Register("1.2.3.4", func(value []byte) (any, error) {
		return string(value), nil
	})

	v, ok, err := reg.Decode(&ExtendedResponseMsg{Name: "1.2.3.4", Value: []byte("hello")})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !ok || v.(string) != "hello" {
		t.Fatalf("Decode = (%v, %v), want (\"hello\", true)", v, ok)
	}

	if _, ok, _ := reg.Decode(&ExtendedResponseMsg{Name: "unregistered"}); ok {
		t.Fatal("expected Decode to report false for an unregistered OID")
	}
}
