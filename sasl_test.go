package ldap

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"
)

func TestPlainMechanismStep(t *testing.T) {
	m := &PlainMechanism{AuthzID: "", Identity: "jon", Password: "secret"}
	resp, done, err := m.Step(nil)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !done {
		t.Fatal("PLAIN should complete in one step")
	}
	if string(resp) != "\x00jon\x00secret" {
		t.Fatalf("unexpected response: %q", resp)
	}
	if _, _, err := m.Step(nil); err == nil {
		t.Fatal("expected an error stepping an already-completed PLAIN mechanism")
	}
}

func TestExternalMechanismStep(t *testing.T) {
	m := &ExternalMechanism{AuthzID: "u:jon"}
	resp, done, err := m.Step(nil)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !done || string(resp) != "u:jon" {
		t.Fatalf("unexpected response: done=%v resp=%q", done, resp)
	}
}

func TestCRAMMD5MechanismRequiresChallenge(t *testing.T) {
	m := &CRAMMD5Mechanism{Identity: "jon", Password: "secret"}
	resp, done, err := m.Step(nil)
	if err != nil || done || resp != nil {
		t.Fatalf("expected CRAM-MD5 to wait for a challenge, got (%v, %v, %v)", resp, done, err)
	}
}

func TestCRAMMD5MechanismComputesDigest(t *testing.T) {
	m := &CRAMMD5Mechanism{Identity: "jon", Password: "secret"}
	challenge := []byte("<1896.697170952@postoffice.example.net>")
	resp, done, err := m.Step(challenge)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !done {
		t.Fatal("CRAM-MD5 should complete once a challenge is answered")
	}
	mac := hmac.New(md5.New, []byte("secret"))
	mac.Write(challenge)
	want := "jon " + hex.EncodeToString(mac.Sum(nil))
	if string(resp) != want {
		t.Fatalf("response = %q, want %q", resp, want)
	}
}

func TestDigestMD5MechanismTwoStepFlow(t *testing.T) {
	m := &DigestMD5Mechanism{Identity: "jon", Password: "secret", DigestURI: "ldap/dir.example.com"}
	challenge := []byte(`realm="example.com",nonce="abcdef0123456789",qop="auth",algorithm=md5-sess,charset=utf-8`)

	resp, done, err := m.Step(challenge)
	if err != nil {
		t.Fatalf("first Step: %v", err)
	}
	if done {
		t.Fatal("DIGEST-MD5 should not be done after the first step")
	}
	respStr := string(resp)
	for _, want := range []string{`username="jon"`, `realm="example.com"`, `nonce="abcdef0123456789"`, "qop=auth", "response="} {
		if !strings.Contains(respStr, want) {
			t.Fatalf("response %q missing %q", respStr, want)
		}
	}

	_, done, err = m.Step([]byte("rspauth=whatever"))
	if err != nil {
		t.Fatalf("second Step: %v", err)
	}
	if !done {
		t.Fatal("DIGEST-MD5 should be done after the rspauth step")
	}

	if _, _, err := m.Step(nil); err == nil {
		t.Fatal("expected an error stepping a completed DIGEST-MD5 mechanism")
	}
}

func TestDigestMD5ResponseIsDeterministic(t *testing.T) {
	r1 := digestMD5Response("jon", "example.com", "secret", "nonce1", "cnonce1", "ldap/dir.example.com", "00000001")
	r2 := digestMD5Response("jon", "example.com", "secret", "nonce1", "cnonce1", "ldap/dir.example.com", "00000001")
	if r1 != r2 {
		t.Fatal("digestMD5Response should be deterministic for identical inputs")
	}
	r3 := digestMD5Response("jon", "example.com", "wrong", "nonce1", "cnonce1", "ldap/dir.example.com", "00000001")
	if r1 == r3 {
		t.Fatal("digestMD5Response should differ when the password differs")
	}
}
