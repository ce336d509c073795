package ldap

import "testing"

func TestCompileFilterEquality(t *testing.T) {
	pkt, err := compileFilter("(objectClass=person)")
	if err != nil {
		t.Fatalf("compileFilter: %v", err)
	}
	if pkt.Tag != filterEqualityMatch {
		t.Fatalf("expected equalityMatch tag %d, got %d", filterEqualityMatch, pkt.Tag)
	}
	if len(pkt.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(pkt.Children))
	}
	if pkt.Children[0].Value.(string) != "objectClass" {
		t.Fatalf("unexpected attribute: %v", pkt.Children[0].Value)
	}
	if pkt.Children[1].Value.(string) != "person" {
		t.Fatalf("unexpected value: %v", pkt.Children[1].Value)
	}
}

func TestCompileFilterPresent(t *testing.T) {
	pkt, err := compileFilter("(mail=*)")
	if err != nil {
		t.Fatalf("compileFilter: %v", err)
	}
	if pkt.Tag != filterPresent {
		t.Fatalf("expected present tag %d, got %d", filterPresent, pkt.Tag)
	}
	if pkt.Value.(string) != "mail" {
		t.Fatalf("unexpected attribute: %v", pkt.Value)
	}
}

func TestCompileFilterAndOrNot(t *testing.T) {
	pkt, err := compileFilter("(&(objectClass=person)(|(uid=bob)(!(uid=alice))))")
	if err != nil {
		t.Fatalf("compileFilter: %v", err)
	}
	if pkt.Tag != filterAnd {
		t.Fatalf("expected and tag, got %d", pkt.Tag)
	}
	if len(pkt.Children) != 2 {
		t.Fatalf("expected 2 and-children, got %d", len(pkt.Children))
	}
	or := pkt.Children[1]
	if or.Tag != filterOr {
		t.Fatalf("expected or tag, got %d", or.Tag)
	}
	not := or.Children[1]
	if not.Tag != filterNot {
		t.Fatalf("expected not tag, got %d", not.Tag)
	}
}

func TestCompileFilterSubstring(t *testing.T) {
	pkt, err := compileFilter("(cn=jo*n*doe)")
	if err != nil {
		t.Fatalf("compileFilter: %v", err)
	}
	if pkt.Tag != filterSubstrings {
		t.Fatalf("expected substrings tag, got %d", pkt.Tag)
	}
	subs := pkt.Children[1]
	if len(subs.Children) != 3 {
		t.Fatalf("expected 3 substring parts, got %d", len(subs.Children))
	}
	if subs.Children[0].Tag != 0 {
		t.Fatalf("expected initial tag 0, got %d", subs.Children[0].Tag)
	}
	if subs.Children[2].Tag != 2 {
		t.Fatalf("expected final tag 2, got %d", subs.Children[2].Tag)
	}
}

func TestCompileFilterLeadingWildcardHasNoInitial(t *testing.T) {
	pkt, err := compileFilter("(cn=*doe)")
	if err != nil {
		t.Fatalf("compileFilter: %v", err)
	}
	subs := pkt.Children[1]
	if len(subs.Children) != 1 {
		t.Fatalf("expected 1 substring part, got %d", len(subs.Children))
	}
	if subs.Children[0].Tag != 2 {
		t.Fatalf("expected final tag 2, got %d", subs.Children[0].Tag)
	}
}

func TestCompileFilterComparisons(t *testing.T) {
	cases := map[string]int64{
		"(uidNumber>=1000)": filterGreaterOrEqual,
		"(uidNumber<=2000)": filterLessOrEqual,
		"(cn~=jon)":         filterApproxMatch,
	}
	for f, want := range cases {
		pkt, err := compileFilter(f)
		if err != nil {
			t.Fatalf("compileFilter(%q): %v", f, err)
		}
		if int64(pkt.Tag) != want {
			t.Fatalf("compileFilter(%q): tag = %d, want %d", f, pkt.Tag, want)
		}
	}
}

func TestCompileFilterEscaping(t *testing.T) {
	pkt, err := compileFilter(`(cn=Lu\28ois\29)`)
	if err != nil {
		t.Fatalf("compileFilter: %v", err)
	}
	if got := pkt.Children[1].Value.(string); got != "Lu(ois)" {
		t.Fatalf("unescaped value = %q, want %q", got, "Lu(ois)")
	}
}

func TestEscapeFilterRoundTrips(t *testing.T) {
	raw := "a(b)c*d\\e"
	escaped := EscapeFilter(raw)
	pkt, err := compileFilter("(cn=" + escaped + ")")
	if err != nil {
		t.Fatalf("compileFilter: %v", err)
	}
	if got := pkt.Children[1].Value.(string); got != raw {
		t.Fatalf("round trip = %q, want %q", got, raw)
	}
}

func TestCompileFilterRejectsExtensibleMatch(t *testing.T) {
	if _, err := compileFilter("(cn:caseExactMatch:=Fred)"); err == nil {
		t.Fatal("expected error for extensible match filter")
	}
}

func TestCompileFilterRejectsUnbalancedParens(t *testing.T) {
	if _, err := compileFilter("(objectClass=person"); err == nil {
		t.Fatal("expected error for unbalanced parens")
	}
}
