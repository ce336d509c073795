package ldap

import (
	"fmt"
	"strconv"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// Filter CHOICE tags (RFC 4511 §4.5.1.7). A full filter-builder DSL (a
// programmatic AST for composing filters) is not provided here; this is
// the narrower job of turning a filter string already handed to us into
// wire bytes, which the core still owns.
const (
	filterAnd            = 0
	filterOr             = 1
	filterNot            = 2
	filterEqualityMatch  = 3
	filterSubstrings     = 4
	filterGreaterOrEqual = 5
	filterLessOrEqual    = 6
	filterPresent        = 7
	filterApproxMatch    = 8
)

// compileFilter parses an RFC 4515 filter string into its BER encoding.
func compileFilter(filter string) (*ber.Packet, error) {
	s := strings.TrimSpace(filter)
	pkt, rest, err := parseFilter(s)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rest) != "" {
		return nil, fmt.Errorf("ldap: trailing data in filter: %q", rest)
	}
	return pkt, nil
}

func parseFilter(s string) (*ber.Packet, string, error) {
	if len(s) == 0 || s[0] != '(' {
		return nil, "", fmt.Errorf("ldap: filter must start with '(': %q", s)
	}
	s = s[1:]

	depth := 1
	i := 0
	for ; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			break
		}
	}
	if depth != 0 {
		return nil, "", fmt.Errorf("ldap: unbalanced parentheses in filter")
	}

	inner := s[:i]
	rest := s[i+1:]
	pkt, err := parseFilterComp(inner)
	return pkt, rest, err
}

func parseFilterComp(s string) (*ber.Packet, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("ldap: empty filter component")
	}

	switch s[0] {
	case '&':
		children, err := parseFilterList(s[1:])
		if err != nil {
			return nil, err
		}
		pkt := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterAnd, nil, "And")
		for _, c := range children {
			pkt.AppendChild(c)
		}
		return pkt, nil
	case '|':
		children, err := parseFilterList(s[1:])
		if err != nil {
			return nil, err
		}
		pkt := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterOr, nil, "Or")
		for _, c := range children {
			pkt.AppendChild(c)
		}
		return pkt, nil
	case '!':
		child, rest, err := parseFilter(s[1:])
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(rest) != "" {
			return nil, fmt.Errorf("ldap: '!' filter takes exactly one operand")
		}
		pkt := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterNot, nil, "Not")
		pkt.AppendChild(child)
		return pkt, nil
	default:
		return parseFilterItem(s)
	}
}

func parseFilterList(s string) ([]*ber.Packet, error) {
	var list []*ber.Packet
	for len(strings.TrimSpace(s)) > 0 {
		pkt, rest, err := parseFilter(s)
		if err != nil {
			return nil, err
		}
		list = append(list, pkt)
		s = rest
	}
	return list, nil
}

func parseFilterItem(s string) (*ber.Packet, error) {
	opIdx, opLen, opKind, err := findFilterOperator(s)
	if err != nil {
		return nil, err
	}

	attr := s[:opIdx]
	value := s[opIdx+opLen:]

	switch opKind {
	case "~=":
		pkt := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterApproxMatch, nil, "ApproxMatch")
		pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr, "Attribute"))
		pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, unescapeFilterValue(value), "Value"))
		return pkt, nil
	case ">=":
		pkt := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterGreaterOrEqual, nil, "GreaterOrEqual")
		pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr, "Attribute"))
		pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, unescapeFilterValue(value), "Value"))
		return pkt, nil
	case "<=":
		pkt := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterLessOrEqual, nil, "LessOrEqual")
		pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr, "Attribute"))
		pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, unescapeFilterValue(value), "Value"))
		return pkt, nil
	case ":=":
		return nil, fmt.Errorf("ldap: extensible match filters are not supported: %q", s)
	default: // "="
		if value == "*" {
			return ber.NewString(ber.ClassContext, ber.TypePrimitive, filterPresent, attr, "Present"), nil
		}
		if strings.Contains(value, "*") {
			return compileSubstring(attr, value), nil
		}
		pkt := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterEqualityMatch, nil, "EqualityMatch")
		pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr, "Attribute"))
		pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, unescapeFilterValue(value), "Value"))
		return pkt, nil
	}
}

func findFilterOperator(s string) (idx, length int, kind string, err error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '=' {
			continue
		}
		if i > 0 {
			switch s[i-1] {
			case '~':
				return i - 1, 2, "~=", nil
			case '>':
				return i - 1, 2, ">=", nil
			case '<':
				return i - 1, 2, "<=", nil
			case ':':
				return i - 1, 2, ":=", nil
			}
		}
		return i, 1, "=", nil
	}
	return 0, 0, "", fmt.Errorf("ldap: no filter operator found in %q", s)
}

func compileSubstring(attr, value string) *ber.Packet {
	pkt := ber.Encode(ber.ClassContext, ber.TypeConstructed, filterSubstrings, nil, "Substrings")
	pkt.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr, "Attribute"))

	subs := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Substrings List")
	parts := strings.Split(value, "*")
	startsWithStar := strings.HasPrefix(value, "*")
	endsWithStar := strings.HasSuffix(value, "*")

	for i, part := range parts {
		if part == "" {
			continue
		}
		var tag ber.Tag
		switch {
		case i == 0 && !startsWithStar:
			tag = 0 // initial
		case i == len(parts)-1 && !endsWithStar:
			tag = 2 // final
		default:
			tag = 1 // any
		}
		subs.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, tag, unescapeFilterValue(part), "Substring"))
	}
	pkt.AppendChild(subs)
	return pkt
}

// unescapeFilterValue decodes RFC 4515 \XX hex escapes.
func unescapeFilterValue(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+2 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// EscapeFilter escapes a value for safe interpolation into a filter string,
// per RFC 4515 §3.
func EscapeFilter(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case '(', ')', '*', '\\', 0:
			fmt.Fprintf(&b, "\\%02x", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
