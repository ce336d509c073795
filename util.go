package ldap

import "strings"

// normalizeAttrName lowercases an attribute type name for case-insensitive
// comparison, stripping an RFC 4522 ";binary" transfer-option suffix if
// present so "jpegPhoto;binary" still matches "jpegphoto".
func normalizeAttrName(attr string) string {
	name := strings.ToLower(attr)
	if i := strings.IndexByte(name, ';'); i >= 0 {
		name = name[:i]
	}
	return name
}
