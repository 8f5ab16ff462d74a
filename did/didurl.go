package did

import (
	"strings"
)

// DIDURL addresses a sub-resource of a DID subject: a public key, an
// embedded credential, or a service endpoint. It extends a DID with an
// optional path, query and fragment. A DIDURL may be context-relative,
// carrying only a fragment; such a URL is completed against a reference
// DID before use.
type DIDURL struct {
	DID      DID
	Path     string // leading "/" included
	Query    string // without the leading "?"
	Fragment string // without the leading "#"
}

// NewURL creates a fragment-only DIDURL under the given DID.
func NewURL(d DID, fragment string) (DIDURL, error) {
	if d.IsEmpty() {
		return DIDURL{}, newError(CodeIllegalArgument, "DID is empty")
	}
	fragment = strings.TrimPrefix(fragment, "#")
	if !isValidToken(fragment) {
		return DIDURL{}, newError(CodeMalformedDIDURL, "invalid fragment: %q", fragment)
	}
	return DIDURL{DID: d, Fragment: fragment}, nil
}

// ParseURL parses a DID URL in its absolute form
// did:<method>:<id>[/path][?query][#fragment]. Relative forms are not
// accepted here; use ParseURLWithRef for fragment-relative strings.
func ParseURL(s string) (DIDURL, error) {
	return ParseURLWithRef(s, DID{})
}

// ParseURLWithRef parses a DID URL, completing a fragment-relative string
// such as "#primary" against the reference DID. An absolute string ignores
// the reference.
func ParseURLWithRef(s string, ref DID) (DIDURL, error) {
	if s == "" {
		return DIDURL{}, newError(CodeMalformedDIDURL, "DID URL string is empty")
	}

	if strings.HasPrefix(s, "#") {
		if ref.IsEmpty() {
			return DIDURL{}, newError(CodeMalformedDIDURL,
				"relative DID URL %q without a reference DID", s)
		}
		return NewURL(ref, s)
	}

	didPart := s
	var path, query, fragment string

	if i := strings.IndexByte(didPart, '#'); i >= 0 {
		fragment = didPart[i+1:]
		didPart = didPart[:i]
	}
	if i := strings.IndexByte(didPart, '?'); i >= 0 {
		query = didPart[i+1:]
		didPart = didPart[:i]
	}
	if i := strings.IndexByte(didPart, '/'); i >= 0 {
		path = didPart[i:]
		didPart = didPart[:i]
	}

	d, err := ParseDID(didPart)
	if err != nil {
		return DIDURL{}, wrapError(CodeMalformedDIDURL, err, "invalid DID part of %q", s)
	}
	if fragment != "" && !isValidToken(fragment) {
		return DIDURL{}, newError(CodeMalformedDIDURL, "invalid fragment: %q", fragment)
	}
	if query != "" && strings.ContainsAny(query, "#") {
		return DIDURL{}, newError(CodeMalformedDIDURL, "invalid query: %q", query)
	}
	if path != "" && !isValidPath(path) {
		return DIDURL{}, newError(CodeMalformedDIDURL, "invalid path: %q", path)
	}

	return DIDURL{DID: d, Path: path, Query: query, Fragment: fragment}, nil
}

// String returns the canonical absolute form of the URL.
func (u DIDURL) String() string {
	var b strings.Builder
	b.WriteString(u.DID.String())
	b.WriteString(u.Path)
	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}

// StringWithRef renders the URL relative to a reference DID: "#fragment"
// when the URL's DID equals ref and the URL carries no path or query,
// the absolute form otherwise.
func (u DIDURL) StringWithRef(ref DID) string {
	if u.DID == ref && u.Path == "" && u.Query == "" {
		return "#" + u.Fragment
	}
	return u.String()
}

// IsEmpty reports whether u is the zero DIDURL.
func (u DIDURL) IsEmpty() bool {
	return u == DIDURL{}
}

// Equal reports canonical-string equality.
func (u DIDURL) Equal(other DIDURL) bool {
	return u == other
}

func isValidToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '~' || c == '-':
		case c == '%':
			if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
				return false
			}
			i += 2
		default:
			return false
		}
	}
	return true
}

func isValidPath(s string) bool {
	for _, seg := range strings.Split(strings.TrimPrefix(s, "/"), "/") {
		if seg != "" && !isValidToken(seg) {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
