// Package did implements the trust-object model of the Elastos DID
// protocol: identifiers, DID documents, verifiable credentials and
// presentations, and the builders that seal them with ECDSA proofs.
//
// Entities are constructed through single-use builders and become
// immutable value objects once sealed. Canonical JSON serialization is
// deterministic, so the bytes covered by a proof can be reproduced from
// any equal entity regardless of how it was assembled.
package did

import (
	"fmt"
	"regexp"
	"strings"
)

// Method is the DID method implemented by this SDK.
const Method = "elastos"

var didRegex = regexp.MustCompile(`^did:([a-z0-9]+):([a-zA-Z0-9._~-]|%[0-9A-Fa-f]{2})+$`)

// DID is a decentralized identifier of the form did:<method>:<id>.
// The zero value is the empty DID.
type DID struct {
	Method           string
	MethodSpecificID string
}

// New creates a DID under the supported method.
func New(methodSpecificID string) (DID, error) {
	if methodSpecificID == "" {
		return DID{}, newError(CodeIllegalArgument, "method specific id is empty")
	}
	return ParseDID("did:" + Method + ":" + methodSpecificID)
}

// ParseDID parses a DID string of the form did:<method>:<method-specific-id>.
// The method-specific id may contain RFC3986 unreserved and pct-encoded
// characters. Methods other than "elastos" parse, but are reported as
// unsupported by IsSupported and rejected on every signing path.
func ParseDID(s string) (DID, error) {
	if s == "" {
		return DID{}, newError(CodeMalformedDID, "DID string is empty")
	}
	if !didRegex.MatchString(s) {
		return DID{}, newError(CodeMalformedDID, "invalid DID syntax: %q", s)
	}

	parts := strings.SplitN(s, ":", 3)
	return DID{Method: parts[1], MethodSpecificID: parts[2]}, nil
}

// String returns the canonical form did:<method>:<method-specific-id>.
func (d DID) String() string {
	if d.IsEmpty() {
		return ""
	}
	return fmt.Sprintf("did:%s:%s", d.Method, d.MethodSpecificID)
}

// IsEmpty reports whether d is the zero DID.
func (d DID) IsEmpty() bool {
	return d.Method == "" && d.MethodSpecificID == ""
}

// IsSupported reports whether the DID uses the supported method.
func (d DID) IsSupported() bool {
	return d.Method == Method
}

// Equal reports canonical-string equality.
func (d DID) Equal(other DID) bool {
	return d == other
}
