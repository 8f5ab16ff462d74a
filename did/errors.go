package did

import (
	"errors"
	"fmt"
)

// Error codes for the failure classes surfaced by this SDK. Genuineness
// and validity checks never use these for a bad signature; a signature
// that does not match is a boolean false, not an error.
const (
	// CodeIllegalArgument indicates empty or invalid caller input.
	CodeIllegalArgument = "ILLEGAL_ARGUMENT"

	// CodeInvalidState indicates an operation on an already-sealed builder.
	CodeInvalidState = "INVALID_STATE"

	// CodeMalformedDID indicates a DID string that does not parse.
	CodeMalformedDID = "MALFORMED_DID"

	// CodeMalformedDIDURL indicates a DID URL string that does not parse.
	CodeMalformedDIDURL = "MALFORMED_DIDURL"

	// CodeMalformedDocument indicates structurally invalid document JSON.
	CodeMalformedDocument = "MALFORMED_DOCUMENT"

	// CodeMalformedCredential indicates structurally invalid credential JSON.
	CodeMalformedCredential = "MALFORMED_CREDENTIAL"

	// CodeMalformedPresentation indicates structurally invalid presentation JSON.
	CodeMalformedPresentation = "MALFORMED_PRESENTATION"

	// CodeMalformedRequest indicates a structurally invalid ID-chain request.
	CodeMalformedRequest = "MALFORMED_IDCHAIN_REQUEST"

	// CodeTransaction indicates an ID-chain submission failure.
	CodeTransaction = "DID_TRANSACTION_ERROR"

	// CodeResolve indicates a backend failure or unexpected resolve content.
	CodeResolve = "DID_RESOLVE_ERROR"

	// CodeStore indicates a store failure: not attached, or no such private key.
	CodeStore = "STORE_ERROR"

	// CodeUnknown is the catch-all for unexpected internal inconsistency.
	CodeUnknown = "UNKNOWN"
)

// Error is a failure with one of the DID error codes attached.
type Error struct {
	// Code is one of the Code* constants.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so callers can test a
// failure class with errors.Is(err, did.ErrInvalidState).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Matching targets for errors.Is.
var (
	ErrIllegalArgument       = &Error{Code: CodeIllegalArgument}
	ErrInvalidState          = &Error{Code: CodeInvalidState}
	ErrMalformedDID          = &Error{Code: CodeMalformedDID}
	ErrMalformedDIDURL       = &Error{Code: CodeMalformedDIDURL}
	ErrMalformedDocument     = &Error{Code: CodeMalformedDocument}
	ErrMalformedCredential   = &Error{Code: CodeMalformedCredential}
	ErrMalformedPresentation = &Error{Code: CodeMalformedPresentation}
	ErrMalformedRequest      = &Error{Code: CodeMalformedRequest}
	ErrTransaction           = &Error{Code: CodeTransaction}
	ErrResolve               = &Error{Code: CodeResolve}
	ErrStore                 = &Error{Code: CodeStore}
	ErrUnknown               = &Error{Code: CodeUnknown}
)

func newError(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code string, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}
