// Package wserr is the error taxonomy spec.md §7's failure-policy tables
// imply but never name as a Go type: a small set of sentinel errors for the
// handshake's taxonomised ServerAuthFail reasons and the external-store
// failure modes callers need to branch on, used the same way the teacher's
// own handlers/system packages wrap errors — fmt.Errorf("%w", ...) plus a
// zap field at the log site, just with a named sentinel instead of a raw
// string to match against.
package wserr

import "errors"

// Code classifies a sentinel error for structured logging (spec.md §7
// "send ServerAuthFail with a taxonomised reason").
type Code uint8

const (
	CodeUnknownAccount Code = iota
	CodeBadProof
	CodeSessionExpired
	CodeDuplicateLogin
	CodeCharacterNotFound
	CodeStoreUnavailable
)

func (c Code) String() string {
	switch c {
	case CodeUnknownAccount:
		return "unknown_account"
	case CodeBadProof:
		return "bad_proof"
	case CodeSessionExpired:
		return "session_expired"
	case CodeDuplicateLogin:
		return "duplicate_login"
	case CodeCharacterNotFound:
		return "character_not_found"
	case CodeStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// codedError pairs a Code with the sentinel errors.Is matches against.
type codedError struct {
	code Code
	msg  string
}

func (e *codedError) Error() string { return e.msg }

// AsCode extracts the Code from an error produced by this package, if any.
func AsCode(err error) (Code, bool) {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code, true
	}
	return 0, false
}

var (
	ErrUnknownAccount    = &codedError{code: CodeUnknownAccount, msg: "wserr: unknown account"}
	ErrBadProof          = &codedError{code: CodeBadProof, msg: "wserr: bad srp6 proof"}
	ErrSessionExpired    = &codedError{code: CodeSessionExpired, msg: "wserr: auth session expired"}
	ErrDuplicateLogin    = &codedError{code: CodeDuplicateLogin, msg: "wserr: duplicate login"}
	ErrCharacterNotFound = &codedError{code: CodeCharacterNotFound, msg: "wserr: character not found"}
	ErrStoreUnavailable  = &codedError{code: CodeStoreUnavailable, msg: "wserr: external store unavailable"}
)
