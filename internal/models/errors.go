package models

import "errors"

// ErrorKind classifies domain failures so transport layers can map them
// to status codes without inspecting individual sentinels.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindAuthorization
	KindConflict
	KindNotFound
	KindInvariant
)

// DomainError is a classified, fail-fast domain failure. Operations that
// return one leave the aggregate unmodified.
type DomainError struct {
	Kind ErrorKind
	Msg  string
}

func (e *DomainError) Error() string { return e.Msg }

var (
	ErrAlreadyMember     = &DomainError{KindConflict, "user is already a member"}
	ErrGroupFull         = &DomainError{KindConflict, "group is full"}
	ErrAlreadyAdmin      = &DomainError{KindConflict, "user is already an admin"}
	ErrDuplicateReaction = &DomainError{KindConflict, "reaction already exists"}

	ErrNotMember        = &DomainError{KindNotFound, "user is not a member"}
	ErrNotAdmin         = &DomainError{KindNotFound, "user is not an admin"}
	ErrReactionNotFound = &DomainError{KindNotFound, "reaction not found"}

	ErrCreatorProtected = &DomainError{KindAuthorization, "group creator cannot be removed or demoted"}

	ErrMissingTarget   = &DomainError{KindInvariant, "message needs a group or a recipient"}
	ErrAmbiguousTarget = &DomainError{KindInvariant, "message cannot target both a group and a recipient"}
)

func validationError(msg string) *DomainError {
	return &DomainError{Kind: KindValidation, Msg: msg}
}

// KindOf extracts the classification from err. The second return is
// false for errors that did not originate in this package.
func KindOf(err error) (ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
