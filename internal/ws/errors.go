package ws

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed action for the client.
type ErrorKind string

const (
	KindMissingField ErrorKind = "MISSING_FIELD"
	KindInvalidField ErrorKind = "INVALID_FIELD"
	KindNotAMember   ErrorKind = "NOT_A_MEMBER"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindInternal     ErrorKind = "INTERNAL"
)

// ActionError is the failure of one client action. It never terminates the
// connection.
type ActionError struct {
	Kind    ErrorKind
	Message string
	Details string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ActionError) Unwrap() error { return e.Err }

var errNotAMember = &ActionError{Kind: KindNotAMember, Message: "you are not a member of this project"}

func missingField(field string) *ActionError {
	return &ActionError{Kind: KindMissingField, Message: field + " is required"}
}

func invalidField(field, details string) *ActionError {
	return &ActionError{Kind: KindInvalidField, Message: "invalid " + field, Details: details}
}

func notFound(what string) *ActionError {
	return &ActionError{Kind: KindNotFound, Message: what + " not found"}
}

func internalError(err error) *ActionError {
	return &ActionError{Kind: KindInternal, Message: "internal server error", Err: err}
}

// asActionError maps any error onto the client-facing taxonomy. Errors that
// are not already ActionErrors are internal.
func asActionError(err error) *ActionError {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae
	}
	return internalError(err)
}
