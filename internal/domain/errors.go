package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure so callers can tell "try again
// later" from "fix your input" from "system misconfigured".
type ErrorKind string

const (
	KindInvalidArgument       ErrorKind = "invalid_argument"
	KindConversationNotFound  ErrorKind = "conversation_not_found"
	KindRetrievalUnavailable  ErrorKind = "retrieval_unavailable"
	KindGenerationTimeout     ErrorKind = "generation_timeout"
	KindGenerationUnavailable ErrorKind = "generation_unavailable"
	KindGenerationAuthError   ErrorKind = "generation_auth"
	KindGenerationParseError  ErrorKind = "generation_parse"
	KindPersistenceError      ErrorKind = "persistence"
)

// Error is a classified failure surfaced by the RAG pipeline.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a classified error with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying error.
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification from err, or "" if it carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether a failure of the given kind may succeed on a
// later attempt without the caller changing anything.
func Retryable(kind ErrorKind) bool {
	switch kind {
	case KindRetrievalUnavailable, KindGenerationTimeout, KindGenerationUnavailable, KindPersistenceError:
		return true
	}
	return false
}
