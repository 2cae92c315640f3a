package core

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures so callers can decide messaging and retries.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConsistency      Kind = "consistency"
	KindStoreUnavailable Kind = "store_unavailable"
)

// Error is the tagged error returned across the service boundary.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind and message, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message && t.Op == ""
}

var (
	ErrInvalidAmount    = &Error{Kind: KindValidation, Message: "invalid amount"}
	ErrInvalidDate      = &Error{Kind: KindValidation, Message: "invalid date"}
	ErrEmptyCategory    = &Error{Kind: KindValidation, Message: "empty category"}
	ErrMissingOwner     = &Error{Kind: KindValidation, Message: "missing owner id"}
	ErrGoalInactive     = &Error{Kind: KindValidation, Message: "goal is not active"}
	ErrNegativeProgress = &Error{Kind: KindValidation, Message: "goal progress cannot become negative"}
	ErrWalletNotFound   = &Error{Kind: KindNotFound, Message: "wallet not found"}
	ErrGoalNotFound     = &Error{Kind: KindNotFound, Message: "goal not found"}
	ErrTxNotFound       = &Error{Kind: KindNotFound, Message: "transaction not found"}
	ErrSnapshotNotFound = &Error{Kind: KindNotFound, Message: "budget snapshot not found"}
)

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Consistency wraps the cause of a failed atomic unit.
func Consistency(op string, err error) error {
	return &Error{Kind: KindConsistency, Op: op, Message: "atomic update failed", Err: err}
}

// Unavailable wraps a transient store failure.
func Unavailable(op string, err error) error {
	return &Error{Kind: KindStoreUnavailable, Op: op, Message: "store unavailable", Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns a caller-facing message for err without wrapping prefixes.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
