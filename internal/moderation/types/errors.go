package types

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the moderation core returns
// across its component boundaries.
type Kind string

const (
	KindRequestInvalid       Kind = "request_invalid"
	KindRateLimited          Kind = "rate_limited"
	KindNotFound             Kind = "not_found"
	KindClassifierUnavailable Kind = "classifier_unavailable"
	KindModelUnavailable     Kind = "model_unavailable"
	KindStoreUnavailable     Kind = "store_unavailable"
	KindConflict             Kind = "conflict"
	KindInternal             Kind = "internal"
)

// Error is the typed error every moderation-core operation returns. It
// wraps an optional cause so callers can still errors.Is/errors.As through
// to the underlying driver error while switching on Kind at the API
// boundary.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an *Error with no wrapped cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error carrying cause as its Unwrap target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, otherwise
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is (or wraps) an *Error of kind k, as in
// types.KindNotFound.Is(err). Kind is not itself an error, so it cannot be
// passed to errors.Is.
func (k Kind) Is(err error) bool {
	return KindOf(err) == k
}
