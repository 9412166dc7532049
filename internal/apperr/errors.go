// Package apperr defines the error taxonomy shared by the scheduling core.
//
// Every business-rule failure carries a Kind. Callers match with errors.Is
// against the package sentinels or classify with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorises a failure for callers deciding on retry or presentation.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindDoctorUnverified    Kind = "doctor_unverified"
	KindInvalidDate         Kind = "invalid_date"
	KindOutsideAvailability Kind = "outside_availability"
	KindInvalidSlot         Kind = "invalid_slot"
	KindSlotConflict        Kind = "slot_conflict"
	KindInvalidTransition   Kind = "invalid_transition"
	KindForbidden           Kind = "forbidden"
	KindUnavailable         Kind = "unavailable"
	KindInvalidInput        Kind = "invalid_input"
	KindLimitExceeded       Kind = "limit_exceeded"
	KindInternal            Kind = "internal"
)

// Error is a classified failure. Cause is optional.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind, so any
// not_found error matches ErrNotFound.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDoctorUnverified    = &Error{Kind: KindDoctorUnverified, Message: "doctor is not verified"}
	ErrInvalidDate         = &Error{Kind: KindInvalidDate, Message: "date is in the past"}
	ErrOutsideAvailability = &Error{Kind: KindOutsideAvailability, Message: "slot is outside the doctor's availability"}
	ErrInvalidSlot         = &Error{Kind: KindInvalidSlot, Message: "slot is not aligned to the booking granularity"}
	ErrSlotConflict        = &Error{Kind: KindSlotConflict, Message: "slot is already booked"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrUnavailable         = &Error{Kind: KindUnavailable, Message: "storage unavailable"}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrLimitExceeded       = &Error{Kind: KindLimitExceeded, Message: "booking limit exceeded"}
)

// E builds a classified error with a formatted message.
func E(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind. A nil cause returns nil.
func Wrap(kind Kind, cause error, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// KindInternal for unclassified errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the caller may retry. Only storage
// unavailability qualifies; business-rule failures are terminal.
func Retryable(err error) bool {
	return KindOf(err) == KindUnavailable
}
