package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/repository"
)

// Kind classifies engine failures so the transport can map them.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindPaymentNotAllowed Kind = "payment_not_allowed"
	KindForbidden         Kind = "forbidden"
	KindStorage           Kind = "storage"
)

// Error is the typed error returned by every service operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	// Transient marks storage failures that may succeed when retried.
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindStorage for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// IsTransient reports whether err is a storage failure worth retrying.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Transient
	}
	return errors.Is(err, repository.ErrContention)
}

// Message returns the human readable part of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func validationErr(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func conflictErr(op string, booked model.Interval) error {
	return &Error{Kind: KindConflict, Op: op, Msg: "resource already reserved for " + booked.String()}
}

func notFoundErr(op, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: "reservation " + id + " not found"}
}

func transitionErr(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func paymentErr(op, format string, args ...any) error {
	return &Error{Kind: KindPaymentNotAllowed, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func forbiddenErr(op, msg string) error {
	return &Error{Kind: KindForbidden, Op: op, Msg: msg}
}

// storageErr wraps a backend failure.  Typed service errors pass through so
// that a fn returning Conflict inside a unit of work keeps its kind.
func storageErr(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Op: op, Msg: "reservation not found", Err: err}
	case errors.Is(err, repository.ErrDuplicatePayment):
		return &Error{Kind: KindPaymentNotAllowed, Op: op, Msg: "payment id already recorded on another reservation", Err: err}
	case errors.Is(err, repository.ErrStaleWrite), errors.Is(err, repository.ErrContention):
		return &Error{Kind: KindStorage, Op: op, Msg: "concurrent update, retry", Transient: true, Err: err}
	}
	return &Error{Kind: KindStorage, Op: op, Msg: "storage failure", Err: fmt.Errorf("%s: %w", op, err)}
}
