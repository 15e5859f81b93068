// Package fault defines the error kinds surfaced by the rental services.
//
// Every error carries a Kind. Callers match kinds with errors.Is against the
// sentinel values, e.g. errors.Is(err, fault.ErrConflict).
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindLedgerCallFailed
	KindTransactionFailed
	KindTransactionTimeout
)

func (self Kind) String() string {
	switch self {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindLedgerCallFailed:
		return "ledger_call_failed"
	case KindTransactionFailed:
		return "transaction_failed"
	case KindTransactionTimeout:
		return "transaction_timeout"
	}
	return "unknown"
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrLedgerCallFailed   = &Error{Kind: KindLedgerCallFailed}
	ErrTransactionFailed  = &Error{Kind: KindTransactionFailed}
	ErrTransactionTimeout = &Error{Kind: KindTransactionTimeout}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (self *Error) Error() string {
	msg := self.Message
	if msg == "" {
		msg = self.Kind.String()
	}
	if self.Err != nil {
		return fmt.Sprintf("%s: %v", msg, self.Err)
	}
	return msg
}

func (self *Error) Unwrap() error {
	return self.Err
}

// Errors of the same kind are equal
func (self *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == self.Kind
}

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) error {
	return newf(KindValidation, nil, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(KindNotFound, nil, format, args...)
}

func Conflict(format string, args ...any) error {
	return newf(KindConflict, nil, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return newf(KindUnauthorized, nil, format, args...)
}

func LedgerCallFailed(err error, format string, args ...any) error {
	return newf(KindLedgerCallFailed, err, format, args...)
}

func TransactionFailed(hash string) error {
	return newf(KindTransactionFailed, nil, "transaction %s failed", hash)
}

func TransactionTimeout(hash string, attempts int) error {
	return newf(KindTransactionTimeout, nil, "transaction %s not final after %d checks", hash, attempts)
}

// Returns the kind of the first *Error in the chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Client errors are actionable by the caller (4xx), everything else is on our side (5xx)
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindConflict, KindUnauthorized:
		return true
	}
	return false
}

// Message safe to show to end users. Ledger details stay in logs.
func Public(err error) string {
	if err == nil {
		return ""
	}
	if IsClientError(err) {
		var e *Error
		errors.As(err, &e)
		return e.Error()
	}
	switch KindOf(err) {
	case KindTransactionTimeout:
		return "ledger transaction is still pending, try again later"
	case KindLedgerCallFailed, KindTransactionFailed:
		return "ledger operation failed"
	}
	return "internal error"
}
