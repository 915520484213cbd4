package lnclient

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure kinds surfaced by the gateway.
type ErrorKind string

const (
	// validation
	KindBelowMinimum         ErrorKind = "BelowMinimum"
	KindAboveMaximum         ErrorKind = "AboveMaximum"
	KindInvalidAmount        ErrorKind = "InvalidAmount"
	KindInvalidInvoiceFormat ErrorKind = "InvalidInvoiceFormat"
	KindInvoiceExpired       ErrorKind = "InvoiceExpired"
	KindInvalidPubkey        ErrorKind = "InvalidPubkey"
	KindInvalidPaymentHash   ErrorKind = "InvalidPaymentHash"
	KindInvalidTransition    ErrorKind = "InvalidTransition"

	// policy
	KindPolicyViolation    ErrorKind = "PolicyViolation"
	KindFeeTooHigh         ErrorKind = "FeeTooHigh"
	KindDailyLimitExceeded ErrorKind = "DailyLimitExceeded"
	KindDuplicatePayment   ErrorKind = "DuplicatePayment"

	// connectivity
	KindBackendUnavailable     ErrorKind = "BackendUnavailable"
	KindBackendConnectionError ErrorKind = "BackendConnectionError"

	// outcome unknown
	KindTimedOut ErrorKind = "TimedOut"

	// backend outcome
	KindNotFound          ErrorKind = "NotFound"
	KindInsufficientFunds ErrorKind = "InsufficientFunds"
	KindNotSupported      ErrorKind = "NotSupported"
	KindBackendError      ErrorKind = "BackendError"
)

type ErrorCategory string

const (
	CategoryValidation   ErrorCategory = "validation"
	CategoryPolicy       ErrorCategory = "policy"
	CategoryConnectivity ErrorCategory = "connectivity"
	CategoryAmbiguous    ErrorCategory = "ambiguous"
	CategoryBackend      ErrorCategory = "backend"
)

func (k ErrorKind) Category() ErrorCategory {
	switch k {
	case KindBelowMinimum, KindAboveMaximum, KindInvalidAmount, KindInvalidInvoiceFormat,
		KindInvoiceExpired, KindInvalidPubkey, KindInvalidPaymentHash, KindInvalidTransition:
		return CategoryValidation
	case KindPolicyViolation, KindFeeTooHigh, KindDailyLimitExceeded, KindDuplicatePayment:
		return CategoryPolicy
	case KindBackendUnavailable, KindBackendConnectionError:
		return CategoryConnectivity
	case KindTimedOut:
		return CategoryAmbiguous
	default:
		return CategoryBackend
	}
}

// Error is the normalized error type returned across component boundaries.
// Reason narrows a PolicyViolation down to the rule that rejected it.
type Error struct {
	Kind    ErrorKind
	Reason  ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	kind := string(e.Kind)
	if e.Reason != "" {
		kind = fmt.Sprintf("%s(%s)", e.Kind, e.Reason)
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", kind, e.Err)
	default:
		return kind
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind, so that a PolicyViolation caused by the
// daily cap satisfies both errors.Is(err, ErrPolicyViolation) and
// errors.Is(err, ErrDailyLimitExceeded).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	if t.Reason != "" {
		return t.Kind == e.Kind && t.Reason == e.Reason
	}
	return t.Kind == e.Kind || (e.Reason != "" && t.Kind == e.Reason)
}

var (
	ErrBelowMinimum           = &Error{Kind: KindBelowMinimum}
	ErrAboveMaximum           = &Error{Kind: KindAboveMaximum}
	ErrInvalidAmount          = &Error{Kind: KindInvalidAmount}
	ErrInvalidInvoiceFormat   = &Error{Kind: KindInvalidInvoiceFormat}
	ErrInvoiceExpired         = &Error{Kind: KindInvoiceExpired}
	ErrInvalidPubkey          = &Error{Kind: KindInvalidPubkey}
	ErrInvalidPaymentHash     = &Error{Kind: KindInvalidPaymentHash}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrPolicyViolation        = &Error{Kind: KindPolicyViolation}
	ErrFeeTooHigh             = &Error{Kind: KindFeeTooHigh}
	ErrDailyLimitExceeded     = &Error{Kind: KindDailyLimitExceeded}
	ErrDuplicatePayment       = &Error{Kind: KindDuplicatePayment}
	ErrBackendUnavailable     = &Error{Kind: KindBackendUnavailable}
	ErrBackendConnectionError = &Error{Kind: KindBackendConnectionError}
	ErrTimedOut               = &Error{Kind: KindTimedOut}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds}
	ErrNotSupported           = &Error{Kind: KindNotSupported}
	ErrBackendError           = &Error{Kind: KindBackendError}
)

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewPolicyViolation wraps a rule rejection. If the cause already is a
// PolicyViolation it is returned unchanged.
func NewPolicyViolation(cause *Error) *Error {
	if cause.Kind == KindPolicyViolation {
		return cause
	}
	return &Error{Kind: KindPolicyViolation, Reason: cause.Kind, Message: cause.Message, Err: cause.Err}
}

func NewNotFoundError(what string) *Error {
	return NewError(KindNotFound, "%s not found", what)
}

func NewNotSupportedError(backend string, capability Capability) *Error {
	return NewError(KindNotSupported, "backend %s does not support %s", backend, capability)
}

// KindOf returns the kind of a normalized error, or BackendError for any
// other non-nil error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var lnErr *Error
	if errors.As(err, &lnErr) {
		return lnErr.Kind
	}
	return KindBackendError
}

// ReasonOf returns the rule behind a PolicyViolation, or the kind itself.
func ReasonOf(err error) ErrorKind {
	var lnErr *Error
	if errors.As(err, &lnErr) {
		if lnErr.Reason != "" {
			return lnErr.Reason
		}
		return lnErr.Kind
	}
	return KindOf(err)
}

// notSentError marks a failure that happened before the backend received the
// request, such as a refused dial.
type notSentError struct {
	err error
}

func (e *notSentError) Error() string {
	return e.err.Error()
}

func (e *notSentError) Unwrap() error {
	return e.err
}

// NotSent marks err as raised before the request reached the backend.
func NotSent(err error) error {
	if err == nil || IsNotSent(err) {
		return err
	}
	return &notSentError{err: err}
}

// IsNotSent reports whether err is known to have happened before the request
// reached the backend. A connection error without this mark may have
// happened after the backend accepted a payment.
func IsNotSent(err error) bool {
	var notSent *notSentError
	return errors.As(err, &notSent)
}

// IsTransient reports whether a read-only call that failed with err may be
// retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindBackendConnectionError
}
