// Package apperr defines the error kinds returned by the circulation and
// payment engines and maps them onto HTTP status codes.
//
// Engines return *Error values. Callers branch on the kind with errors.Is
// against the exported sentinels:
//
//	if errors.Is(err, apperr.ErrOutstandingFines) { ... }
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	Internal             Kind = "internal"
	BadRequest           Kind = "bad_request"
	Unauthorized         Kind = "unauthorized"
	NotFound             Kind = "not_found"
	InvalidState         Kind = "invalid_state"
	Forbidden            Kind = "forbidden"
	Conflict             Kind = "conflict"
	InvalidAmount        Kind = "invalid_amount"
	DuplicateTransaction Kind = "duplicate_transaction"
	MissingReference     Kind = "missing_reference"
	GatewayError         Kind = "gateway_error"
	InvalidSignature     Kind = "invalid_signature"
	PaymentNotSuccessful Kind = "payment_not_successful"
	BorrowLimitExceeded  Kind = "borrow_limit_exceeded"
	DuplicateBorrow      Kind = "duplicate_borrow"
	OutstandingFines     Kind = "outstanding_fines"
	Unavailable          Kind = "unavailable"
	RateLimited          Kind = "rate_limited"
)

// Error is a classified failure with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound             = &Error{Kind: NotFound}
	ErrInvalidState         = &Error{Kind: InvalidState}
	ErrForbidden            = &Error{Kind: Forbidden}
	ErrConflict             = &Error{Kind: Conflict}
	ErrInvalidAmount        = &Error{Kind: InvalidAmount}
	ErrDuplicateTransaction = &Error{Kind: DuplicateTransaction}
	ErrMissingReference     = &Error{Kind: MissingReference}
	ErrGateway              = &Error{Kind: GatewayError}
	ErrInvalidSignature     = &Error{Kind: InvalidSignature}
	ErrPaymentNotSuccessful = &Error{Kind: PaymentNotSuccessful}
	ErrBorrowLimitExceeded  = &Error{Kind: BorrowLimitExceeded}
	ErrDuplicateBorrow      = &Error{Kind: DuplicateBorrow}
	ErrOutstandingFines     = &Error{Kind: OutstandingFines}
	ErrUnavailable          = &Error{Kind: Unavailable}
	ErrBadRequest           = &Error{Kind: BadRequest}
	ErrUnauthorized         = &Error{Kind: Unauthorized}
)

var defaultMessages = map[Kind]string{
	Internal:             "internal server error",
	BadRequest:           "bad request",
	Unauthorized:         "not authorized, no valid token",
	NotFound:             "not found",
	InvalidState:         "operation not allowed in the current state",
	Forbidden:            "not allowed for this role",
	Conflict:             "concurrent update conflict",
	InvalidAmount:        "amount must be greater than zero",
	DuplicateTransaction: "transaction id already used",
	MissingReference:     "transaction id is required for manual payments",
	GatewayError:         "payment gateway unavailable",
	InvalidSignature:     "payment verification failed",
	PaymentNotSuccessful: "payment not successful",
	BorrowLimitExceeded:  "borrow limit reached",
	DuplicateBorrow:      "you have already borrowed this book",
	OutstandingFines:     "please clear your pending fines before borrowing",
	Unavailable:          "book not available",
	RateLimited:          "too many requests",
}

// New returns an *Error of the given kind. An empty message uses the kind's default.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the client-facing message for err. Unclassified errors
// never leak their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return defaultMessages[e.Kind]
	}
	return defaultMessages[Internal]
}

// HTTPStatus maps a kind onto a response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case BadRequest, InvalidAmount, MissingReference, InvalidSignature, PaymentNotSuccessful:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidState, Conflict, DuplicateTransaction, DuplicateBorrow:
		return http.StatusConflict
	case BorrowLimitExceeded, OutstandingFines, Unavailable:
		return http.StatusUnprocessableEntity
	case GatewayError:
		return http.StatusBadGateway
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
