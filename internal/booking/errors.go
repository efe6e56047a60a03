package booking

import (
	"errors"
	"fmt"

	"github.com/cx-tal-miterani/flight-inventory/internal/retry"
)

// Kind groups error codes by how a caller should react to them.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindBusinessRule Kind = "business_rule"
	KindNotFound     Kind = "not_found"
	KindTransient    Kind = "transient"
	KindInvariant    Kind = "invariant"
	KindInternal     Kind = "internal"
)

// Stable machine-readable failure codes.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidDepartureDate = "invalid_departure_date"
	CodeInvalidPassengers    = "invalid_passengers"
	CodeSeatCountMismatch    = "seat_count_mismatch"
	CodeDuplicateSeat        = "duplicate_seat"
	CodeInvalidAmount        = "invalid_amount"
	CodeFlightNotFound       = "flight_not_found"
	CodeFlightNotBookable    = "flight_not_bookable"
	CodeBookingNotFound      = "booking_not_found"
	CodePaymentNotFound      = "payment_not_found"
	CodeNotEnoughSeats       = "not_enough_seats"
	CodeSeatUnavailable      = "seat_unavailable"
	CodeBookingNotPayable    = "booking_not_payable"
	CodeAlreadyConfirmed     = "already_confirmed"
	CodeTryAgain             = "try_again"
	CodeInvariantViolation   = "invariant_violation"
	CodeInternal             = "internal_error"
)

// Error is a classified failure. Two Errors match under errors.Is when
// their codes are equal, so sentinels below can be compared against
// errors that carry a more specific message.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy of e with a more specific message.
func (e *Error) With(format string, args ...any) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidRequest       = &Error{Code: CodeInvalidRequest, Kind: KindInvalidInput, Message: "invalid request"}
	ErrInvalidDepartureDate = &Error{Code: CodeInvalidDepartureDate, Kind: KindInvalidInput, Message: "departure date must be YYYY-MM-DD"}
	ErrInvalidPassengers    = &Error{Code: CodeInvalidPassengers, Kind: KindInvalidInput, Message: "between 1 and 9 named passengers are required"}
	ErrSeatCountMismatch    = &Error{Code: CodeSeatCountMismatch, Kind: KindInvalidInput, Message: "number of seats must match number of passengers"}
	ErrDuplicateSeat        = &Error{Code: CodeDuplicateSeat, Kind: KindInvalidInput, Message: "a seat was requested twice"}
	ErrInvalidAmount        = &Error{Code: CodeInvalidAmount, Kind: KindInvalidInput, Message: "amount must be positive"}

	ErrFlightNotFound  = &Error{Code: CodeFlightNotFound, Kind: KindNotFound, Message: "flight not found"}
	ErrBookingNotFound = &Error{Code: CodeBookingNotFound, Kind: KindNotFound, Message: "booking not found"}
	ErrPaymentNotFound = &Error{Code: CodePaymentNotFound, Kind: KindNotFound, Message: "payment not found"}

	ErrFlightNotBookable = &Error{Code: CodeFlightNotBookable, Kind: KindBusinessRule, Message: "flight is not open for booking"}
	ErrNotEnoughSeats    = &Error{Code: CodeNotEnoughSeats, Kind: KindBusinessRule, Message: "not enough seats available"}
	ErrSeatUnavailable   = &Error{Code: CodeSeatUnavailable, Kind: KindBusinessRule, Message: "seat is not available"}
	ErrBookingNotPayable = &Error{Code: CodeBookingNotPayable, Kind: KindBusinessRule, Message: "booking is cancelled"}
	ErrAlreadyConfirmed  = &Error{Code: CodeAlreadyConfirmed, Kind: KindBusinessRule, Message: "booking is already confirmed"}

	ErrTryAgain           = &Error{Code: CodeTryAgain, Kind: KindTransient, Message: "temporary conflict, try again"}
	ErrInvariantViolation = &Error{Code: CodeInvariantViolation, Kind: KindInvariant, Message: "inventory invariant violated"}
	ErrInternal           = &Error{Code: CodeInternal, Kind: KindInternal, Message: "internal error"}
)

// CodeOf returns the stable code for any error. Store errors that are safe
// to retry map to try_again; anything unclassified is internal_error.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if retry.IsTransient(err) {
		return CodeTryAgain
	}
	return CodeInternal
}

// KindOf returns the kind for any error, following the same rules as CodeOf.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if retry.IsTransient(err) {
		return KindTransient
	}
	return KindInternal
}

// Public returns the error to show a caller: classified errors as they are,
// transient store errors as ErrTryAgain, and everything else as ErrInternal
// so driver messages do not leak.
func Public(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if retry.IsTransient(err) {
		return ErrTryAgain
	}
	return ErrInternal
}
