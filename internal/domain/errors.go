package domain

import "fmt"

// Code enumerates the stable error codes returned to REST callers.
type Code int

const (
	CodeInvalidUserID            Code = 10001
	CodeInvalidAuthTokenPrefix   Code = 10002
	CodeAuthHeaderNotFound       Code = 10003
	CodeInvalidAuthToken         Code = 10004
	CodeWrongTokenFormat         Code = 10005
	CodeInvalidAuthMode          Code = 10006
	CodeInsufficientAccountFunds Code = 10021
	CodeInvalidOrderExchange     Code = 10022
	CodeOrderNotFound            Code = 10023
	CodeNotTradingTime           Code = 10024
	CodeCancelOrderFailed        Code = 10025
	CodeNoPositionsAvailable     Code = 10026
	CodeNotEnoughPositions       Code = 10027
	CodeGetQuotesFailed          Code = 10028
	CodeEntityNotFound           Code = 10029
	CodeUserTerminated           Code = 10030
)

// Error is a domain-level failure carrying a stable code for the REST
// façade's error-mapping middleware to translate into an HTTP response.
type Error struct {
	code   Code
	detail string
}

func (e *Error) Error() string { return e.detail }

// Code returns the stable error code for this failure.
func (e *Error) Code() Code { return e.code }

func newError(code Code, format string, args ...any) *Error {
	return &Error{code: code, detail: fmt.Sprintf(format, args...)}
}

// ErrInsufficientFunds is returned when a buy's cash requirement exceeds
// the user's available cash.
func ErrInsufficientFunds(needed, available string) error {
	return newError(CodeInsufficientAccountFunds, "insufficient funds: need %s, available %s", needed, available)
}

// ErrNoPositionsAvailable is returned when a sell targets a (user, symbol,
// exchange) with no open position.
func ErrNoPositionsAvailable(symbol string) error {
	return newError(CodeNoPositionsAvailable, "no position available for %s", symbol)
}

// ErrNotEnoughAvailablePositions is returned when a sell's volume exceeds
// the position's available (unfrozen, settled) volume.
func ErrNotEnoughAvailablePositions(symbol string, want, have int64) error {
	return newError(CodeNotEnoughPositions, "not enough available shares of %s: want %d, have %d", symbol, want, have)
}

// ErrInvalidExchange is returned when an order names an exchange this
// engine does not match orders on.
func ErrInvalidExchange(exchange string) error {
	return newError(CodeInvalidOrderExchange, "invalid exchange: %s", exchange)
}

// ErrOrderNotFound is returned when an entrust-id does not resolve to a
// known order.
func ErrOrderNotFound(entrustID string) error {
	return newError(CodeOrderNotFound, "order not found: %s", entrustID)
}

// ErrCancelOrderFailed is returned when a cancel request targets an order
// that is no longer open.
func ErrCancelOrderFailed(entrustID string) error {
	return newError(CodeCancelOrderFailed, "order already settled, cannot cancel: %s", entrustID)
}

// ErrGetQuotesFailed is returned when the quote provider could not be
// reached or returned no data for a symbol.
func ErrGetQuotesFailed(symbol string, cause error) error {
	return newError(CodeGetQuotesFailed, "failed to fetch quotes for %s: %v", symbol, cause)
}

// ErrEntityNotFound is the generic not-found error raised by repositories.
func ErrEntityNotFound(entity, key string) error {
	return newError(CodeEntityNotFound, "%s not found: %s", entity, key)
}

// ErrUserTerminated is returned when an order is submitted for a user whose
// account has been terminated.
func ErrUserTerminated(userID string) error {
	return newError(CodeUserTerminated, "user terminated: %s", userID)
}

// ErrInvalidAuthTokenPrefix, ErrAuthHeaderNotFound, ErrInvalidAuthToken,
// ErrWrongTokenFormat, ErrInvalidUserID back the bearer-token parsing in
// internal/auth.
func ErrInvalidAuthTokenPrefix() error { return newError(CodeInvalidAuthTokenPrefix, "invalid auth token prefix") }
func ErrAuthHeaderNotFound() error     { return newError(CodeAuthHeaderNotFound, "authorization header not found") }
func ErrInvalidAuthToken(cause error) error {
	return newError(CodeInvalidAuthToken, "invalid auth token: %v", cause)
}
func ErrWrongTokenFormat() error { return newError(CodeWrongTokenFormat, "wrong token format") }
func ErrInvalidUserID(id string) error {
	return newError(CodeInvalidUserID, "invalid user id: %s", id)
}
