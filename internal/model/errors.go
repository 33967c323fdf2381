package model

import "errors"

// Operation errors. Every failure aborts the whole operation; callers decide
// whether to resubmit.
var (
	ErrInsufficientPayment      = errors.New("insufficient payment")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrArrayLengthMismatch      = errors.New("array length mismatch")
	ErrUnknownTrack             = errors.New("unknown track")
	ErrListingInactive          = errors.New("listing inactive")
	ErrQuantityExceedsAvailable = errors.New("quantity exceeds available")
	ErrIncorrectPayment         = errors.New("incorrect payment")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrInvalidAddress           = errors.New("invalid address")
	ErrUnknownListing           = errors.New("unknown listing")
	ErrPaymentFailed            = errors.New("payment failed")
)

// Error codes as exposed on the API.
const (
	CodeInsufficientPayment      = "insufficient_payment"
	CodeInsufficientBalance      = "insufficient_balance"
	CodeInvalidQuantity          = "invalid_quantity"
	CodeArrayLengthMismatch      = "array_length_mismatch"
	CodeUnknownTrack             = "unknown_track"
	CodeListingInactive          = "listing_inactive"
	CodeQuantityExceedsAvailable = "quantity_exceeds_available"
	CodeIncorrectPayment         = "incorrect_payment"
	CodeUnauthorized             = "unauthorized"
	CodeInvalidAddress           = "invalid_address"
	CodeUnknownListing           = "unknown_listing"
	CodePaymentFailed            = "payment_failed"
	CodeInternal                 = "internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInsufficientPayment, CodeInsufficientPayment},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrInvalidQuantity, CodeInvalidQuantity},
	{ErrArrayLengthMismatch, CodeArrayLengthMismatch},
	{ErrUnknownTrack, CodeUnknownTrack},
	{ErrListingInactive, CodeListingInactive},
	{ErrQuantityExceedsAvailable, CodeQuantityExceedsAvailable},
	{ErrIncorrectPayment, CodeIncorrectPayment},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrInvalidAddress, CodeInvalidAddress},
	{ErrUnknownListing, CodeUnknownListing},
	{ErrPaymentFailed, CodePaymentFailed},
}

// ErrorCode returns the stable code for err, or CodeInternal if err does not
// wrap one of the operation errors.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// ErrorForCode returns the sentinel error for code, or nil if code is unknown.
func ErrorForCode(code string) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return nil
}
