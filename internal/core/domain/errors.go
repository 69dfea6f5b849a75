package domain

import "errors"

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrBadSignature         = errors.New("webhook signature mismatch")
	ErrAmountMismatch       = errors.New("paid amount does not match plan")
	ErrInvalidAmount        = errors.New("payment amount is not positive")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	ErrGatewayTimeout       = errors.New("payment gateway timed out")
)
