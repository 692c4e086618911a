package models

import "errors"

// Sentinel errors for the order lifecycle. Handlers translate these into
// HTTP statuses or gateway protocol codes; services return them wrapped so
// callers can use errors.Is.
var (
	ErrClientNotFound      = errors.New("client not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid order state transition")
	ErrAlreadyPaid         = errors.New("order already paid")
	ErrTransactionMismatch = errors.New("transaction does not exist")
	ErrUnknownProduct      = errors.New("unknown product")
	ErrGateway             = errors.New("payment gateway error")
)
