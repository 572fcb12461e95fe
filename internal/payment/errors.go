package payment

import "errors"

var (
	ErrInvalidRequest     = errors.New("invalid payment request")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrMalformedCallback  = errors.New("malformed payment callback")
	ErrUnknownPayment     = errors.New("unknown or already resolved payment")
	ErrDuplicatePending   = errors.New("pending payment already exists")
	ErrInvalidTransition  = errors.New("invalid payment state transition")
	ErrReferenceConflict  = errors.New("payment reference recorded for another subject")
)
