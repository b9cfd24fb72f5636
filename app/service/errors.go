package service

import "errors"

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnknownEndpoint    = errors.New("webhook endpoint is not configured")
	ErrSignatureInvalid   = errors.New("webhook signature verification failed")
	ErrUnknownChannel     = errors.New("channel is not configured")
	ErrUnknownOperation   = errors.New("unknown sync operation")
	ErrRunInProgress      = errors.New("sync run already in progress")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrMappingNotFound    = errors.New("mapping not found")
)
