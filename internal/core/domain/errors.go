package domain

import "errors"

var (
	ErrTransport      = errors.New("telemetry transport failure")
	ErrPersistence    = errors.New("alert persistence failure")
	ErrAuthResolution = errors.New("device scope resolution failed")
	ErrDelivery       = errors.New("viewer delivery failed")
	ErrInvalidToken   = errors.New("invalid token")
	ErrUnknownRole    = errors.New("unknown role")
	ErrForbidden      = errors.New("access forbidden")
)
