package domain

import "errors"

var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("order not found")
	ErrConflict       = errors.New("conflict")
	ErrNotCancellable = errors.New("order is not cancellable")
	ErrPersistence    = errors.New("persistence error")
	ErrMessaging      = errors.New("messaging error")
)
