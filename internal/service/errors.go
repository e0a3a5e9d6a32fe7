package service

import "errors"

// Failure kinds returned to the HTTP layer. Match with errors.Is.
var (
	ErrIncorrectCredentials   = errors.New("email address or password is incorrect")
	ErrInvalidCredentials     = errors.New("could not validate credentials")
	ErrStoreUnavailable       = errors.New("credential store unavailable")
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmailAlreadyRegistered = errors.New("email address is already registered")
	ErrTooManyAttempts        = errors.New("too many failed login attempts")
)
