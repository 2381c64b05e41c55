package exam

import "errors"

// Failure taxonomy for the attempt lifecycle. Handlers map these onto HTTP
// status codes; everything else surfaces as a 500.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrUserNotFound = errors.New("user not found")
	ErrNoState      = errors.New("state not found")
	ErrBadAnswers   = errors.New("answers length mismatch")
	ErrNotStarted   = errors.New("not started")
	ErrLocked       = errors.New("locked: already submitted")
	ErrExpired      = errors.New("expired")
)
