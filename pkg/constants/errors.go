package constants

import "errors"

// Errors matched with errors.Is across the stores. client.Error values report
// these through their Is method according to their kind.
var (
	ErrNoToken      = errors.New("no authentication token found, please log in")
	ErrUnauthorized = errors.New("session is no longer authorized")
	ErrUserNotFound = errors.New("target user not found")
	ErrSelfShare    = errors.New("cannot share a note with yourself")
	ErrTransport    = errors.New("request could not reach the server")
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("validation failed")
	ErrNoteNotFound       = errors.New("note not found")
	ErrQuotaExceeded      = errors.New("storage quota exceeded")
	ErrNoBaseURL          = errors.New("base url not set")
)
