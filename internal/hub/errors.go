package hub

import "errors"

// Error taxonomy for the hub. Each class maps to one user-visible outcome:
// auth errors refuse the connection, access errors refuse a single join,
// validation and ownership errors produce a scoped error envelope back to
// the origin connection only.
var (
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrAccessDenied    = errors.New("access denied")
	ErrValidation      = errors.New("invalid payload")
	ErrNotJoined       = errors.New("not joined to topic")
	ErrSessionNotFound = errors.New("session not found")
	ErrNotSessionOwner = errors.New("not the session owner")
	ErrTooManyAttempts = errors.New("too many connection attempts")
)

// Error envelope codes sent to clients.
const (
	codeUnauthorized   = "UNAUTHORIZED"
	codeAccessDenied   = "ACCESS_DENIED"
	codeValidation     = "VALIDATION_ERROR"
	codeNotJoined      = "NOT_JOINED"
	codeSessionInvalid = "SESSION_INVALID"
	codeInternal       = "INTERNAL_ERROR"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return codeUnauthorized
	case errors.Is(err, ErrAccessDenied):
		return codeAccessDenied
	case errors.Is(err, ErrValidation):
		return codeValidation
	case errors.Is(err, ErrNotJoined):
		return codeNotJoined
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNotSessionOwner):
		return codeSessionInvalid
	default:
		return codeInternal
	}
}
