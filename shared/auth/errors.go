package auth

import "errors"

// Authentication failures. Callers surface all three as the same generic
// "unauthenticated" response; the distinction is for logs only.
var (
	ErrCredentialMalformed = errors.New("credential malformed")
	ErrCredentialExpired   = errors.New("credential expired")
	ErrPrincipalNotFound   = errors.New("principal not found")
)

// IsAuthError reports whether err is one of the authentication failures
func IsAuthError(err error) bool {
	return errors.Is(err, ErrCredentialMalformed) ||
		errors.Is(err, ErrCredentialExpired) ||
		errors.Is(err, ErrPrincipalNotFound)
}
