package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrForbidden       = errors.New("auth: forbidden")
	ErrNotFound        = errors.New("auth: not found")
	ErrConflict        = errors.New("auth: resource conflict")
	ErrInvalidInput    = errors.New("auth: invalid input")
	ErrUnexpected      = errors.New("auth: unexpected failure")
)

// ErrInvalidToken indicates the credential failed verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// isTaxonomy reports whether err already belongs to the stable failure
// taxonomy and may surface to callers as-is.
func isTaxonomy(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidInput)
}
