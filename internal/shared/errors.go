package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid indicates a missing, malformed or expired access token.
	ErrTokenInvalid = errors.New("token invalid or expired")
	// ErrForbidden indicates a denied authorization check.
	ErrForbidden = errors.New("forbidden")
)
