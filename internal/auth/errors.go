// internal/auth/errors.go
package auth

import "errors"

// Session token rejection reasons. Handlers map all of these to 401 with a
// generic detail; claim contents are never echoed back.
var (
	ErrTokenExpired  = errors.New("session token expired")
	ErrTokenInvalid  = errors.New("invalid session token")
	ErrInvalidIssuer = errors.New("invalid session token issuer")
	ErrShopMismatch  = errors.New("shop context mismatch")
)
