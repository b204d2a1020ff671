// internal/auth/session.go
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"shopgate/internal/shopify"
)

// SessionClaims is the validated payload of an embedded-app session token.
// Reconstructed per request, never persisted.
type SessionClaims struct {
	Issuer     string
	Subject    string
	Audience   []string
	Dest       string
	IssuedAt   time.Time
	Expiration time.Time
}

// SessionVerifier validates the platform's signed session tokens. Tokens
// are HS256-signed with the app's shared secret; the audience must be the
// app's public API key.
type SessionVerifier struct {
	apiKey string
	secret []byte
	leeway time.Duration
}

func NewSessionVerifier(apiKey, secret string) *SessionVerifier {
	return &SessionVerifier{apiKey: apiKey, secret: []byte(secret), leeway: 10 * time.Second}
}

// Verify decodes and validates a session token and derives the calling
// shop from it. The returned shop is the single source of truth for the
// request identity; client-supplied shop parameters are advisory only and
// must be cross-checked with CheckShop.
func (v *SessionVerifier) Verify(raw string) (SessionClaims, string, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.leeway),
		jwt.WithRequiredClaim("iss"),
		jwt.WithRequiredClaim("aud"),
		jwt.WithRequiredClaim("exp"),
		jwt.WithRequiredClaim("sub"),
		jwt.WithRequiredClaim("iat"),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return SessionClaims{}, "", ErrTokenExpired
		}
		return SessionClaims{}, "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims := SessionClaims{
		Issuer:     tok.Issuer(),
		Subject:    tok.Subject(),
		Audience:   tok.Audience(),
		IssuedAt:   tok.IssuedAt(),
		Expiration: tok.Expiration(),
	}
	if d, ok := tok.Get("dest"); ok {
		claims.Dest, _ = d.(string)
	}

	shop := shopFromClaims(claims)
	if shop == "" || !shopify.IsValidShopDomain(shop) {
		return SessionClaims{}, "", ErrInvalidIssuer
	}
	if !IssuerMatchesShop(claims.Issuer, shop) {
		return SessionClaims{}, "", ErrInvalidIssuer
	}
	if !audienceContains(claims.Audience, v.apiKey) {
		return SessionClaims{}, "", fmt.Errorf("%w: audience", ErrTokenInvalid)
	}
	if claims.Subject == "" {
		return SessionClaims{}, "", fmt.Errorf("%w: subject", ErrTokenInvalid)
	}
	return claims, shop, nil
}

// CheckShop enforces the advisory query-parameter cross-check: an explicit
// client-supplied shop must equal the token-derived one.
func CheckShop(derived, supplied string) error {
	if supplied != "" && supplied != derived {
		return ErrShopMismatch
	}
	return nil
}

// shopFromClaims prefers the destination-URL claim; otherwise falls back
// to the issuer matcher chain.
func shopFromClaims(c SessionClaims) string {
	if strings.HasPrefix(c.Dest, "https://") {
		return strings.Trim(strings.TrimPrefix(c.Dest, "https://"), "/")
	}
	return ShopFromIssuer(c.Issuer)
}

func audienceContains(aud []string, key string) bool {
	for _, a := range aud {
		if a == key {
			return true
		}
	}
	return false
}
