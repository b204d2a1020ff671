// internal/auth/state.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// StateTTL bounds how long an authorization flow may take between the
// install redirect and the callback.
const StateTTL = 10 * time.Minute

// StateManager issues and verifies the anti-CSRF state token binding an
// OAuth flow to one shop. With a signing secret the token is self-contained
// and survives the cross-site redirect even when the state cookie is
// dropped; without one it degrades to a random opaque value that can only
// be verified by exact cookie match.
type StateManager struct {
	secret []byte
	now    func() time.Time
}

func NewStateManager(secret string) *StateManager {
	return &StateManager{secret: []byte(secret), now: time.Now}
}

// Issue returns a state token for the shop.
func (m *StateManager) Issue(shop string) string {
	if len(m.secret) == 0 {
		buf := make([]byte, 24)
		_, _ = rand.Read(buf)
		return base64.RawURLEncoding.EncodeToString(buf)
	}
	now := m.now()
	tok, err := jwt.NewBuilder().
		Claim("shop", shop).
		IssuedAt(now).
		Expiration(now.Add(StateTTL)).
		Build()
	if err != nil {
		return ""
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, m.secret))
	if err != nil {
		return ""
	}
	return string(signed)
}

// Verify checks signature, expiry and shop binding. Opaque (cookie-only)
// tokens always fail here; the caller's cookie comparison is the only
// verification path for those.
func (m *StateManager) Verify(state, shop string) bool {
	if len(m.secret) == 0 || state == "" {
		return false
	}
	tok, err := jwt.Parse([]byte(state),
		jwt.WithKey(jwa.HS256, m.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		return false
	}
	claimed, ok := tok.Get("shop")
	if !ok {
		return false
	}
	s, _ := claimed.(string)
	return s == shop
}
