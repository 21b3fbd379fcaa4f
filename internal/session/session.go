// Package session carries the per-call caller context: who owns the data
// being touched, their subscription tier and locale. A Session is threaded
// explicitly through every repository and engine call; there is no ambient
// process-wide current-user state.
package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stallbook/stallbook/internal/models"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Session identifies the owner on whose behalf an operation runs.
type Session struct {
	OwnerID string
	Tier    models.Tier
	// Locale is the owner's 2-letter lowercase locale code ("es", "en").
	// It feeds the receipt identifier scheme.
	Locale string
}

func (s Session) Premium() bool {
	return s.Tier == models.TierPremium
}

// Validate checks the fields a freshly built Session must carry.
func (s Session) Validate() error {
	if s.OwnerID == "" {
		return fmt.Errorf("session: empty owner id")
	}
	if s.Tier != models.TierFree && s.Tier != models.TierPremium {
		return fmt.Errorf("session: unknown tier %q", s.Tier)
	}
	if len(s.Locale) != 2 {
		return fmt.Errorf("session: locale must be a 2-letter code, got %q", s.Locale)
	}
	return nil
}

// Claims is the claim set the external auth provider puts in its tokens.
type Claims struct {
	jwt.RegisteredClaims
	Tier   string `json:"tier"`
	Locale string `json:"locale"`
}

// FromToken builds a Session from an HMAC-signed JWT issued by the auth
// provider. The subject claim is the owner id.
func FromToken(tokenString, secret string) (Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Session{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Session{}, ErrInvalidToken
	}

	s := Session{
		OwnerID: claims.Subject,
		Tier:    models.Tier(claims.Tier),
		Locale:  claims.Locale,
	}
	if s.Tier == "" {
		s.Tier = models.TierFree
	}
	if s.Locale == "" {
		s.Locale = "es"
	}
	if err := s.Validate(); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return s, nil
}
