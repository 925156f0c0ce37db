package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chesed/internal/models"
)

// Claims is the signed token payload.
type Claims struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	Anonymous   bool   `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies session tokens and remembers signed-out tokens
// until they expire.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	revoked      map[string]time.Time // token id -> expiry
	revokedMutex sync.RWMutex
}

// NewManager creates a token manager.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
}

// Issue signs a token for the user.
func (m *Manager) Issue(u *models.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		Email:       u.Email.String,
		DisplayName: u.DisplayName,
		Anonymous:   u.Anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses the token and returns the session it carries. Admin status is
// not part of the token; the caller resolves it per request.
func (m *Manager) Verify(raw string) (Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, fmt.Errorf("token expired: %w", models.ErrUnauthorized)
		}
		return Session{}, fmt.Errorf("invalid token: %w", models.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return Session{}, fmt.Errorf("token has no subject: %w", models.ErrUnauthorized)
	}
	if m.IsRevoked(claims.ID) {
		return Session{}, fmt.Errorf("token signed out: %w", models.ErrUnauthorized)
	}

	s := Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Anonymous:   claims.Anonymous,
		TokenID:     claims.ID,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Revoke signs a token out until its natural expiry.
func (m *Manager) Revoke(tokenID string, expiresAt time.Time) {
	if tokenID == "" {
		return
	}
	m.revokedMutex.Lock()
	defer m.revokedMutex.Unlock()
	m.revoked[tokenID] = expiresAt
	m.pruneLocked()
}

// IsRevoked reports whether the token id was signed out.
func (m *Manager) IsRevoked(tokenID string) bool {
	m.revokedMutex.RLock()
	defer m.revokedMutex.RUnlock()
	_, ok := m.revoked[tokenID]
	return ok
}

// pruneLocked drops revocations of tokens that have expired anyway.
func (m *Manager) pruneLocked() {
	now := m.now()
	for id, exp := range m.revoked {
		if !exp.IsZero() && now.After(exp) {
			delete(m.revoked, id)
		}
	}
}
