package session

import (
	"context"
	"time"
)

// Session is the identity of the caller for one request. It is passed
// explicitly to every operation that needs to know who is acting.
type Session struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName"`
	Anonymous   bool      `json:"anonymous"`
	IsAdmin     bool      `json:"isAdmin"`
	TokenID     string    `json:"-"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Label is the name used in notifications and audit fields.
func (s Session) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.Email != "" {
		return s.Email
	}
	return s.UserID
}

type contextKey struct {
	name string
}

var sessionContextKey = &contextKey{"Session"}

// WithSession stores the session in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(Session)
	return s, ok
}
