// Package auth handles accounts: e-mail sign-up and sign-in, anonymous sign-in
// and sign-out. Successful calls return a signed session token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chesed/internal/models"
	"chesed/internal/session"
	"chesed/internal/utils"
)

type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Credentials is the sign-up and sign-in request body.
type Credentials struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	DisplayName string `json:"displayName" validate:"max=100"`
}

// Result is returned by every successful sign-in.
type Result struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
	IsAdmin   bool         `json:"isAdmin"`
}

type Service struct {
	store    Store
	sessions *session.Manager
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store Store, sessions *session.Manager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, sessions: sessions, validate: validator.New(), logger: logger, now: time.Now}
}

// SignUp registers an e-mail account. A taken e-mail is ErrConflict.
func (s *Service) SignUp(ctx context.Context, c Credentials) (*Result, error) {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	if err := s.validate.Struct(c); err != nil {
		return nil, fmt.Errorf("sign up: %v: %w", err, models.ErrValidation)
	}
	hash, err := utils.HashPassword(c.Password)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrValidation)
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        models.NewNullString(c.Email),
		PasswordHash: hash,
		DisplayName:  c.DisplayName,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", zap.String("user_id", u.ID))
	return s.issue(ctx, u)
}

// SignIn checks an e-mail and password. Unknown e-mails and wrong passwords
// are both ErrUnauthorized.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Result, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("wrong e-mail or password: %w", models.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if err := utils.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, utils.ErrPasswordMismatch) {
			return nil, fmt.Errorf("wrong e-mail or password: %w", models.ErrUnauthorized)
		}
		return nil, err
	}
	return s.issue(ctx, u)
}

// Anonymous creates a throwaway account. Anonymous users can browse but not
// take deliveries.
func (s *Service) Anonymous(ctx context.Context, displayName string) (*Result, error) {
	u := &models.User{
		ID:          uuid.NewString(),
		DisplayName: strings.TrimSpace(displayName),
		Anonymous:   true,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

// SignOut revokes the token the session was built from.
func (s *Service) SignOut(sess session.Session) {
	s.sessions.Revoke(sess.TokenID, sess.ExpiresAt)
	s.logger.Info("user signed out", zap.String("user_id", sess.UserID))
}

// Authenticate verifies a bearer token and resolves the admin flag.
func (s *Service) Authenticate(ctx context.Context, token string) (session.Session, error) {
	sess, err := s.sessions.Verify(token)
	if err != nil {
		return session.Session{}, err
	}
	if !sess.Anonymous {
		isAdmin, err := s.store.IsAdmin(ctx, sess.UserID)
		if err != nil {
			return session.Session{}, err
		}
		sess.IsAdmin = isAdmin
	}
	return sess, nil
}

// Me returns the account behind a session.
func (s *Service) Me(ctx context.Context, sess session.Session) (*models.User, error) {
	return s.store.GetUserByID(ctx, sess.UserID)
}

func (s *Service) issue(ctx context.Context, u *models.User) (*Result, error) {
	token, expiresAt, err := s.sessions.Issue(u)
	if err != nil {
		return nil, err
	}
	res := &Result{Token: token, ExpiresAt: expiresAt, User: u}
	if !u.Anonymous {
		if res.IsAdmin, err = s.store.IsAdmin(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}
