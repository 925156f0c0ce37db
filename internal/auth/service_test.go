package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chesed/internal/models"
	"chesed/internal/session"
)

type memStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	admins map[string]bool
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*models.User{}, admins: map[string]bool{}}
}

func (m *memStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if u.Email.Valid && existing.Email.String == u.Email.String {
			return models.ErrConflict
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email.Valid && u.Email.String == email {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func (m *memStore) IsAdmin(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[id], nil
}

func newService(store Store) *Service {
	return NewService(store, session.NewManager("test-secret-0123456789", time.Hour), nil)
}

func TestSignUpAndSignIn(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	res, err := svc.SignUp(ctx, Credentials{Email: " Dana@Example.org ", Password: "hunter22", DisplayName: "Dana"})
	require.NoError(t, err)
	assert.Equal(t, "dana@example.org", res.User.Email.String)
	assert.NotEmpty(t, res.Token)
	assert.False(t, res.IsAdmin)

	store.admins[res.User.ID] = true
	again, err := svc.SignIn(ctx, "DANA@example.org", "hunter22")
	require.NoError(t, err)
	assert.True(t, again.IsAdmin)

	sess, err := svc.Authenticate(ctx, again.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, sess.UserID)
	assert.True(t, sess.IsAdmin)
	assert.Equal(t, "Dana", sess.DisplayName)
}

func TestSignUp_Rejections(t *testing.T) {
	svc := newService(newMemStore())
	ctx := context.Background()

	_, err := svc.SignUp(ctx, Credentials{Email: "not-an-email", Password: "hunter22"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.SignUp(ctx, Credentials{Email: "a@example.org", Password: "123"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.SignUp(ctx, Credentials{Email: "a@example.org", Password: "hunter22"})
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, Credentials{Email: "A@example.org", Password: "hunter33"})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestSignIn_WrongCredentials(t *testing.T) {
	svc := newService(newMemStore())
	ctx := context.Background()
	_, err := svc.SignUp(ctx, Credentials{Email: "a@example.org", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "a@example.org", "nope-nope")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = svc.SignIn(ctx, "b@example.org", "hunter22")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAnonymousNeverAdmin(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	res, err := svc.Anonymous(ctx, "")
	require.NoError(t, err)
	store.admins[res.User.ID] = true

	sess, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, sess.Anonymous)
	assert.False(t, sess.IsAdmin)
}

func TestSignOutRevokesToken(t *testing.T) {
	svc := newService(newMemStore())
	ctx := context.Background()
	res, err := svc.SignUp(ctx, Credentials{Email: "a@example.org", Password: "hunter22"})
	require.NoError(t, err)

	sess, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	svc.SignOut(sess)

	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
