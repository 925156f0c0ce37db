package volunteers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chesed/internal/models"
	"chesed/internal/session"
)

var now = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	vols    []models.Volunteer
	counts  map[string]models.VolunteerCounts
	touched []string
}

func (f *fakeStore) TouchVolunteer(_ context.Context, id, name, email string, at time.Time) (*models.Volunteer, error) {
	f.touched = append(f.touched, name)
	return &models.Volunteer{ID: id, DisplayName: name, Email: email, LastSeen: models.NewNullTime(at)}, nil
}

func (f *fakeStore) ListVolunteers(context.Context) ([]models.Volunteer, error) {
	return f.vols, nil
}

func (f *fakeStore) VolunteerCounts(context.Context) (map[string]models.VolunteerCounts, error) {
	return f.counts, nil
}

func newService(store Store) *Service {
	s := NewService(store, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Dana", DisplayName(session.Session{DisplayName: " Dana ", Email: "d@x.org"}))
	assert.Equal(t, "yossi", DisplayName(session.Session{Email: "yossi@example.org"}))
	assert.Equal(t, FALLBACK_DISPLAY_NAME, DisplayName(session.Session{}))
}

func TestHeartbeat(t *testing.T) {
	store := &fakeStore{}
	v, err := newService(store).Heartbeat(context.Background(), session.Session{UserID: "u1", Email: "dana@example.org"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dana"}, store.touched)
	assert.True(t, v.IsOnline(now))

	_, err = newService(store).Heartbeat(context.Background(), session.Session{})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestList(t *testing.T) {
	store := &fakeStore{
		vols: []models.Volunteer{
			{ID: "a", DisplayName: "Avi", Email: "avi@example.org", LastSeen: models.NewNullTime(now.Add(-30 * time.Second))},
			{ID: "b", DisplayName: "Batya", Email: "b@example.org", LastSeen: models.NewNullTime(now.Add(-2 * time.Minute))},
			{ID: "c", DisplayName: "Chaim", Email: "chaim@example.org"},
		},
		counts: map[string]models.VolunteerCounts{
			"b": {Assigned: 1, Delivered: 9},
			"c": {Delivered: 4},
		},
	}
	svc := newService(store)

	all, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.False(t, all[0].Online)
	assert.Equal(t, 1, all[0].AssignedCount)
	assert.True(t, all[2].Online)

	online, err := svc.List(context.Background(), Filter{OnlineOnly: true})
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "a", online[0].ID)

	found, err := svc.List(context.Background(), Filter{Search: "CHAIM@"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "c", found[0].ID)
}

func TestNames(t *testing.T) {
	store := &fakeStore{vols: []models.Volunteer{{ID: "a", DisplayName: "Avi"}, {ID: "b", Email: "b@example.org"}}}
	names, err := newService(store).Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "Avi", "b": "b@example.org"}, names)
}
