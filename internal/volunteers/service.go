// Package volunteers tracks volunteer presence and builds the admin volunteers page.
package volunteers

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"chesed/internal/models"
	"chesed/internal/session"
)

// FALLBACK_DISPLAY_NAME is used when a volunteer has neither name nor email.
const FALLBACK_DISPLAY_NAME = "מתנדב"

type Store interface {
	TouchVolunteer(ctx context.Context, id, displayName, email string, at time.Time) (*models.Volunteer, error)
	ListVolunteers(ctx context.Context) ([]models.Volunteer, error)
	VolunteerCounts(ctx context.Context) (map[string]models.VolunteerCounts, error)
}

// Filter narrows the admin list.
type Filter struct {
	Search     string
	OnlineOnly bool
}

type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// DisplayName picks the name recorded on heartbeat: the session name, else the
// local part of the email, else a generic label.
func DisplayName(sess session.Session) string {
	if name := strings.TrimSpace(sess.DisplayName); name != "" {
		return name
	}
	if at := strings.Index(sess.Email, "@"); at > 0 {
		return sess.Email[:at]
	}
	if sess.Email != "" {
		return sess.Email
	}
	return FALLBACK_DISPLAY_NAME
}

// Heartbeat marks the caller as seen now.
func (s *Service) Heartbeat(ctx context.Context, sess session.Session) (*models.Volunteer, error) {
	if sess.UserID == "" {
		return nil, models.ErrUnauthorized
	}
	v, err := s.store.TouchVolunteer(ctx, sess.UserID, DisplayName(sess), sess.Email, s.now())
	if err != nil {
		s.logger.Warn("heartbeat failed", zap.String("volunteer_id", sess.UserID), zap.Error(err))
		return nil, err
	}
	return v, nil
}

// List returns volunteers with presence and delivery counts, most deliveries first.
func (s *Service) List(ctx context.Context, f Filter) ([]models.VolunteerSummary, error) {
	vols, err := s.store.ListVolunteers(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.VolunteerCounts(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.VolunteerSummary, 0, len(vols))
	for _, v := range vols {
		online := v.IsOnline(now)
		if f.OnlineOnly && !online {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(v.DisplayName), search) &&
			!strings.Contains(strings.ToLower(v.Email), search) {
			continue
		}
		c := counts[v.ID]
		out = append(out, models.VolunteerSummary{
			Volunteer:      v,
			Online:         online,
			AssignedCount:  c.Assigned,
			DeliveredCount: c.Delivered,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeliveredCount > out[j].DeliveredCount
	})
	return out, nil
}

// Names maps volunteer ids to their labels.
func (s *Service) Names(ctx context.Context) (map[string]string, error) {
	vols, err := s.store.ListVolunteers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(vols))
	for _, v := range vols {
		names[v.ID] = v.Label()
	}
	return names, nil
}
