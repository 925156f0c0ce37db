// Package stats computes the volunteer statistics page and the admin overview.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chesed/internal/models"
	"chesed/internal/session"
)

// TOP_VOLUNTEERS_LIMIT is the length of the overview leaderboard.
const TOP_VOLUNTEERS_LIMIT = 10

// Store is the data the statistics are read from.
type Store interface {
	DeliveredCounts(ctx context.Context, volunteerID string, day, week, month time.Time) (models.VolunteerStats, error)
	GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error)
	UpdateGoals(ctx context.Context, id string, g models.Goals, at time.Time) error
	StatusCounts(ctx context.Context) (models.StatusCounts, error)
	TopDeliverers(ctx context.Context, limit int) ([]models.VolunteerSummary, error)
	PendingCounts(ctx context.Context) (map[string]int, error)
}

// Overview is the admin dashboard summary.
type Overview struct {
	StatusCounts          models.StatusCounts       `json:"statusCounts"`
	Total                 int                       `json:"total"`
	PendingByNeighborhood map[string]int            `json:"pendingByNeighborhood"`
	TopVolunteers         []models.VolunteerSummary `json:"topVolunteers"`
}

type Service struct {
	store    Store
	location *time.Location
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the statistics service. Day, week and month boundaries
// are computed in loc.
func NewService(store Store, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, location: loc, validate: validator.New(), logger: logger, now: time.Now}
}

// PeriodStarts returns the start of the day, of the week (weeks start on
// Sunday) and of the month that contain now, in loc.
func PeriodStarts(now time.Time, loc *time.Location) (day, week, month time.Time) {
	now = now.In(loc)
	day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	week = day.AddDate(0, 0, -int(now.Weekday()))
	month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	return day, week, month
}

// Progress is done as a percentage of goal, capped at 100. A zero goal has no progress.
func Progress(done, goal int) int {
	if goal <= 0 {
		return 0
	}
	p := done * 100 / goal
	if p > 100 {
		return 100
	}
	return p
}

// ForVolunteer builds the statistics page of the calling volunteer.
func (s *Service) ForVolunteer(ctx context.Context, sess session.Session) (*models.VolunteerStats, error) {
	if sess.UserID == "" {
		return nil, models.ErrUnauthorized
	}
	day, week, month := PeriodStarts(s.now(), s.location)
	st, err := s.store.DeliveredCounts(ctx, sess.UserID, day, week, month)
	if err != nil {
		return nil, err
	}

	v, err := s.store.GetVolunteer(ctx, sess.UserID)
	switch {
	case err == nil:
		st.Goals = v.Goals
	case errors.Is(err, models.ErrNotFound):
		// no heartbeat yet, so no goals either
	default:
		return nil, err
	}

	st.DailyProgress = Progress(st.DeliveredToday, st.Goals.Daily)
	st.WeeklyProgress = Progress(st.DeliveredWeek, st.Goals.Weekly)
	st.MonthProgress = Progress(st.DeliveredMonth, st.Goals.Monthly)
	return &st, nil
}

// SetGoals replaces the calling volunteer's goals.
func (s *Service) SetGoals(ctx context.Context, sess session.Session, g models.Goals) error {
	if sess.UserID == "" {
		return models.ErrUnauthorized
	}
	if err := s.validate.Struct(g); err != nil {
		return fmt.Errorf("goals: %v: %w", err, models.ErrValidation)
	}
	if err := s.store.UpdateGoals(ctx, sess.UserID, g, s.now()); err != nil {
		return err
	}
	s.logger.Info("goals updated", zap.String("volunteer_id", sess.UserID),
		zap.Int("daily", g.Daily), zap.Int("weekly", g.Weekly), zap.Int("monthly", g.Monthly))
	return nil
}

// Overview summarises all deliveries for admins.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	counts, err := s.store.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.PendingCounts(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.store.TopDeliverers(ctx, TOP_VOLUNTEERS_LIMIT)
	if err != nil {
		return nil, err
	}
	o := &Overview{StatusCounts: counts, PendingByNeighborhood: pending, TopVolunteers: top}
	for _, n := range counts {
		o.Total += n
	}
	if o.TopVolunteers == nil {
		o.TopVolunteers = []models.VolunteerSummary{}
	}
	return o, nil
}
