// Package assignment owns delivery state: the claim protocol over the pending
// index, releases, status transitions and the admin edit paths that must keep
// the index consistent.
package assignment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chesed/internal/constants"
	"chesed/internal/events"
	"chesed/internal/models"
	"chesed/internal/session"
)

// Store is the persistence the service needs. *db.Store implements it.
type Store interface {
	GetDelivery(ctx context.Context, id string) (*models.Delivery, error)
	CreateDelivery(ctx context.Context, d *models.Delivery) error
	ListDeliveries(ctx context.Context, f models.DeliveryFilter) ([]models.Delivery, error)
	ListActiveForVolunteer(ctx context.Context, volunteerID string) ([]models.Delivery, error)
	UpdateDelivery(ctx context.Context, id string, mutate func(d *models.Delivery) error) (*models.Delivery, error)
	DeleteDeliveries(ctx context.Context, ids []string) (int, error)

	PendingForNeighborhood(ctx context.Context, neighborhood string, limit int) ([]models.PendingIndexEntry, error)
	ClaimDelivery(ctx context.Context, deliveryID, volunteerID string, at time.Time) (bool, error)
	ReleaseDelivery(ctx context.Context, deliveryID string, at time.Time) (*models.Delivery, error)
	SetDeliveryStatus(ctx context.Context, deliveryID, status, actorID string, at time.Time) (*models.Delivery, error)
	CompleteDelivery(ctx context.Context, deliveryID string, at time.Time) error

	UpsertPendingEntry(ctx context.Context, e models.PendingIndexEntry) error
	DeletePendingEntry(ctx context.Context, deliveryID string) error
	RebuildPendingIndex(ctx context.Context, at time.Time) (int, error)

	UpsertNeighborhood(ctx context.Context, name string) (*models.Neighborhood, error)
}

// Publisher receives change events. events.Broker implements it.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Service implements delivery assignment and record management.
type Service struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the service. publisher may be nil.
func NewService(store Store, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// ClaimResult reports how a claim request went.
type ClaimResult struct {
	Requested   int      `json:"requested"`
	Claimed     int      `json:"claimed"`
	DeliveryIDs []string `json:"deliveryIds"`
	Outcome     string   `json:"outcome"`
	Message     string   `json:"message"`
}

// Claim assigns up to n pending deliveries from the neighborhood to the caller.
// Candidates come from the pending index, over-fetched to absorb races; each is
// taken with a conditional update so a delivery can never be claimed twice.
func (s *Service) Claim(ctx context.Context, sess session.Session, neighborhood string, n int) (*ClaimResult, error) {
	if sess.UserID == "" {
		return nil, models.ErrUnauthorized
	}
	neighborhood = strings.TrimSpace(neighborhood)
	if neighborhood == "" {
		return nil, fmt.Errorf("neighborhood is required: %w", models.ErrValidation)
	}
	if n < 1 {
		n = 1
	}
	if n > constants.MAX_CLAIM_COUNT {
		n = constants.MAX_CLAIM_COUNT
	}

	candidates, err := s.store.PendingForNeighborhood(ctx, neighborhood, n*constants.CLAIM_OVERFETCH_FACTOR)
	if err != nil {
		return nil, fmt.Errorf("read pending index: %w", err)
	}

	result := &ClaimResult{Requested: n, DeliveryIDs: []string{}}
	for _, c := range candidates {
		if result.Claimed >= n {
			break
		}
		won, err := s.store.ClaimDelivery(ctx, c.DeliveryID, sess.UserID, s.now())
		if err != nil {
			s.logger.Warn("claim attempt failed", zap.String("delivery_id", c.DeliveryID), zap.Error(err))
			continue
		}
		// Either way the entry no longer points at a claimable delivery.
		if errDel := s.store.DeletePendingEntry(ctx, c.DeliveryID); errDel != nil {
			s.logger.Warn("pending entry left behind", zap.String("delivery_id", c.DeliveryID), zap.Error(errDel))
		}
		if !won {
			s.logger.Debug("claim lost or stale entry", zap.String("delivery_id", c.DeliveryID))
			continue
		}
		result.Claimed++
		result.DeliveryIDs = append(result.DeliveryIDs, c.DeliveryID)
		s.publish(ctx, events.Event{
			Type:         constants.EVENT_DELIVERY_CLAIMED,
			DeliveryID:   c.DeliveryID,
			Neighborhood: neighborhood,
			ActorID:      sess.UserID,
		})
	}

	switch {
	case result.Claimed == 0:
		result.Outcome = constants.CLAIM_OUTCOME_NONE
		result.Message = "No deliveries available in " + neighborhood
	case result.Claimed < n:
		result.Outcome = constants.CLAIM_OUTCOME_PARTIAL
		result.Message = fmt.Sprintf("Only %d of %d deliveries were available", result.Claimed, n)
	default:
		result.Outcome = constants.CLAIM_OUTCOME_FULL
		result.Message = fmt.Sprintf("Claimed %d deliveries", result.Claimed)
	}

	s.logger.Info("claim finished",
		zap.String("volunteer_id", sess.UserID),
		zap.String("neighborhood", neighborhood),
		zap.Int("requested", n),
		zap.Int("claimed", result.Claimed),
		zap.Int("candidates", len(candidates)))
	return result, nil
}

// Release returns a delivery to the pending pool and makes it discoverable again.
// Volunteers may release only their own deliveries.
func (s *Service) Release(ctx context.Context, sess session.Session, deliveryID string) (*models.Delivery, error) {
	d, err := s.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin && !d.IsAssignedTo(sess.UserID) {
		return nil, fmt.Errorf("delivery %s is not assigned to you: %w", deliveryID, models.ErrForbidden)
	}

	now := s.now()
	d, err = s.store.ReleaseDelivery(ctx, deliveryID, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertPendingEntry(ctx, models.PendingIndexEntry{
		DeliveryID:   d.ID,
		Neighborhood: d.Address.Neighborhood,
		CreatedAt:    now,
	}); err != nil {
		return d, fmt.Errorf("delivery released but not re-indexed: %w", err)
	}

	s.publish(ctx, events.Event{
		Type:         constants.EVENT_DELIVERY_RELEASED,
		DeliveryID:   d.ID,
		Neighborhood: d.Address.Neighborhood,
		ActorID:      sess.UserID,
	})
	return d, nil
}

// TransitionStatus moves an assigned delivery through the volunteer flow. The
// assignee is kept and the pending index is not touched.
func (s *Service) TransitionStatus(ctx context.Context, sess session.Session, deliveryID, status string) (*models.Delivery, error) {
	if !constants.VolunteerStatuses[status] && status != constants.STATUS_PENDING {
		return nil, fmt.Errorf("status %q is not allowed here: %w", status, models.ErrValidation)
	}
	d, err := s.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin && !d.IsAssignedTo(sess.UserID) {
		return nil, fmt.Errorf("delivery %s is not assigned to you: %w", deliveryID, models.ErrForbidden)
	}

	d, err = s.store.SetDeliveryStatus(ctx, deliveryID, status, sess.UserID, s.now())
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:         constants.EVENT_DELIVERY_UPDATED,
		DeliveryID:   d.ID,
		Neighborhood: d.Address.Neighborhood,
		ActorID:      sess.UserID,
	})
	return d, nil
}

// Complete hides a delivered delivery from the volunteer's active list.
func (s *Service) Complete(ctx context.Context, sess session.Session, deliveryID string) error {
	d, err := s.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		return err
	}
	if !sess.IsAdmin && !d.IsAssignedTo(sess.UserID) {
		return fmt.Errorf("delivery %s is not assigned to you: %w", deliveryID, models.ErrForbidden)
	}
	if d.Status != constants.STATUS_DELIVERED {
		return fmt.Errorf("delivery %s is %s, not delivered: %w", deliveryID, d.Status, models.ErrConflict)
	}
	if err := s.store.CompleteDelivery(ctx, deliveryID, s.now()); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Type: constants.EVENT_DELIVERY_UPDATED, DeliveryID: deliveryID, ActorID: sess.UserID})
	return nil
}

// MyDeliveries lists the caller's deliveries that are not marked done.
func (s *Service) MyDeliveries(ctx context.Context, sess session.Session) ([]models.Delivery, error) {
	return s.store.ListActiveForVolunteer(ctx, sess.UserID)
}

// List returns deliveries for the admin screen.
func (s *Service) List(ctx context.Context, f models.DeliveryFilter) ([]models.Delivery, error) {
	return s.store.ListDeliveries(ctx, f)
}

// Get reads one delivery.
func (s *Service) Get(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	return s.store.GetDelivery(ctx, deliveryID)
}

// SyncIndex applies the index-sync rule: a pending, unassigned delivery has an
// index entry carrying its current neighborhood, anything else has none.
func (s *Service) SyncIndex(ctx context.Context, d *models.Delivery) error {
	if d.IsPendingUnassigned() {
		return s.store.UpsertPendingEntry(ctx, models.PendingIndexEntry{
			DeliveryID:   d.ID,
			Neighborhood: d.Address.Neighborhood,
			CreatedAt:    s.now(),
		})
	}
	return s.store.DeletePendingEntry(ctx, d.ID)
}

// RebuildIndex recomputes the pending index from all deliveries.
func (s *Service) RebuildIndex(ctx context.Context, sess session.Session) (int, error) {
	n, err := s.store.RebuildPendingIndex(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.publish(ctx, events.Event{Type: constants.EVENT_INDEX_REBUILT, ActorID: sess.UserID, Count: n})
	return n, nil
}

// NewDelivery is the input for creating a delivery by hand or from an import row.
type NewDelivery struct {
	RecipientName string  `json:"recipientName" validate:"required,max=200"`
	Street        string  `json:"street" validate:"required,max=300"`
	City          string  `json:"city" validate:"max=100"`
	Neighborhood  string  `json:"neighborhood" validate:"max=100"`
	Apartment     string  `json:"apartment" validate:"max=200"`
	DoorCode      string  `json:"doorCode" validate:"max=50"`
	Phone         string  `json:"phone" validate:"max=50"`
	PackageCount  int     `json:"packageCount" validate:"gte=0,lte=100"`
	Notes         string  `json:"notes" validate:"max=2000"`
	HouseholdSize int     `json:"householdSize" validate:"gte=0,lte=100"`
	Campaign      string  `json:"campaign" validate:"max=200"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	HasCoords     bool    `json:"-"`
}

// Create stores a new pending delivery together with its index entry.
func (s *Service) Create(ctx context.Context, sess session.Session, in NewDelivery, defaultCity string) (*models.Delivery, error) {
	name := strings.TrimSpace(in.RecipientName)
	street := strings.TrimSpace(in.Street)
	if name == "" || street == "" {
		return nil, fmt.Errorf("recipient name and street are required: %w", models.ErrValidation)
	}
	city := strings.TrimSpace(in.City)
	if city == "" {
		city = defaultCity
	}
	count := in.PackageCount
	if count <= 0 {
		count = constants.DEFAULT_PACKAGE_COUNT
	}

	now := s.now()
	d := &models.Delivery{
		ID:            uuid.NewString(),
		RecipientName: name,
		Address: models.Address{
			Street:       street,
			City:         city,
			Neighborhood: strings.TrimSpace(in.Neighborhood),
			Apartment:    strings.TrimSpace(in.Apartment),
			DoorCode:     strings.TrimSpace(in.DoorCode),
		},
		Phone:        strings.TrimSpace(in.Phone),
		PackageCount: count,
		Notes:        strings.TrimSpace(in.Notes),
		Campaign:     strings.TrimSpace(in.Campaign),
		Status:       constants.STATUS_PENDING,
		CreatedBy:    sess.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.HouseholdSize > 0 {
		d.HouseholdSize = models.NewNullInt64(int64(in.HouseholdSize))
	}
	if in.HasCoords || in.Lat != 0 || in.Lng != 0 {
		d.Address.Lat = models.NewNullFloat64(in.Lat)
		d.Address.Lng = models.NewNullFloat64(in.Lng)
	}

	if err := s.store.CreateDelivery(ctx, d); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:         constants.EVENT_DELIVERY_CREATED,
		DeliveryID:   d.ID,
		Neighborhood: d.Address.Neighborhood,
		ActorID:      sess.UserID,
	})
	return d, nil
}

// UpdateField changes one field of a delivery on behalf of an admin and keeps
// the neighborhood list and the pending index consistent.
func (s *Service) UpdateField(ctx context.Context, sess session.Session, deliveryID, field string, value any) (*models.Delivery, error) {
	var neighborhoodChanged bool
	d, err := s.store.UpdateDelivery(ctx, deliveryID, func(d *models.Delivery) error {
		before := d.Address.Neighborhood
		if err := ApplyField(d, field, value); err != nil {
			return err
		}
		neighborhoodChanged = d.Address.Neighborhood != before
		d.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.afterAdminEdit(ctx, sess, d, neighborhoodChanged)
}

// AdminSetStatus sets any status directly, outside the volunteer flow.
func (s *Service) AdminSetStatus(ctx context.Context, sess session.Session, deliveryID, status string) (*models.Delivery, error) {
	if !constants.AdminStatuses[status] {
		return nil, fmt.Errorf("unknown status %q: %w", status, models.ErrValidation)
	}
	d, err := s.store.UpdateDelivery(ctx, deliveryID, func(d *models.Delivery) error {
		now := s.now()
		d.Status = status
		d.UpdatedAt = now
		if status == constants.STATUS_DELIVERED && !d.DeliveredAt.Valid {
			by := sess.UserID
			if d.AssignedVolunteerID.Valid {
				by = d.AssignedVolunteerID.String
			}
			d.DeliveredBy = models.NewNullString(by)
			d.DeliveredAt = models.NewNullTime(now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.afterAdminEdit(ctx, sess, d, false)
}

// Assign hands a delivery to a specific volunteer.
func (s *Service) Assign(ctx context.Context, sess session.Session, deliveryID, volunteerID string) (*models.Delivery, error) {
	volunteerID = strings.TrimSpace(volunteerID)
	if volunteerID == "" {
		return nil, fmt.Errorf("volunteer is required: %w", models.ErrValidation)
	}
	d, err := s.store.UpdateDelivery(ctx, deliveryID, func(d *models.Delivery) error {
		d.Status = constants.STATUS_ASSIGNED
		d.AssignedVolunteerID = models.NewNullString(volunteerID)
		d.VolunteerCompleted = false
		d.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.afterAdminEdit(ctx, sess, d, false)
}

// Unassign clears the assignee and returns the delivery to pending. Same as
// Release but without the holder check.
func (s *Service) Unassign(ctx context.Context, sess session.Session, deliveryID string) (*models.Delivery, error) {
	sess.IsAdmin = true
	return s.Release(ctx, sess, deliveryID)
}

func (s *Service) afterAdminEdit(ctx context.Context, sess session.Session, d *models.Delivery, neighborhoodChanged bool) (*models.Delivery, error) {
	if neighborhoodChanged && d.Address.Neighborhood != "" {
		if _, err := s.store.UpsertNeighborhood(ctx, d.Address.Neighborhood); err != nil {
			s.logger.Warn("neighborhood upsert failed", zap.String("neighborhood", d.Address.Neighborhood), zap.Error(err))
		}
	}
	if err := s.SyncIndex(ctx, d); err != nil {
		return d, fmt.Errorf("delivery saved but pending index not synced: %w", err)
	}
	s.publish(ctx, events.Event{
		Type:         constants.EVENT_DELIVERY_UPDATED,
		DeliveryID:   d.ID,
		Neighborhood: d.Address.Neighborhood,
		ActorID:      sess.UserID,
	})
	return d, nil
}

// Delete removes deliveries and their index entries.
func (s *Service) Delete(ctx context.Context, sess session.Session, ids []string) (int, error) {
	n, err := s.store.DeleteDeliveries(ctx, ids)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.publish(ctx, events.Event{Type: constants.EVENT_DELIVERY_DELETED, DeliveryID: id, ActorID: sess.UserID})
	}
	return n, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
	}
}
