// Package editrequest implements the volunteer-proposes, admin-approves
// workflow for corrections to delivery records.
package editrequest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chesed/internal/constants"
	"chesed/internal/events"
	"chesed/internal/models"
	"chesed/internal/session"
)

// Store is the persistence the workflow needs. *db.Store implements it.
type Store interface {
	GetDelivery(ctx context.Context, id string) (*models.Delivery, error)
	GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error)
	CreateEditRequest(ctx context.Context, r *models.EditRequest) error
	GetEditRequest(ctx context.Context, id string) (*models.EditRequest, error)
	ListEditRequests(ctx context.Context, status string) ([]models.EditRequest, error)
	ApproveEditRequest(ctx context.Context, id, reviewerID string, at time.Time) (*models.Delivery, error)
	RejectEditRequest(ctx context.Context, id, reviewerID, note string, at time.Time) error
}

// Notifier tells admins about new requests. It may be nil.
type Notifier interface {
	NotifyEditRequest(ctx context.Context, v models.EditRequestView) error
}

// Publisher receives change events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Service struct {
	store     Store
	notifier  Notifier
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store Store, notifier Notifier, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, publisher: publisher, logger: logger, now: time.Now}
}

// Submit stores the fields of proposed that differ from the current delivery
// as a pending edit request.
func (s *Service) Submit(ctx context.Context, sess session.Session, deliveryID string, proposed models.DeliveryChanges) (*models.EditRequest, error) {
	d, err := s.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin && !d.IsAssignedTo(sess.UserID) {
		return nil, fmt.Errorf("delivery %s is not assigned to you: %w", deliveryID, models.ErrForbidden)
	}

	changes := ChangedFields(d, proposed)
	if changes.IsEmpty() {
		return nil, fmt.Errorf("nothing changed: %w", models.ErrValidation)
	}
	if changes.RecipientName != nil && *changes.RecipientName == "" {
		return nil, fmt.Errorf("recipient name cannot be empty: %w", models.ErrValidation)
	}
	if changes.Address != nil && changes.Address.Street != nil && *changes.Address.Street == "" {
		return nil, fmt.Errorf("street cannot be empty: %w", models.ErrValidation)
	}
	if changes.PackageCount != nil && *changes.PackageCount < 1 {
		return nil, fmt.Errorf("package count must be at least 1: %w", models.ErrValidation)
	}

	r := &models.EditRequest{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		Changes:    changes,
		Status:     constants.EDIT_REQUEST_STATUS_PENDING,
		CreatedBy:  sess.UserID,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateEditRequest(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("edit request submitted",
		zap.String("request_id", r.ID),
		zap.String("delivery_id", deliveryID),
		zap.String("volunteer_id", sess.UserID))

	if s.notifier != nil {
		view := models.EditRequestView{EditRequest: *r, Delivery: d, RequesterLabel: sess.Label(), Diff: Diff(d, changes)}
		if err := s.notifier.NotifyEditRequest(ctx, view); err != nil {
			s.logger.Warn("edit request notification failed", zap.String("request_id", r.ID), zap.Error(err))
		}
	}
	s.publish(ctx, events.Event{Type: constants.EVENT_EDIT_REQUEST_NEW, DeliveryID: deliveryID, ActorID: sess.UserID})
	return r, nil
}

// ListPending returns pending requests, newest first, each with the current
// delivery and a field-level diff. Requests whose delivery is gone are listed
// without a snapshot.
func (s *Service) ListPending(ctx context.Context) ([]models.EditRequestView, error) {
	reqs, err := s.store.ListEditRequests(ctx, constants.EDIT_REQUEST_STATUS_PENDING)
	if err != nil {
		return nil, err
	}
	labels := map[string]string{}
	views := make([]models.EditRequestView, 0, len(reqs))
	for _, r := range reqs {
		v := models.EditRequestView{EditRequest: r, RequesterLabel: s.requesterLabel(ctx, r.CreatedBy, labels)}
		d, err := s.store.GetDelivery(ctx, r.DeliveryID)
		switch {
		case err == nil:
			v.Delivery = d
			v.Diff = Diff(d, r.Changes)
		case errors.Is(err, models.ErrNotFound):
			v.Diff = Diff(&models.Delivery{}, r.Changes)
		default:
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) requesterLabel(ctx context.Context, userID string, cache map[string]string) string {
	if l, ok := cache[userID]; ok {
		return l
	}
	label := userID
	if v, err := s.store.GetVolunteer(ctx, userID); err == nil {
		label = v.Label()
	}
	cache[userID] = label
	return label
}

// Approve applies the request to its delivery atomically.
func (s *Service) Approve(ctx context.Context, sess session.Session, requestID string) (*models.Delivery, error) {
	d, err := s.store.ApproveEditRequest(ctx, requestID, sess.UserID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("edit request approved", zap.String("request_id", requestID), zap.String("admin_id", sess.UserID))
	s.publish(ctx, events.Event{Type: constants.EVENT_EDIT_REQUEST_DONE, DeliveryID: d.ID, ActorID: sess.UserID})
	s.publish(ctx, events.Event{Type: constants.EVENT_DELIVERY_UPDATED, DeliveryID: d.ID, Neighborhood: d.Address.Neighborhood, ActorID: sess.UserID})
	return d, nil
}

// Reject closes the request without touching the delivery.
func (s *Service) Reject(ctx context.Context, sess session.Session, requestID, note string) error {
	if err := s.store.RejectEditRequest(ctx, requestID, sess.UserID, strings.TrimSpace(note), s.now()); err != nil {
		return err
	}
	s.logger.Info("edit request rejected", zap.String("request_id", requestID), zap.String("admin_id", sess.UserID))
	s.publish(ctx, events.Event{Type: constants.EVENT_EDIT_REQUEST_DONE, ActorID: sess.UserID})
	return nil
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

// ChangedFields keeps only the proposed values that differ from d.
func ChangedFields(d *models.Delivery, proposed models.DeliveryChanges) models.DeliveryChanges {
	var out models.DeliveryChanges
	out.RecipientName = changedString(d.RecipientName, proposed.RecipientName)
	out.Phone = changedString(d.Phone, proposed.Phone)
	out.Notes = changedString(d.Notes, proposed.Notes)
	if p := proposed.PackageCount; p != nil && *p != d.PackageCount {
		n := *p
		out.PackageCount = &n
	}
	if a := proposed.Address; a != nil {
		addr := &models.AddressChanges{
			Street:       changedString(d.Address.Street, a.Street),
			City:         changedString(d.Address.City, a.City),
			Neighborhood: changedString(d.Address.Neighborhood, a.Neighborhood),
			Apartment:    changedString(d.Address.Apartment, a.Apartment),
			DoorCode:     changedString(d.Address.DoorCode, a.DoorCode),
		}
		if !addr.IsEmpty() {
			out.Address = addr
		}
	}
	return out
}

func changedString(current string, proposed *string) *string {
	if proposed == nil {
		return nil
	}
	v := strings.TrimSpace(*proposed)
	if v == current {
		return nil
	}
	return &v
}

// Diff renders the changes as old/new pairs in a stable field order.
func Diff(d *models.Delivery, c models.DeliveryChanges) []models.FieldDiff {
	var out []models.FieldDiff
	add := func(field, old string, v *string) {
		if v != nil {
			out = append(out, models.FieldDiff{Field: field, Old: old, New: *v})
		}
	}
	add("recipientName", d.RecipientName, c.RecipientName)
	add("phone", d.Phone, c.Phone)
	if c.PackageCount != nil {
		out = append(out, models.FieldDiff{
			Field: "packageCount",
			Old:   strconv.Itoa(d.PackageCount),
			New:   strconv.Itoa(*c.PackageCount),
		})
	}
	add("notes", d.Notes, c.Notes)
	if a := c.Address; a != nil {
		add("address.street", d.Address.Street, a.Street)
		add("address.city", d.Address.City, a.City)
		add("address.neighborhood", d.Address.Neighborhood, a.Neighborhood)
		add("address.apartment", d.Address.Apartment, a.Apartment)
		add("address.doorCode", d.Address.DoorCode, a.DoorCode)
	}
	return out
}
