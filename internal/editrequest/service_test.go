package editrequest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chesed/internal/constants"
	"chesed/internal/models"
	"chesed/internal/session"
)

type fakeStore struct {
	deliveries map[string]*models.Delivery
	volunteers map[string]*models.Volunteer
	requests   map[string]*models.EditRequest
	approveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		deliveries: map[string]*models.Delivery{},
		volunteers: map[string]*models.Volunteer{},
		requests:   map[string]*models.EditRequest{},
	}
}

func (f *fakeStore) GetDelivery(_ context.Context, id string) (*models.Delivery, error) {
	d, ok := f.deliveries[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) GetVolunteer(_ context.Context, id string) (*models.Volunteer, error) {
	v, ok := f.volunteers[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) CreateEditRequest(_ context.Context, r *models.EditRequest) error {
	cp := *r
	f.requests[r.ID] = &cp
	return nil
}

func (f *fakeStore) GetEditRequest(_ context.Context, id string) (*models.EditRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) ListEditRequests(_ context.Context, status string) ([]models.EditRequest, error) {
	var out []models.EditRequest
	for _, r := range f.requests {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ApproveEditRequest(_ context.Context, id, reviewerID string, at time.Time) (*models.Delivery, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	r, ok := f.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if r.Status != constants.EDIT_REQUEST_STATUS_PENDING {
		return nil, models.ErrConflict
	}
	d := f.deliveries[r.DeliveryID]
	r.Changes.ApplyTo(d)
	r.Status = constants.EDIT_REQUEST_STATUS_APPROVED
	r.ReviewedBy = models.NewNullString(reviewerID)
	r.ReviewedAt = models.NewNullTime(at)
	cp := *d
	return &cp, nil
}

func (f *fakeStore) RejectEditRequest(_ context.Context, id, reviewerID, note string, at time.Time) error {
	r, ok := f.requests[id]
	if !ok {
		return models.ErrNotFound
	}
	if r.Status != constants.EDIT_REQUEST_STATUS_PENDING {
		return models.ErrConflict
	}
	r.Status = constants.EDIT_REQUEST_STATUS_REJECTED
	r.AdminNote = note
	return nil
}

type fakeNotifier struct {
	views []models.EditRequestView
	err   error
}

func (n *fakeNotifier) NotifyEditRequest(_ context.Context, v models.EditRequestView) error {
	n.views = append(n.views, v)
	return n.err
}

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

var (
	dana  = session.Session{UserID: "vol-dana", DisplayName: "Dana"}
	admin = session.Session{UserID: "admin-1", IsAdmin: true}
)

func seed() *fakeStore {
	f := newFakeStore()
	f.deliveries["d1"] = &models.Delivery{
		ID:                  "d1",
		RecipientName:       "Cohen",
		Phone:               "050-1111111",
		PackageCount:        1,
		Address:             models.Address{Street: "Herzl 1", City: "Harish", Neighborhood: "North", DoorCode: "12#"},
		Status:              constants.STATUS_ASSIGNED,
		AssignedVolunteerID: models.NewNullString(dana.UserID),
	}
	f.volunteers[dana.UserID] = &models.Volunteer{ID: dana.UserID, DisplayName: "Dana L."}
	return f
}

func TestSubmit_KeepsOnlyChangedFields(t *testing.T) {
	store := seed()
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, nil, nil)

	r, err := svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{
		RecipientName: strp("Cohen"),
		Phone:         strp("050-2222222"),
		PackageCount:  intp(1),
		Address: &models.AddressChanges{
			Street:   strp("Herzl 1"),
			DoorCode: strp("34#"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, constants.EDIT_REQUEST_STATUS_PENDING, r.Status)
	assert.Nil(t, r.Changes.RecipientName)
	assert.Nil(t, r.Changes.PackageCount)
	require.NotNil(t, r.Changes.Phone)
	assert.Equal(t, "050-2222222", *r.Changes.Phone)
	require.NotNil(t, r.Changes.Address)
	assert.Nil(t, r.Changes.Address.Street)
	assert.Equal(t, "34#", *r.Changes.Address.DoorCode)

	require.Len(t, notifier.views, 1)
	assert.Equal(t, "Dana", notifier.views[0].RequesterLabel)
	assert.Equal(t, []models.FieldDiff{
		{Field: "phone", Old: "050-1111111", New: "050-2222222"},
		{Field: "address.doorCode", Old: "12#", New: "34#"},
	}, notifier.views[0].Diff)
}

func TestSubmit_NothingChanged(t *testing.T) {
	svc := NewService(seed(), nil, nil, nil)
	_, err := svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{
		RecipientName: strp(" Cohen "),
		Address:       &models.AddressChanges{City: strp("Harish")},
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSubmit_RejectsBlankRequiredFields(t *testing.T) {
	store := seed()
	svc := NewService(store, nil, nil, nil)

	_, err := svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{RecipientName: strp("   ")})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{
		Address: &models.AddressChanges{Street: strp("")},
	})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, store.requests)
}

func TestSubmit_NotifierFailureIsNotFatal(t *testing.T) {
	store := seed()
	svc := NewService(store, &fakeNotifier{err: errors.New("telegram down")}, nil, nil)
	_, err := svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{Notes: strp("ring twice")})
	require.NoError(t, err)
	assert.Len(t, store.requests, 1)
}

func TestSubmit_OtherVolunteerForbidden(t *testing.T) {
	svc := NewService(seed(), nil, nil, nil)
	_, err := svc.Submit(context.Background(), session.Session{UserID: "vol-other"}, "d1",
		models.DeliveryChanges{Notes: strp("x")})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestListPending_NewestFirstWithDiff(t *testing.T) {
	store := seed()
	svc := NewService(store, nil, nil, nil)
	t0 := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

	svc.now = func() time.Time { return t0 }
	first, err := svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{Notes: strp("first")})
	require.NoError(t, err)
	svc.now = func() time.Time { return t0.Add(time.Minute) }
	second, err := svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{Phone: strp("052")})
	require.NoError(t, err)

	views, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, second.ID, views[0].ID)
	assert.Equal(t, first.ID, views[1].ID)
	assert.Equal(t, "Dana L.", views[0].RequesterLabel)
	assert.NotNil(t, views[0].Delivery)
	assert.Equal(t, "phone", views[0].Diff[0].Field)
}

func TestListPending_DeletedDelivery(t *testing.T) {
	store := seed()
	svc := NewService(store, nil, nil, nil)
	_, err := svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{Notes: strp("x")})
	require.NoError(t, err)
	delete(store.deliveries, "d1")

	views, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Nil(t, views[0].Delivery)
	assert.Equal(t, "", views[0].Diff[0].Old)
}

func TestApproveThenRejectConflicts(t *testing.T) {
	store := seed()
	svc := NewService(store, nil, nil, nil)
	r, err := svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{
		Address: &models.AddressChanges{Neighborhood: strp("South")},
	})
	require.NoError(t, err)

	d, err := svc.Approve(context.Background(), admin, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "South", d.Address.Neighborhood)
	assert.Equal(t, "Herzl 1", d.Address.Street)

	assert.ErrorIs(t, svc.Reject(context.Background(), admin, r.ID, "late"), models.ErrConflict)
	_, err = svc.Approve(context.Background(), admin, r.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestApprove_StoreFailurePropagates(t *testing.T) {
	store := seed()
	store.approveErr = errors.New("tx aborted")
	svc := NewService(store, nil, nil, nil)
	_, err := svc.Approve(context.Background(), admin, "any")
	assert.EqualError(t, err, "tx aborted")
}

func TestReject(t *testing.T) {
	store := seed()
	svc := NewService(store, nil, nil, nil)
	r, err := svc.Submit(context.Background(), dana, "d1", models.DeliveryChanges{Notes: strp("x")})
	require.NoError(t, err)

	require.NoError(t, svc.Reject(context.Background(), admin, r.ID, "  wrong family "))
	assert.Equal(t, constants.EDIT_REQUEST_STATUS_REJECTED, store.requests[r.ID].Status)
	assert.Equal(t, "wrong family", store.requests[r.ID].AdminNote)
	assert.Equal(t, "", store.deliveries["d1"].Notes)

	assert.ErrorIs(t, svc.Reject(context.Background(), admin, "missing", ""), models.ErrNotFound)
}
