package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chesed/internal/models"
)

func TestLookup_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "0", q.Get("addressdetails"))
		assert.Equal(t, "הרצל 5, חריש, ישראל", q.Get("q"))
		assert.Equal(t, "he", r.Header.Get("Accept-Language"))
		assert.Equal(t, "chesed-test/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"32.4612","lon":"35.0433","display_name":"הרצל 5"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "chesed-test/1.0", nil)
	lat, lng, found, err := c.Lookup(context.Background(), "הרצל 5", "חריש")
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 32.4612, lat, 1e-9)
	assert.InDelta(t, 35.0433, lng, 1e-9)
}

func TestLookup_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, _, found, err := NewClient(srv.URL, "ua", nil).Lookup(context.Background(), "Nowhere 1", "Harish")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLookup_IncompleteAddressSkipsRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, _, found, err := NewClient(srv.URL, "ua", nil).Lookup(context.Background(), "Herzl 1", " ")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestLookup_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"1.5","lon":"2.5"}]`))
	}))
	defer srv.Close()

	lat, lng, found, err := NewClient(srv.URL, "ua", nil).Lookup(context.Background(), "Herzl 1", "Harish")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1.5, lat)
	assert.Equal(t, 2.5, lng)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

type fakeStore struct {
	d        *models.Delivery
	lat, lng float64
}

func (f *fakeStore) GetDelivery(_ context.Context, id string) (*models.Delivery, error) {
	if f.d == nil || f.d.ID != id {
		return nil, models.ErrNotFound
	}
	cp := *f.d
	return &cp, nil
}

func (f *fakeStore) SetCoordinates(_ context.Context, _ string, lat, lng float64, _ time.Time) error {
	f.lat, f.lng = lat, lng
	return nil
}

func TestLocateDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"32.1","lon":"35.2"}]`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "ua", nil)

	store := &fakeStore{d: &models.Delivery{ID: "d1", Address: models.Address{Street: "Herzl 1", City: "Harish"}}}
	d, err := Locator{Client: c, Store: store}.Locate(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, d.Address.HasCoordinates())
	assert.Equal(t, 32.1, store.lat)
	assert.Equal(t, 35.2, store.lng)

	store.d.Address.City = ""
	_, err = c.LocateDelivery(context.Background(), store, "d1")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = c.LocateDelivery(context.Background(), store, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
