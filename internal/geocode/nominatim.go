// Package geocode resolves delivery addresses to coordinates through a
// Nominatim search endpoint.
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"chesed/internal/models"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Client queries Nominatim. Nominatim requires an identifying User-Agent.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewClient(baseURL, userAgent string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "he").
		SetHeader("User-Agent", userAgent)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})

	return &Client{httpClient: client, logger: logger}
}

// Lookup geocodes street and city. found is false when the address is
// incomplete or Nominatim has no match.
func (c *Client) Lookup(ctx context.Context, street, city string) (float64, float64, bool, error) {
	addr := models.Address{Street: street, City: city}
	if strings.TrimSpace(street) == "" || strings.TrimSpace(city) == "" {
		return 0, 0, false, nil
	}

	var places []place
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format":         "json",
			"limit":          "1",
			"addressdetails": "0",
			"q":              addr.QueryString(),
		}).
		SetResult(&places).
		Get("/search")
	if err != nil {
		return 0, 0, false, fmt.Errorf("geocode request: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("geocoder returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("query", addr.QueryString()))
		return 0, 0, false, fmt.Errorf("geocoder status %d", resp.StatusCode())
	}
	if len(places) == 0 {
		return 0, 0, false, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("parse lat %q: %w", places[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("parse lon %q: %w", places[0].Lon, err)
	}
	c.logger.Debug("geocoded address",
		zap.String("query", addr.QueryString()),
		zap.String("match", places[0].DisplayName))
	return lat, lng, true, nil
}

// DeliveryStore is what LocateDelivery reads and writes.
type DeliveryStore interface {
	GetDelivery(ctx context.Context, id string) (*models.Delivery, error)
	SetCoordinates(ctx context.Context, deliveryID string, lat, lng float64, at time.Time) error
}

// LocateDelivery geocodes one stored delivery and saves its coordinates.
func (c *Client) LocateDelivery(ctx context.Context, store DeliveryStore, deliveryID string) (*models.Delivery, error) {
	d, err := store.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(d.Address.Street) == "" || strings.TrimSpace(d.Address.City) == "" {
		return nil, fmt.Errorf("street and city are required to geocode: %w", models.ErrValidation)
	}
	lat, lng, found, err := c.Lookup(ctx, d.Address.Street, d.Address.City)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("address %q not found: %w", d.Address.QueryString(), models.ErrNotFound)
	}
	if err := store.SetCoordinates(ctx, deliveryID, lat, lng, time.Now()); err != nil {
		return nil, err
	}
	d.Address.Lat = models.NewNullFloat64(lat)
	d.Address.Lng = models.NewNullFloat64(lng)
	return d, nil
}

// Locator binds a client to the store coordinates are saved in.
type Locator struct {
	Client *Client
	Store  DeliveryStore
}

// Locate geocodes and saves one delivery.
func (l Locator) Locate(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	return l.Client.LocateDelivery(ctx, l.Store, deliveryID)
}
