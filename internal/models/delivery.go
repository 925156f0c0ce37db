package models

import (
	"strings"
	"time"

	"chesed/internal/constants"
)

// Address is the delivery destination. Neighborhood drives the pending index.
type Address struct {
	Street       string      `json:"street"`
	City         string      `json:"city"`
	Neighborhood string      `json:"neighborhood"`
	Apartment    string      `json:"apartment"`
	DoorCode     string      `json:"doorCode"`
	Lat          NullFloat64 `json:"lat"`
	Lng          NullFloat64 `json:"lng"`
}

// Delivery is a single package drop for one family.
type Delivery struct {
	ID                  string     `json:"id"`
	RecipientName       string     `json:"recipientName"`
	Address             Address    `json:"address"`
	Phone               string     `json:"phone"`
	PackageCount        int        `json:"packageCount"`
	Notes               string     `json:"notes"`
	HouseholdSize       NullInt64  `json:"householdSize"`
	Campaign            string     `json:"campaign"`
	Status              string     `json:"status"`
	AssignedVolunteerID NullString `json:"assignedVolunteerId"`
	VolunteerCompleted  bool       `json:"volunteerCompleted"`
	CreatedBy           string     `json:"createdBy"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	DeliveredBy         NullString `json:"deliveredBy"`
	DeliveredAt         NullTime   `json:"deliveredAt"`
}

// IsPendingUnassigned reports whether the delivery belongs in the pending index.
func (d Delivery) IsPendingUnassigned() bool {
	return d.Status == constants.STATUS_PENDING && !d.AssignedVolunteerID.Valid
}

// IsAssignedTo reports whether volunteerID currently holds the delivery.
func (d Delivery) IsAssignedTo(volunteerID string) bool {
	return d.AssignedVolunteerID.Valid && d.AssignedVolunteerID.String == volunteerID
}

// HasCoordinates reports whether both lat and lng are set.
func (a Address) HasCoordinates() bool {
	return a.Lat.Valid && a.Lng.Valid
}

// QueryString is the free-text form of the address used for geocoding and navigation.
func (a Address) QueryString() string {
	var parts []string
	if s := strings.TrimSpace(a.Street); s != "" {
		parts = append(parts, s)
	}
	if c := strings.TrimSpace(a.City); c != "" {
		parts = append(parts, c)
	}
	if len(parts) == 0 {
		return ""
	}
	parts = append(parts, constants.ADDRESS_COUNTRY)
	return strings.Join(parts, ", ")
}

// PendingIndexEntry points at one pending, unassigned delivery.
type PendingIndexEntry struct {
	DeliveryID   string    `json:"deliveryId"`
	Neighborhood string    `json:"neighborhood"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DeliveryFilter narrows admin delivery listings. Empty fields match everything.
type DeliveryFilter struct {
	Status       string
	Neighborhood string
	Search       string
	VolunteerID  string
	Limit        int
	// All ignores Limit and the default page size. Used by exports.
	All          bool
}

// Matches applies the free-text part of the filter in memory.
func (f DeliveryFilter) Matches(d Delivery) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Neighborhood != "" && d.Address.Neighborhood != f.Neighborhood {
		return false
	}
	if f.VolunteerID != "" && !d.IsAssignedTo(f.VolunteerID) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	for _, field := range []string{d.RecipientName, d.Address.Street, d.Phone, d.Notes, d.Address.Neighborhood} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
