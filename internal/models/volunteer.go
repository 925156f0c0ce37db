package models

import (
	"time"

	"chesed/internal/constants"
)

// Goals are a volunteer's personal delivery targets.
type Goals struct {
	Daily   int `json:"daily" validate:"gte=0,lte=1000"`
	Weekly  int `json:"weekly" validate:"gte=0,lte=5000"`
	Monthly int `json:"monthly" validate:"gte=0,lte=20000"`
}

// Volunteer mirrors an authenticated user who delivers packages.
type Volunteer struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	LastSeen    NullTime  `json:"lastSeen"`
	Goals       Goals     `json:"goals"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsOnline reports whether the last heartbeat falls inside the online window.
func (v Volunteer) IsOnline(now time.Time) bool {
	if !v.LastSeen.Valid {
		return false
	}
	return now.Sub(v.LastSeen.Time) < constants.ONLINE_WINDOW
}

// Label is the name shown to admins.
func (v Volunteer) Label() string {
	if v.DisplayName != "" {
		return v.DisplayName
	}
	if v.Email != "" {
		return v.Email
	}
	return v.ID
}

// VolunteerSummary is a row of the admin volunteers page.
type VolunteerSummary struct {
	Volunteer
	Online         bool `json:"online"`
	AssignedCount  int  `json:"assignedCount"`
	DeliveredCount int  `json:"deliveredCount"`
}

// VolunteerCounts are the per-volunteer aggregates read from deliveries.
type VolunteerCounts struct {
	Assigned  int
	Delivered int
}
