package models

import "time"

// User is an authenticated account. Anonymous accounts have no email or password.
type User struct {
	ID           string     `json:"id"`
	Email        NullString `json:"email"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"displayName"`
	Anonymous    bool       `json:"anonymous"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// StatusCounts maps a delivery status to the number of deliveries in it.
type StatusCounts map[string]int

// VolunteerStats is the statistics page for one volunteer.
type VolunteerStats struct {
	VolunteerID    string `json:"volunteerId"`
	DeliveredToday int    `json:"deliveredToday"`
	DeliveredWeek  int    `json:"deliveredWeek"`
	DeliveredMonth int    `json:"deliveredMonth"`
	DeliveredTotal int    `json:"deliveredTotal"`
	ActiveCount    int    `json:"activeCount"`
	Goals          Goals  `json:"goals"`
	DailyProgress  int    `json:"dailyProgress"`
	WeeklyProgress int    `json:"weeklyProgress"`
	MonthProgress  int    `json:"monthlyProgress"`
}
