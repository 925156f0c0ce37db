package models

import "strings"

// Neighborhood groups deliveries for volunteer self-assignment.
type Neighborhood struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Order  int    `json:"order"`
}

// NeighborhoodWithCount is what volunteers see in the picker.
type NeighborhoodWithCount struct {
	Neighborhood
	PendingCount int `json:"pendingCount"`
}

// NeighborhoodID derives the stable key for a neighborhood name.
func NeighborhoodID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), "-")
}
