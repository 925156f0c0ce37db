package models

import "time"

// AddressChanges is the address part of a proposed edit. Nil fields are unchanged.
type AddressChanges struct {
	Street       *string `json:"street,omitempty"`
	City         *string `json:"city,omitempty"`
	Neighborhood *string `json:"neighborhood,omitempty"`
	Apartment    *string `json:"apartment,omitempty"`
	DoorCode     *string `json:"doorCode,omitempty"`
}

// IsEmpty reports whether no address field is proposed.
func (a *AddressChanges) IsEmpty() bool {
	return a == nil || (a.Street == nil && a.City == nil && a.Neighborhood == nil &&
		a.Apartment == nil && a.DoorCode == nil)
}

// DeliveryChanges is a partial delivery. Nil fields are unchanged.
type DeliveryChanges struct {
	RecipientName *string         `json:"recipientName,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	PackageCount  *int            `json:"packageCount,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	Address       *AddressChanges `json:"address,omitempty"`
}

// IsEmpty reports whether the change set proposes nothing.
func (c DeliveryChanges) IsEmpty() bool {
	return c.RecipientName == nil && c.Phone == nil && c.PackageCount == nil &&
		c.Notes == nil && c.Address.IsEmpty()
}

// EditRequest is a volunteer's proposed correction to a delivery.
type EditRequest struct {
	ID         string          `json:"id"`
	DeliveryID string          `json:"deliveryId"`
	Changes    DeliveryChanges `json:"changes"`
	Status     string          `json:"status"`
	CreatedBy  string          `json:"createdBy"`
	CreatedAt  time.Time       `json:"createdAt"`
	ReviewedBy NullString      `json:"reviewedBy"`
	ReviewedAt NullTime        `json:"reviewedAt"`
	AdminNote  string          `json:"adminNote"`
}

// FieldDiff is one changed field shown to the reviewing admin.
type FieldDiff struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// EditRequestView is an edit request with the data the review screen renders.
type EditRequestView struct {
	EditRequest
	Delivery       *Delivery   `json:"delivery"`
	RequesterLabel string      `json:"requesterLabel"`
	Diff           []FieldDiff `json:"diff"`
}

// ApplyTo merges the proposed changes into d. Address fields merge individually.
func (c DeliveryChanges) ApplyTo(d *Delivery) {
	if c.RecipientName != nil {
		d.RecipientName = *c.RecipientName
	}
	if c.Phone != nil {
		d.Phone = *c.Phone
	}
	if c.PackageCount != nil {
		d.PackageCount = *c.PackageCount
	}
	if c.Notes != nil {
		d.Notes = *c.Notes
	}
	if a := c.Address; a != nil {
		if a.Street != nil {
			d.Address.Street = *a.Street
		}
		if a.City != nil {
			d.Address.City = *a.City
		}
		if a.Neighborhood != nil {
			d.Address.Neighborhood = *a.Neighborhood
		}
		if a.Apartment != nil {
			d.Address.Apartment = *a.Apartment
		}
		if a.DoorCode != nil {
			d.Address.DoorCode = *a.DoorCode
		}
	}
}
