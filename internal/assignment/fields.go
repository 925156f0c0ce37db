package assignment

import (
	"fmt"
	"strconv"
	"strings"

	"chesed/internal/models"
	"chesed/internal/utils"
)

// EditableFields lists the delivery fields an admin may change inline.
var EditableFields = map[string]bool{
	"recipientName":        true,
	"phone":                true,
	"packageCount":         true,
	"notes":                true,
	"campaign":             true,
	"householdSize":        true,
	"address.street":       true,
	"address.city":         true,
	"address.neighborhood": true,
	"address.apartment":    true,
	"address.doorCode":     true,
	"address.lat":          true,
	"address.lng":          true,
}

// ApplyField sets one field of d from a decoded JSON value.
func ApplyField(d *models.Delivery, field string, value any) error {
	if !EditableFields[field] {
		return fmt.Errorf("field %q cannot be edited: %w", field, models.ErrValidation)
	}

	switch field {
	case "recipientName":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		if s == "" {
			return fmt.Errorf("recipient name cannot be empty: %w", models.ErrValidation)
		}
		d.RecipientName = s
	case "phone":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		d.Phone = s
	case "notes":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		d.Notes = s
	case "campaign":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		d.Campaign = s
	case "packageCount":
		n, ok, err := asNumber(field, value)
		if err != nil {
			return err
		}
		if !ok || n < 1 {
			return fmt.Errorf("package count must be at least 1: %w", models.ErrValidation)
		}
		d.PackageCount = int(n)
	case "householdSize":
		n, ok, err := asNumber(field, value)
		if err != nil {
			return err
		}
		if !ok || n <= 0 {
			d.HouseholdSize = models.NullInt64{}
		} else {
			d.HouseholdSize = models.NewNullInt64(int64(n))
		}
	case "address.street":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		if s == "" {
			return fmt.Errorf("street cannot be empty: %w", models.ErrValidation)
		}
		d.Address.Street = s
	case "address.city":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		d.Address.City = s
	case "address.neighborhood":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		d.Address.Neighborhood = s
	case "address.apartment":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		d.Address.Apartment = s
	case "address.doorCode":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		d.Address.DoorCode = s
	case "address.lat", "address.lng":
		f, ok, err := asNumber(field, value)
		if err != nil {
			return err
		}
		v := models.NullFloat64{}
		if ok {
			lat, lng := f, 0.0
			if field == "address.lng" {
				lat, lng = 0, f
			}
			if err := utils.ValidateLocation(lat, lng); err != nil {
				return fmt.Errorf("%s: %w", err.Error(), models.ErrValidation)
			}
			v = models.NewNullFloat64(f)
		}
		if field == "address.lat" {
			d.Address.Lat = v
		} else {
			d.Address.Lng = v
		}
	}
	return nil
}

func asString(field string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("field %q expects text, got %T: %w", field, value, models.ErrValidation)
	}
}

// asNumber accepts JSON numbers and numeric strings. ok is false for null or blank.
func asNumber(field string, value any) (float64, bool, error) {
	switch v := value.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false, fmt.Errorf("field %q expects a number: %w", field, models.ErrValidation)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("field %q expects a number, got %T: %w", field, value, models.ErrValidation)
	}
}
