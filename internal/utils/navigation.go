package utils

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/skip2/go-qrcode"

	"chesed/internal/constants"
	"chesed/internal/models"
)

// ErrNoDestination means the address has neither coordinates nor street text.
var ErrNoDestination = errors.New("address has no coordinates or street")

// WazeURL builds a navigation deep link. Coordinates win over the free-text
// address; ok is false when neither is available.
func WazeURL(a models.Address) (string, bool) {
	if a.HasCoordinates() {
		ll := strconv.FormatFloat(a.Lat.Float64, 'f', -1, 64) + "," + strconv.FormatFloat(a.Lng.Float64, 'f', -1, 64)
		return constants.WAZE_BASE_URL + "?ll=" + ll + "&navigate=yes", true
	}
	if q := a.QueryString(); q != "" && a.Street != "" {
		return constants.WAZE_BASE_URL + "?q=" + url.QueryEscape(q) + "&navigate=yes", true
	}
	return "", false
}

// WazeQRCode renders the navigation link as a PNG QR code of size pixels.
func WazeQRCode(a models.Address, size int) ([]byte, error) {
	link, ok := WazeURL(a)
	if !ok {
		return nil, ErrNoDestination
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %q: %w", link, err)
	}
	return png, nil
}
