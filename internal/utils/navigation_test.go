package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chesed/internal/models"
)

func TestWazeURL(t *testing.T) {
	withCoords := models.Address{
		Street: "הרצל 5",
		City:   "חריש",
		Lat:    models.NewNullFloat64(32.4612),
		Lng:    models.NewNullFloat64(35.0433),
	}
	link, ok := WazeURL(withCoords)
	require.True(t, ok)
	assert.Equal(t, "https://waze.com/ul?ll=32.4612,35.0433&navigate=yes", link)

	link, ok = WazeURL(models.Address{Street: "Herzl 5", City: "Harish"})
	require.True(t, ok)
	assert.Equal(t, "https://waze.com/ul?q=Herzl+5%2C+Harish%2C+%D7%99%D7%A9%D7%A8%D7%90%D7%9C&navigate=yes", link)

	_, ok = WazeURL(models.Address{City: "Harish"})
	assert.False(t, ok)
	_, ok = WazeURL(models.Address{})
	assert.False(t, ok)
}

func TestWazeURL_OnlyOneCoordinateFallsBackToText(t *testing.T) {
	link, ok := WazeURL(models.Address{Street: "Herzl 5", Lat: models.NewNullFloat64(32)})
	require.True(t, ok)
	assert.Contains(t, link, "?q=Herzl+5")
}

func TestWazeQRCode(t *testing.T) {
	png, err := WazeQRCode(models.Address{Street: "Herzl 5", City: "Harish"}, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = WazeQRCode(models.Address{}, 128)
	assert.ErrorIs(t, err, ErrNoDestination)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+972501234567", NormalizePhone("050-123-4567"))
	assert.Equal(t, "+97246123456", NormalizePhone("04 612 3456"))
	assert.Equal(t, "+972501234567", NormalizePhone("972501234567"))
	assert.Equal(t, "+12025550100", NormalizePhone("+1 (202) 555-0100"))
	assert.Equal(t, "1201", NormalizePhone("*1201"))
	assert.Equal(t, "", NormalizePhone(" - "))

	assert.Equal(t, "tel:+972501234567", TelLink("0501234567"))
	assert.Equal(t, "", TelLink(""))
}

func TestValidateLocation(t *testing.T) {
	assert.NoError(t, ValidateLocation(32.46, 35.04))
	assert.Error(t, ValidateLocation(91, 0))
	assert.Error(t, ValidateLocation(0, -181))
}
