package reports

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"chesed/internal/assignment"
	"chesed/internal/constants"
	"chesed/internal/importer"
	"chesed/internal/models"
	"chesed/internal/session"
)

func sampleDeliveries() []models.Delivery {
	delivered := time.Date(2025, 9, 21, 14, 30, 0, 0, time.UTC)
	return []models.Delivery{
		{
			RecipientName:       "Cohen",
			Address:             models.Address{Street: "Herzl 1", City: "חריש", Neighborhood: "North", Apartment: "4"},
			Phone:               "050-1",
			PackageCount:        2,
			HouseholdSize:       models.NewNullInt64(5),
			Status:              constants.STATUS_DELIVERED,
			AssignedVolunteerID: models.NewNullString("vol-1"),
			DeliveredAt:         models.NewNullTime(delivered),
		},
		{
			RecipientName: "Levi",
			Address:       models.Address{Street: "Herzl 2", City: "חריש", Neighborhood: "North"},
			PackageCount:  1,
			Status:        constants.STATUS_PENDING,
		},
		{
			RecipientName:       "Mizrahi",
			Address:             models.Address{Street: "Oak 3", City: "חריש"},
			PackageCount:        1,
			Status:              constants.STATUS_ASSIGNED,
			AssignedVolunteerID: models.NewNullString("vol-unknown"),
		},
	}
}

func TestWriteDeliveries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDeliveries(&buf, sampleDeliveries(), map[string]string{"vol-1": "Dana"}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{deliveriesSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(deliveriesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, deliveryHeaders, rows[0])
	assert.Equal(t, "Cohen", rows[1][0])
	assert.Equal(t, "5", rows[1][9])
	assert.Equal(t, "נמסר", rows[1][11])
	assert.Equal(t, "Dana", rows[1][12])
	assert.Equal(t, "21.09.2025 14:30", rows[1][13])
	assert.Equal(t, "vol-unknown", rows[3][12])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "North", summary[1][0])
	assert.Equal(t, "2", summary[1][len(summary[1])-1])
	assert.Equal(t, "ללא שכונה", summary[2][0])
}

type captureCreator struct {
	rows []assignment.NewDelivery
}

func (c *captureCreator) Create(_ context.Context, _ session.Session, in assignment.NewDelivery, _ string) (*models.Delivery, error) {
	c.rows = append(c.rows, in)
	return &models.Delivery{}, nil
}

type noNeighborhoods struct{}

func (noNeighborhoods) UpsertNeighborhood(_ context.Context, name string) (*models.Neighborhood, error) {
	return &models.Neighborhood{Name: name}, nil
}

func TestExportCanBeImported(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDeliveries(&buf, sampleDeliveries(), nil))

	creator := &captureCreator{}
	im := importer.New(creator, noNeighborhoods{}, importer.Options{})
	res, err := im.ImportFile(context.Background(), session.Session{UserID: "admin"}, "export.xlsx", &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)

	first := creator.rows[0]
	assert.Equal(t, "Cohen", first.RecipientName)
	assert.Equal(t, "Herzl 1", first.Street)
	assert.Equal(t, "North", first.Neighborhood)
	assert.Equal(t, "4", first.Apartment)
	assert.Equal(t, 2, first.PackageCount)
	assert.Equal(t, 5, first.HouseholdSize)
}
