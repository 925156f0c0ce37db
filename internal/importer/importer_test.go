package importer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"chesed/internal/assignment"
	"chesed/internal/constants"
	"chesed/internal/models"
	"chesed/internal/session"
)

type fakeCreator struct {
	created []assignment.NewDelivery
	failFor string
}

func (c *fakeCreator) Create(_ context.Context, _ session.Session, in assignment.NewDelivery, defaultCity string) (*models.Delivery, error) {
	if in.RecipientName == c.failFor {
		return nil, errors.New("insert failed")
	}
	c.created = append(c.created, in)
	return &models.Delivery{ID: in.RecipientName, RecipientName: in.RecipientName}, nil
}

type fakeNeighborhoods struct {
	names []string
}

func (n *fakeNeighborhoods) UpsertNeighborhood(_ context.Context, name string) (*models.Neighborhood, error) {
	n.names = append(n.names, name)
	return &models.Neighborhood{ID: models.NeighborhoodID(name), Name: name, Active: true}, nil
}

type fakeGeocoder struct {
	calls int
}

func (g *fakeGeocoder) Lookup(_ context.Context, street, city string) (float64, float64, bool, error) {
	g.calls++
	if street == "Unknown 0" {
		return 0, 0, false, nil
	}
	return 32.46, 35.05, true, nil
}

var admin = session.Session{UserID: "admin-1", IsAdmin: true}

func TestMapRow_SplitStreetAndApartment(t *testing.T) {
	cols := MatchColumns([]string{"שם", "רחוב", "מספר בית", "דירה", "כניסה", "קומה", "כמות", "מספר נפשות"})
	in, err := MapRow([]string{"Cohen", "Herzl", "12", "4", "ב", "2", "3 סלים", "5"}, cols, "חריש")
	require.NoError(t, err)

	assert.Equal(t, "Herzl 12", in.Street)
	assert.Equal(t, "חריש", in.City)
	assert.Equal(t, "4 כניסה ב קומה 2", in.Apartment)
	assert.Equal(t, 3, in.PackageCount)
	assert.Equal(t, 5, in.HouseholdSize)
}

func TestMapRow_FullStreetWinsAndDefaults(t *testing.T) {
	cols := MatchColumns([]string{"שם", "כתובת", "רחוב", "עיר", "כמות"})
	in, err := MapRow([]string{"Levi", "Rothschild 5", "Ignored", "Haifa", ""}, cols, "חריש")
	require.NoError(t, err)
	assert.Equal(t, "Rothschild 5", in.Street)
	assert.Equal(t, "Haifa", in.City)
	assert.Equal(t, constants.DEFAULT_PACKAGE_COUNT, in.PackageCount)
	assert.Equal(t, 0, in.HouseholdSize)
}

func TestMapRow_RequiresNameAndStreet(t *testing.T) {
	cols := MatchColumns([]string{"שם", "כתובת"})
	_, err := MapRow([]string{"Cohen", ""}, cols, "חריש")
	assert.ErrorIs(t, err, ErrMissingNameOrStreet)
	_, err = MapRow([]string{"", "Herzl 1"}, cols, "חריש")
	assert.ErrorIs(t, err, ErrMissingNameOrStreet)
}

func TestImportFile_CSV(t *testing.T) {
	csvText := "\ufeffשם,כתובת,שכונה,טלפון,הערות\n" +
		"Cohen,\"Herzl 1, entrance B\",North,050-1,\"says \"\"hi\"\"\"\n" +
		"\n" +
		",Herzl 2,North,050-2,\n" +
		"Levi,Herzl 3,South,,\n"

	creator := &fakeCreator{}
	hoods := &fakeNeighborhoods{}
	im := New(creator, hoods, Options{})

	res, err := im.ImportFile(context.Background(), admin, "list.csv", strings.NewReader(csvText))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, []string{"North", "South"}, hoods.names)
	assert.Equal(t, 2, res.Neighborhoods)

	require.Len(t, creator.created, 2)
	assert.Equal(t, "Herzl 1, entrance B", creator.created[0].Street)
	assert.Equal(t, `says "hi"`, creator.created[0].Notes)
	assert.Equal(t, constants.DEFAULT_CITY, creator.created[0].City)
}

func TestImport_CreateFailureIsCollected(t *testing.T) {
	creator := &fakeCreator{failFor: "Levi"}
	im := New(creator, &fakeNeighborhoods{}, Options{})
	sheet := &Sheet{Rows: [][]string{
		{"שם", "כתובת"},
		{"Cohen", "Herzl 1"},
		{"Levi", "Herzl 2"},
	}}

	res, err := im.Import(context.Background(), admin, sheet)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, []RowError{{Row: 3, Reason: "insert failed"}}, res.Errors)
}

func TestImport_Geocodes(t *testing.T) {
	creator := &fakeCreator{}
	geo := &fakeGeocoder{}
	im := New(creator, &fakeNeighborhoods{}, Options{Geocode: true, Geocoder: geo})
	sheet := &Sheet{Rows: [][]string{
		{"שם", "כתובת"},
		{"Cohen", "Herzl 1"},
		{"Levi", "Unknown 0"},
	}}

	res, err := im.Import(context.Background(), admin, sheet)
	require.NoError(t, err)
	assert.Equal(t, 2, geo.calls)
	assert.Equal(t, 1, res.Geocoded)
	assert.True(t, creator.created[0].HasCoords)
	assert.False(t, creator.created[1].HasCoords)
}

func TestImport_RejectsFileWithoutNameColumn(t *testing.T) {
	im := New(&fakeCreator{}, &fakeNeighborhoods{}, Options{})
	_, err := im.Import(context.Background(), admin, &Sheet{Rows: [][]string{{"a", "b"}, {"1", "2"}}})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = im.Import(context.Background(), admin, &Sheet{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestImportFile_UnsupportedExtension(t *testing.T) {
	im := New(&fakeCreator{}, &fakeNeighborhoods{}, Options{})
	_, err := im.ImportFile(context.Background(), admin, "list.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func buildWorkbook(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	data := f.GetSheetName(0)
	rows := [][]any{
		{"חלוקת ראש השנה"},
		{},
		{"שם הנזקק", "רחוב", "מספר", "שכונה", "מספר טלפון", "מספר חבילות"},
		{"Cohen", "Herzl", 7, "North", "050-1234567", 2},
		{"Levi", "", "", "South", "", ""},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(data, cell, &r))
	}

	_, err := f.NewSheet(constants.NEIGHBORHOODS_SHEET)
	require.NoError(t, err)
	for i, v := range []string{"שם שכונה", "Center", "", "North"} {
		require.NoError(t, f.SetCellValue(constants.NEIGHBORHOODS_SHEET, "A"+string(rune('1'+i)), v))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportFile_Workbook(t *testing.T) {
	creator := &fakeCreator{}
	hoods := &fakeNeighborhoods{}
	im := New(creator, hoods, Options{DefaultCity: "חריש"})

	res, err := im.ImportFile(context.Background(), admin, "families.xlsx", buildWorkbook(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 5, res.Errors[0].Row)

	require.Len(t, creator.created, 1)
	got := creator.created[0]
	assert.Equal(t, "Herzl 7", got.Street)
	assert.Equal(t, 2, got.PackageCount)
	assert.Equal(t, "050-1234567", got.Phone)

	assert.Equal(t, []string{"Center", "North"}, hoods.names)
}
