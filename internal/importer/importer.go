// Package importer turns CSV and XLSX spreadsheets into delivery records.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"chesed/internal/assignment"
	"chesed/internal/constants"
	"chesed/internal/events"
	"chesed/internal/models"
	"chesed/internal/session"
)

// Creator stores one delivery. *assignment.Service implements it.
type Creator interface {
	Create(ctx context.Context, sess session.Session, in assignment.NewDelivery, defaultCity string) (*models.Delivery, error)
}

// NeighborhoodStore upserts neighborhood names.
type NeighborhoodStore interface {
	UpsertNeighborhood(ctx context.Context, name string) (*models.Neighborhood, error)
}

// Geocoder resolves a free-text address. found is false when nothing matched.
type Geocoder interface {
	Lookup(ctx context.Context, street, city string) (lat, lng float64, found bool, err error)
}

// Notifier reports finished imports to admins.
type Notifier interface {
	NotifyImport(ctx context.Context, fileName, by string, res Result) error
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// RowError describes one spreadsheet row that could not be imported.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result summarises an import.
type Result struct {
	Created       int        `json:"created"`
	Failed        int        `json:"failed"`
	Errors        []RowError `json:"errors"`
	Neighborhoods int        `json:"neighborhoods"`
	Geocoded      int        `json:"geocoded"`
}

// Options configure an Importer. Geocoder, Notifier and Publisher may be nil.
type Options struct {
	DefaultCity string
	Geocode     bool
	Geocoder    Geocoder
	Notifier    Notifier
	Publisher   Publisher
	Logger      *zap.Logger
}

type Importer struct {
	creator       Creator
	neighborhoods NeighborhoodStore
	opts          Options
	logger        *zap.Logger
}

func New(creator Creator, neighborhoods NeighborhoodStore, opts Options) *Importer {
	if opts.DefaultCity == "" {
		opts.DefaultCity = constants.DEFAULT_CITY
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{creator: creator, neighborhoods: neighborhoods, opts: opts, logger: logger}
}

// ImportFile reads name/r as CSV or XLSX and imports every data row.
func (im *Importer) ImportFile(ctx context.Context, sess session.Session, name string, r io.Reader) (*Result, error) {
	sheet, err := ReadFile(name, r)
	if err != nil {
		return nil, err
	}
	res, err := im.Import(ctx, sess, sheet)
	if err != nil {
		return nil, err
	}
	if im.opts.Notifier != nil {
		if err := im.opts.Notifier.NotifyImport(ctx, name, sess.Label(), *res); err != nil {
			im.logger.Warn("import notification failed", zap.Error(err))
		}
	}
	return res, nil
}

// Import creates a pending delivery for each valid row. Bad rows are recorded
// and skipped; only failures that affect the whole file abort the import.
func (im *Importer) Import(ctx context.Context, sess session.Session, sheet *Sheet) (*Result, error) {
	res := &Result{Errors: []RowError{}}
	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("file is empty: %w", models.ErrValidation)
	}

	headerIdx := DetectHeaderRow(sheet.Rows)
	cols := MatchColumns(sheet.Rows[headerIdx])
	if len(cols[FieldRecipientName]) == 0 {
		return nil, fmt.Errorf("no recipient name column found: %w", models.ErrValidation)
	}

	seen := map[string]bool{}
	var order []string
	remember := func(n string) {
		n = strings.TrimSpace(n)
		if n != "" && !seen[n] {
			seen[n] = true
			order = append(order, n)
		}
	}
	for _, n := range sheet.Neighborhoods {
		remember(n)
	}

	for i, row := range sheet.Rows[headerIdx+1:] {
		if isBlank(row) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rowNum := headerIdx + 2 + i

		in, err := MapRow(row, cols, im.opts.DefaultCity)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		if im.opts.Geocode && im.opts.Geocoder != nil {
			lat, lng, found, gerr := im.opts.Geocoder.Lookup(ctx, in.Street, in.City)
			switch {
			case gerr != nil:
				im.logger.Warn("geocode failed", zap.Int("row", rowNum), zap.Error(gerr))
			case found:
				in.Lat, in.Lng, in.HasCoords = lat, lng, true
				res.Geocoded++
			}
		}

		if _, err := im.creator.Create(ctx, sess, in, im.opts.DefaultCity); err != nil {
			if !errors.Is(err, models.ErrValidation) {
				im.logger.Error("import row failed", zap.Int("row", rowNum), zap.Error(err))
			}
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		res.Created++
		remember(in.Neighborhood)
	}

	for _, n := range order {
		if _, err := im.neighborhoods.UpsertNeighborhood(ctx, n); err != nil {
			im.logger.Warn("neighborhood upsert failed", zap.String("neighborhood", n), zap.Error(err))
			continue
		}
		res.Neighborhoods++
	}

	im.logger.Info("import finished",
		zap.String("by", sess.UserID),
		zap.Int("created", res.Created),
		zap.Int("failed", res.Failed),
		zap.Int("neighborhoods", res.Neighborhoods))
	if p := im.opts.Publisher; p != nil {
		if err := p.Publish(ctx, events.Event{Type: constants.EVENT_IMPORT_FINISHED, ActorID: sess.UserID, Count: res.Created}); err != nil {
			im.logger.Warn("publish event failed", zap.Error(err))
		}
	}
	return res, nil
}

// ErrMissingNameOrStreet marks a row without the two required fields.
var ErrMissingNameOrStreet = errors.New("recipient name and street are required")

// MapRow converts one data row using the matched columns.
func MapRow(row []string, cols Columns, defaultCity string) (assignment.NewDelivery, error) {
	in := assignment.NewDelivery{
		RecipientName: cols.Pick(row, FieldRecipientName),
		Street:        cols.Pick(row, FieldStreetFull),
		City:          cols.Pick(row, FieldCity),
		Neighborhood:  cols.Pick(row, FieldNeighborhood),
		Phone:         cols.Pick(row, FieldPhone),
		Notes:         cols.Pick(row, FieldNotes),
		DoorCode:      cols.Pick(row, FieldDoorCode),
		Campaign:      cols.Pick(row, FieldCampaign),
		PackageCount:  constants.DEFAULT_PACKAGE_COUNT,
	}
	if in.Street == "" {
		in.Street = joinNonEmpty(cols.Pick(row, FieldStreetName), cols.Pick(row, FieldHouseNumber))
	}
	if in.City == "" {
		in.City = defaultCity
	}

	var apt []string
	if v := cols.Pick(row, FieldApartment); v != "" {
		apt = append(apt, v)
	}
	if v := cols.Pick(row, FieldEntrance); v != "" {
		apt = append(apt, "כניסה "+v)
	}
	if v := cols.Pick(row, FieldFloor); v != "" {
		apt = append(apt, "קומה "+v)
	}
	in.Apartment = strings.Join(apt, " ")

	if n, ok := CoerceNumber(cols.Pick(row, FieldPackageCount)); ok && n >= 1 {
		in.PackageCount = int(n)
	}
	if n, ok := CoerceNumber(cols.Pick(row, FieldHouseholdSize)); ok && n > 0 {
		in.HouseholdSize = int(n)
	}

	if in.RecipientName == "" || in.Street == "" {
		return in, ErrMissingNameOrStreet
	}
	return in, nil
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
