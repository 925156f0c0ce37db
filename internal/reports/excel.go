// Package reports renders delivery data as Excel workbooks for admins.
package reports

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"chesed/internal/constants"
	"chesed/internal/models"
)

const (
	deliveriesSheet = "משלוחים"
	summarySheet    = "סיכום"
	dateLayout      = "02.01.2006 15:04"
)

// The data columns reuse the import header names so an export can be
// imported again.
var deliveryHeaders = []string{
	"שם", "כתובת", "עיר", "שכונה", "דירה", "קוד כניסה", "טלפון",
	"מספר חבילות", "הערות", "מספר נפשות", "קמפיין", "סטטוס", "מתנדב", "נמסר בתאריך",
}

// WriteDeliveries writes a workbook with one row per delivery and a summary
// sheet of counts per neighborhood and status. volunteerNames maps volunteer
// ids to display names; unknown ids are written as is.
func WriteDeliveries(w io.Writer, deliveries []models.Delivery, volunteerNames map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(deliveriesSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)
	rtl := true
	if err := f.SetSheetView(deliveriesSheet, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		return fmt.Errorf("set sheet view: %w", err)
	}

	if err := setRow(f, deliveriesSheet, 1, toAny(deliveryHeaders)); err != nil {
		return err
	}
	for i, d := range deliveries {
		if err := setRow(f, deliveriesSheet, i+2, deliveryRow(d, volunteerNames)); err != nil {
			return err
		}
	}
	if err := f.SetPanes(deliveriesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := writeSummary(f, deliveries); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func deliveryRow(d models.Delivery, volunteerNames map[string]string) []any {
	volunteer := ""
	if d.AssignedVolunteerID.Valid {
		volunteer = d.AssignedVolunteerID.String
		if name, ok := volunteerNames[volunteer]; ok && name != "" {
			volunteer = name
		}
	}
	var household any = ""
	if d.HouseholdSize.Valid {
		household = d.HouseholdSize.Int64
	}
	deliveredAt := ""
	if d.DeliveredAt.Valid {
		deliveredAt = d.DeliveredAt.Time.Format(dateLayout)
	}
	status := constants.StatusDisplayMap[d.Status]
	if status == "" {
		status = d.Status
	}
	return []any{
		d.RecipientName, d.Address.Street, d.Address.City, d.Address.Neighborhood,
		d.Address.Apartment, d.Address.DoorCode, d.Phone, d.PackageCount, d.Notes,
		household, d.Campaign, status, volunteer, deliveredAt,
	}
}

func writeSummary(f *excelize.File, deliveries []models.Delivery) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	counts := map[string]map[string]int{}
	for _, d := range deliveries {
		n := d.Address.Neighborhood
		if n == "" {
			n = "ללא שכונה"
		}
		if counts[n] == nil {
			counts[n] = map[string]int{}
		}
		counts[n][d.Status]++
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)

	header := []any{"שכונה"}
	for _, s := range constants.AllStatuses {
		header = append(header, constants.StatusDisplayMap[s])
	}
	header = append(header, "סה״כ")
	if err := setRow(f, summarySheet, 1, header); err != nil {
		return err
	}
	for i, n := range names {
		row := []any{n}
		total := 0
		for _, s := range constants.AllStatuses {
			row = append(row, counts[n][s])
			total += counts[n][s]
		}
		row = append(row, total)
		if err := setRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
