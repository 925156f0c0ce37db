package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"chesed/internal/constants"
)

// Sheet is the raw content of an uploaded file.
type Sheet struct {
	Rows [][]string
	// Neighborhoods holds names listed on the optional neighborhoods sheet.
	Neighborhoods []string
}

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile dispatches on the file extension.
func ReadFile(name string, r io.Reader) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		rows, err := ReadCSV(r)
		if err != nil {
			return nil, err
		}
		return &Sheet{Rows: rows}, nil
	case ".xlsx", ".xlsm":
		return ReadWorkbook(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ReadCSV parses comma separated text with quoted fields. Blank lines are dropped.
func ReadCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// ReadWorkbook reads the first sheet as data and the optional neighborhoods
// sheet as a list of names from its first column.
func ReadWorkbook(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	out := &Sheet{Rows: rows}
	for _, name := range sheets[1:] {
		if Norm(name) != Norm(constants.NEIGHBORHOODS_SHEET) {
			continue
		}
		nrows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		for _, row := range nrows {
			if len(row) == 0 {
				continue
			}
			n := strings.TrimSpace(row[0])
			if n == "" || n == "שכונה" || n == "שם שכונה" {
				continue
			}
			out.Neighborhoods = append(out.Neighborhoods, n)
		}
		break
	}
	return out, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
