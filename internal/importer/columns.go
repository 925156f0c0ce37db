package importer

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Field is a logical delivery field a spreadsheet column can map to.
type Field string

const (
	FieldRecipientName Field = "recipientName"
	FieldStreetFull    Field = "streetFull"
	FieldStreetName    Field = "streetName"
	FieldHouseNumber   Field = "houseNumber"
	FieldCity          Field = "city"
	FieldNeighborhood  Field = "neighborhood"
	FieldApartment     Field = "apartment"
	FieldEntrance      Field = "entrance"
	FieldFloor         Field = "floor"
	FieldPhone         Field = "phone"
	FieldPackageCount  Field = "packageCount"
	FieldNotes         Field = "notes"
	FieldDoorCode      Field = "doorCode"
	FieldHouseholdSize Field = "householdSize"
	FieldCampaign      Field = "campaign"
)

// fieldOrder fixes the order in which fields claim columns.
var fieldOrder = []Field{
	FieldRecipientName, FieldStreetFull, FieldStreetName, FieldHouseNumber,
	FieldCity, FieldNeighborhood, FieldApartment, FieldEntrance, FieldFloor,
	FieldPhone, FieldPackageCount, FieldNotes, FieldDoorCode, FieldHouseholdSize,
	FieldCampaign,
}

// Synonyms are the header texts recognised for each field, in priority order.
var Synonyms = map[Field][]string{
	FieldRecipientName: {"Name", "שם", "שם מלא", "שם הנזקק", "מקבל", "נזקק", "שם משפחה ושם פרטי"},
	FieldStreetFull:    {"כתובת", "כתובת מלאה", "רחוב ומספר", "רחוב+מספר"},
	FieldStreetName:    {"רחוב", "שם רחוב"},
	FieldHouseNumber:   {"בית", "מספר בית", "מספר", "בית מספר"},
	FieldCity:          {"עיר", "ישוב", "עיר/ישוב"},
	FieldNeighborhood:  {"שכונה", "אזור", "שכונה/אזור"},
	FieldApartment:     {"דירה", "מספר דירה"},
	FieldEntrance:      {"כניסה"},
	FieldFloor:         {"קומה"},
	FieldPhone:         {"Subitems", "טלפון", "טל", "נייד", "מספר טלפון", "סלולרי", "מספר נייד"},
	FieldPackageCount:  {"מספר חבילות", "כמות", "חבילות", "סלים"},
	FieldNotes:         {"הערות", "הערות לכתובת", "הערה", "מידע נוסף"},
	FieldDoorCode:      {"קוד כניסה לדלת", "קוד כניסה", "קוד"},
	FieldHouseholdSize: {"מספר נפשות"},
	FieldCampaign:      {`ראש השנה תשפ"ו`, "קמפיין", "אירוע"},
}

// headerHintFields are the fields whose synonyms identify a header row.
var headerHintFields = []Field{FieldRecipientName, FieldStreetFull, FieldStreetName, FieldPhone, FieldNeighborhood}

const (
	headerScanRows   = 20
	minHeaderHits    = 2
	minContainsRunes = 3
)

var quoteStripper = strings.NewReplacer(`"`, "", "'", "", "׳", "", "״", "")

// Norm canonicalises a header or synonym for comparison.
func Norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = quoteStripper.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Columns maps each field to the columns that may hold it, best first.
type Columns map[Field][]int

// MatchColumns assigns header columns to fields. Exact normalised matches win;
// a field with no exact match falls back to the first unused column whose
// header contains one of its synonyms.
func MatchColumns(headers []string) Columns {
	normed := make([]string, len(headers))
	for i, h := range headers {
		normed[i] = Norm(h)
	}

	cols := Columns{}
	used := map[int]bool{}
	for _, f := range fieldOrder {
		for _, syn := range Synonyms[f] {
			ns := Norm(syn)
			for i, h := range normed {
				if h != "" && h == ns && !contains(cols[f], i) {
					cols[f] = append(cols[f], i)
					used[i] = true
				}
			}
		}
	}

	for _, f := range fieldOrder {
		if len(cols[f]) > 0 {
			continue
		}
	search:
		for _, syn := range Synonyms[f] {
			ns := Norm(syn)
			if utf8.RuneCountInString(ns) < minContainsRunes {
				continue
			}
			for i, h := range normed {
				if !used[i] && strings.Contains(h, ns) {
					cols[f] = []int{i}
					used[i] = true
					break search
				}
			}
		}
	}
	return cols
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// DetectHeaderRow returns the first row among the leading rows that has at
// least two cells naming a name, street, phone or neighborhood column.
func DetectHeaderRow(rows [][]string) int {
	wanted := map[string]bool{}
	for _, f := range headerHintFields {
		for _, syn := range Synonyms[f] {
			wanted[Norm(syn)] = true
		}
	}
	for i, row := range rows {
		if i >= headerScanRows {
			break
		}
		hits := 0
		for _, cell := range row {
			if wanted[Norm(cell)] {
				hits++
			}
		}
		if hits >= minHeaderHits {
			return i
		}
	}
	return 0
}

// Pick returns the first non-empty value among the field's columns.
func (c Columns) Pick(row []string, f Field) string {
	for _, i := range c[f] {
		if i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

// CoerceNumber keeps digits, dots and minus signs and parses the rest. ok is
// false when nothing numeric remains.
func CoerceNumber(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
