package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNorm(t *testing.T) {
	assert.Equal(t, "ראש השנה תשפו", Norm(`  ראש  השנה תשפ"ו `))
	assert.Equal(t, "name", Norm("NAME"))
	assert.Equal(t, "קוד", Norm("ק׳ו״ד"))
}

func TestMatchColumns_ExactHebrewHeaders(t *testing.T) {
	cols := MatchColumns([]string{"שם מלא", "רחוב", "מספר בית", "שכונה", "טלפון", "כמות", "קוד כניסה", "מספר נפשות"})

	assert.Equal(t, []int{0}, cols[FieldRecipientName])
	assert.Equal(t, []int{1}, cols[FieldStreetName])
	assert.Equal(t, []int{2}, cols[FieldHouseNumber])
	assert.Equal(t, []int{3}, cols[FieldNeighborhood])
	assert.Equal(t, []int{4}, cols[FieldPhone])
	assert.Equal(t, []int{5}, cols[FieldPackageCount])
	assert.Equal(t, []int{6}, cols[FieldDoorCode])
	assert.Equal(t, []int{7}, cols[FieldHouseholdSize])
	assert.Empty(t, cols[FieldStreetFull])
}

func TestMatchColumns_SynonymPriorityAcrossColumns(t *testing.T) {
	// Both "Name" and "שם" present: "Name" is listed first and wins per row.
	cols := MatchColumns([]string{"שם", "Name", "כתובת"})
	assert.Equal(t, []int{1, 0}, cols[FieldRecipientName])

	assert.Equal(t, "Levi", cols.Pick([]string{"Levi", "", "Herzl 1"}, FieldRecipientName))
	assert.Equal(t, "Cohen", cols.Pick([]string{"Levi", "Cohen", "Herzl 1"}, FieldRecipientName))
}

func TestMatchColumns_ContainsFallback(t *testing.T) {
	cols := MatchColumns([]string{"שם הנזקק", "כתובת למשלוח", "הערות נוספות", "טל׳"})

	assert.Equal(t, []int{0}, cols[FieldRecipientName])
	assert.Equal(t, []int{1}, cols[FieldStreetFull])
	assert.Equal(t, []int{2}, cols[FieldNotes])
	// "טל" is an exact match after quote stripping.
	assert.Equal(t, []int{3}, cols[FieldPhone])
}

func TestMatchColumns_ShortSynonymsDoNotMatchBySubstring(t *testing.T) {
	cols := MatchColumns([]string{"שם", "סטטוס טלגרם"})
	assert.Empty(t, cols[FieldPhone])
}

func TestDetectHeaderRow(t *testing.T) {
	rows := [][]string{
		{"רשימת חלוקה", ""},
		{"", ""},
		{"שם", "כתובת", "טלפון"},
		{"Cohen", "Herzl 1", "050"},
	}
	assert.Equal(t, 2, DetectHeaderRow(rows))
	assert.Equal(t, 0, DetectHeaderRow([][]string{{"a", "b"}, {"c", "d"}}))
}

func TestDetectHeaderRow_OnlyScansLeadingRows(t *testing.T) {
	rows := make([][]string, 25)
	for i := range rows {
		rows[i] = []string{"x"}
	}
	rows[22] = []string{"שם", "רחוב"}
	assert.Equal(t, 0, DetectHeaderRow(rows))
}

func TestCoerceNumber(t *testing.T) {
	n, ok := CoerceNumber("3 סלים")
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)

	n, ok = CoerceNumber("1.5")
	assert.True(t, ok)
	assert.Equal(t, 1.5, n)

	_, ok = CoerceNumber("ללא")
	assert.False(t, ok)
	_, ok = CoerceNumber("")
	assert.False(t, ok)
}
