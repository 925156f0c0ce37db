package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NullString wraps sql.NullString so that an invalid value marshals as JSON null.
type NullString struct {
	sql.NullString
}

// NewNullString returns a valid NullString for a non-empty s.
func NewNullString(s string) NullString {
	return NullString{sql.NullString{String: s, Valid: s != ""}}
}

func (ns NullString) MarshalJSON() ([]byte, error) {
	if !ns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ns.String)
}

func (ns *NullString) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s != nil && *s != "" {
		ns.String = *s
		ns.Valid = true
	} else {
		ns.String = ""
		ns.Valid = false
	}
	return nil
}

// NullTime wraps sql.NullTime for JSON.
type NullTime struct {
	sql.NullTime
}

// NewNullTime returns a valid NullTime.
func NewNullTime(t time.Time) NullTime {
	return NullTime{sql.NullTime{Time: t, Valid: true}}
}

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(nt.Time)
}

func (nt *NullTime) UnmarshalJSON(b []byte) error {
	var t *time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	if t != nil {
		nt.Time = *t
		nt.Valid = true
	} else {
		nt.Valid = false
	}
	return nil
}

// NullFloat64 wraps sql.NullFloat64 for coordinates.
type NullFloat64 struct {
	sql.NullFloat64
}

// NewNullFloat64 returns a valid NullFloat64.
func NewNullFloat64(f float64) NullFloat64 {
	return NullFloat64{sql.NullFloat64{Float64: f, Valid: true}}
}

func (nf NullFloat64) MarshalJSON() ([]byte, error) {
	if !nf.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(nf.Float64)
}

func (nf *NullFloat64) UnmarshalJSON(b []byte) error {
	var f *float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f != nil {
		nf.Float64 = *f
		nf.Valid = true
	} else {
		nf.Valid = false
	}
	return nil
}

// NullInt64 wraps sql.NullInt64 for optional counters such as household size.
type NullInt64 struct {
	sql.NullInt64
}

// NewNullInt64 returns a valid NullInt64.
func NewNullInt64(n int64) NullInt64 {
	return NullInt64{sql.NullInt64{Int64: n, Valid: true}}
}

func (ni NullInt64) MarshalJSON() ([]byte, error) {
	if !ni.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ni.Int64)
}

func (ni *NullInt64) UnmarshalJSON(b []byte) error {
	var n *int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if n != nil {
		ni.Int64 = *n
		ni.Valid = true
	} else {
		ni.Valid = false
	}
	return nil
}
