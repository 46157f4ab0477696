package roster

import (
	"strings"
	"time"
)

// Canonical field names of the district schema.
const (
	FieldStudentID   = "student_id"
	FieldFirstName   = "first_name"
	FieldMiddleName  = "middle_name"
	FieldLastName    = "last_name"
	FieldAddress     = "address"
	FieldHomeAddress = "home_address"
	FieldCity        = "city"
	FieldState       = "state"
	FieldZipcode     = "zipcode"
	FieldDOB         = "dob"
	FieldEmail       = "email"
)

// Record is one validated row. Raw keeps every column as read (keys
// lower-cased); Fields holds the normalized values, with empty optional
// fields removed.
type Record struct {
	Line   int
	Raw    map[string]string
	Fields map[string]string
}

// NewRecord builds a record whose raw and normalized values are the same.
// Useful for fixtures and for rows produced outside the loader.
func NewRecord(fields map[string]string) Record {
	raw := make(map[string]string, len(fields))
	norm := make(map[string]string, len(fields))
	for k, v := range fields {
		key := strings.ToLower(strings.TrimSpace(k))
		raw[key] = v
		if v = strings.TrimSpace(v); v != "" {
			norm[key] = v
		}
	}
	return Record{Raw: raw, Fields: norm}
}

// Get returns a normalized field and whether it is present.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Value returns a normalized field or "".
func (r Record) Value(name string) string {
	return r.Fields[name]
}

// SourceID is the institution's identifier for the person.
func (r Record) SourceID() string {
	return r.Value(FieldStudentID)
}

// Street returns the address line, preferring the address column over home_address.
func (r Record) Street() string {
	if v := r.Value(FieldAddress); v != "" {
		return v
	}
	return r.Value(FieldHomeAddress)
}

// DisplayName renders "First Middle Last" for logs and reports.
func (r Record) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, key := range []string{FieldFirstName, FieldMiddleName, FieldLastName} {
		if v := r.Value(key); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// DOB parses the date of birth.
func (r Record) DOB() (time.Time, bool) {
	return ParseDate(r.Value(FieldDOB))
}

// dateLayouts lists accepted date of birth spellings, most common first.
var dateLayouts = []string{"01/02/2006", "1/2/2006", "2006-01-02", "01-02-2006"}

// ParseDate parses a calendar date in any accepted layout.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
