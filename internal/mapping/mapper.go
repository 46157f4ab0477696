package mapping

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"rostersync/internal/config"
	"rostersync/internal/patron"
	"rostersync/internal/roster"
	"rostersync/internal/services"
)

// MaxCustomInfoLength is the longest custom-information value the upstream accepts.
const MaxCustomInfoLength = 249

const suppressedMarker = "ADDRESS SUPPRESSED"

type addressRule struct {
	find    *regexp.Regexp
	replace string
}

// Mapper builds payloads using the global defaults.
type Mapper struct {
	defaults config.Defaults
	rules    []addressRule
}

// New compiles the address rules in order.
func New(defaults config.Defaults) (*Mapper, error) {
	m := &Mapper{defaults: defaults}
	for _, rule := range defaults.AddressReplace {
		re, err := regexp.Compile("(?i)" + rule.Find)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "mapping", "address rule", fmt.Sprintf("invalid pattern %q", rule.Find), err)
		}
		m.rules = append(m.rules, addressRule{find: re, replace: rule.Replace})
	}
	return m, nil
}

// OverlayResult is the outcome of Overlay. When TooLong is set Payload must
// not be written.
type OverlayResult struct {
	Payload  patron.UpdatePayload
	Identity *patron.Identity
	TooLong  bool
	// TooLongCode names the offending custom-information entry.
	TooLongCode string
}

// CreatePayload builds a new identity from rec with the client's new defaults.
func (m *Mapper) CreatePayload(primaryKey string, rec roster.Record, policy config.Policy) (patron.CreatePayload, error) {
	dob, ok := rec.DOB()
	if !ok {
		return patron.CreatePayload{}, services.Wrap(services.ErrValidation, "mapping", "create", "record has no usable date of birth", nil)
	}
	payload := patron.CreatePayload{
		Barcode:     primaryKey,
		BirthDate:   dob.Format("2006-01-02"),
		FirstName:   rec.Value(roster.FieldFirstName),
		LastName:    rec.Value(roster.FieldLastName),
		Address:     m.addressBlock(rec, ""),
		HomeLibrary: policy.HomeLibrary,
		UserProfile: policy.UserProfile,
		Categories:  copyCategories(nil, policy.Categories),
		PIN:         dob.Format("01022006"),
	}
	if middle, ok := rec.Get(roster.FieldMiddleName); ok {
		payload.MiddleName = patron.Ptr(middle)
	}
	return payload, nil
}

// Overlay merges rec into a copy of existing using the client's overlay defaults.
func (m *Mapper) Overlay(client config.Client, primaryKey string, rec roster.Record, existing *patron.Identity) (OverlayResult, error) {
	if existing == nil {
		return OverlayResult{}, services.Wrap(services.ErrValidation, "mapping", "overlay", "no identity to overlay", nil)
	}
	id := existing.Clone()
	policy := client.OverlayDefaults

	id.Categories = copyCategories(id.Categories, policy.Categories)

	fresh := m.addressBlock(rec, existing.AddressValue(patron.AddressEmail))
	var kept []patron.AddressEntry
	for _, entry := range existing.Address {
		if entry.Code != patron.AddressPhone && entry.Code != patron.AddressEmail {
			continue
		}
		// The rebuilt block already carries the current e-mail.
		if slices.ContainsFunc(fresh, func(a patron.AddressEntry) bool { return sameAddress(a, entry) }) {
			continue
		}
		kept = append(kept, entry)
	}
	id.Address = append(fresh, kept...)

	id.HomeLibrary = policy.HomeLibrary
	id.UserProfile = policy.UserProfile
	id.AlternateID = primaryKey
	id.Custom = withActiveID(id.Custom, id.Barcode, id.AlternateID)

	id.Custom = slices.DeleteFunc(id.Custom, func(c patron.CustomEntry) bool { return c.Data == nil })
	id.Address = slices.DeleteFunc(id.Address, func(a patron.AddressEntry) bool { return a.Data == nil })

	var pin *string
	if m.defaults.OverlayPins {
		if dob, ok := rec.DOB(); ok {
			pin = patron.Ptr(dob.Format("01022006"))
			id.PIN = *pin
		}
	}

	result := OverlayResult{Identity: id}
	for _, c := range id.Custom {
		if utf8.RuneCountInString(*c.Data) > MaxCustomInfoLength {
			result.TooLong = true
			result.TooLongCode = c.Code
			return result, nil
		}
	}

	result.Payload = patron.UpdatePayload{
		Barcode:     id.Barcode,
		AlternateID: id.AlternateID,
		FirstName:   id.FirstName,
		LastName:    id.LastName,
		BirthDate:   id.BirthDate,
		HomeLibrary: id.HomeLibrary,
		UserProfile: id.UserProfile,
		Categories:  id.Categories,
		Address:     id.Address,
		Custom:      id.Custom,
		PIN:         pin,
	}
	if id.MiddleName != "" {
		result.Payload.MiddleName = patron.Ptr(id.MiddleName)
	}
	return result, nil
}

// NormalizeStreet applies the address rules in order.
func (m *Mapper) NormalizeStreet(street string) string {
	for _, rule := range m.rules {
		street = rule.find.ReplaceAllString(street, rule.replace)
	}
	return street
}

// addressBlock builds STREET, CITY/STATE, EMAIL and ZIP. currentEmail, when
// set, wins over the record's e-mail.
func (m *Mapper) addressBlock(rec roster.Record, currentEmail string) []patron.AddressEntry {
	street := rec.Street()
	if trimmed := strings.ToUpper(strings.TrimSpace(street)); trimmed == "" || trimmed == suppressedMarker {
		street = m.defaults.SuppressedAddress
	} else {
		street = m.NormalizeStreet(street)
	}

	email := currentEmail
	if email == "" {
		email = rec.Value(roster.FieldEmail)
	}

	return []patron.AddressEntry{
		{Code: patron.AddressStreet, Data: patron.Ptr(street)},
		{Code: patron.AddressCityState, Data: patron.Ptr(
			orDefault(rec.Value(roster.FieldCity), m.defaults.City) + ", " + orDefault(rec.Value(roster.FieldState), m.defaults.State),
		)},
		{Code: patron.AddressEmail, Data: patron.Ptr(email)},
		{Code: patron.AddressZip, Data: patron.Ptr(orDefault(rec.Value(roster.FieldZipcode), m.defaults.Zipcode))},
	}
}

func sameAddress(a, b patron.AddressEntry) bool {
	if a.Code != b.Code {
		return false
	}
	if a.Data == nil || b.Data == nil {
		return a.Data == b.Data
	}
	return *a.Data == *b.Data
}

// withActiveID records barcode and alternate id in the ACTIVEID entry,
// keeping previously recorded ids first and creating the entry if missing.
func withActiveID(custom []patron.CustomEntry, barcode, alternateID string) []patron.CustomEntry {
	idx := slices.IndexFunc(custom, func(c patron.CustomEntry) bool { return c.Code == patron.CustomActiveID })
	if idx < 0 {
		custom = append(custom, patron.CustomEntry{Code: patron.CustomActiveID})
		idx = len(custom) - 1
	}
	var ids []string
	if data := custom[idx].Data; data != nil {
		for _, v := range strings.Split(*data, ",") {
			if v = strings.TrimSpace(v); v != "" && !slices.Contains(ids, v) {
				ids = append(ids, v)
			}
		}
	}
	for _, v := range []string{barcode, alternateID} {
		if v != "" && !slices.Contains(ids, v) {
			ids = append(ids, v)
		}
	}
	custom[idx].Data = patron.Ptr(strings.Join(ids, ","))
	return custom
}

func copyCategories(dst, defaults map[int]string) map[int]string {
	if len(defaults) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[int]string, len(defaults))
	}
	for n, v := range defaults {
		dst[n] = v
	}
	return dst
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
