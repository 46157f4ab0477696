package mapping_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"rostersync/internal/config"
	"rostersync/internal/mapping"
	"rostersync/internal/patron"
	"rostersync/internal/roster"
	"rostersync/internal/services"
	"rostersync/internal/testsupport"
)

func defaults() config.Defaults {
	return config.Defaults{
		SuppressedAddress: "UNKNOWN",
		City:              "Anytown",
		State:             "ST",
		Zipcode:           "00000",
		AddressReplace: []config.AddressRule{
			{Find: `\bstreet\b`, Replace: "St"},
			{Find: `\bSt\b\.?`, Replace: "ST"},
		},
	}
}

func newMapper(t *testing.T, d config.Defaults) *mapping.Mapper {
	t.Helper()
	m, err := mapping.New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func baseRecord(extra map[string]string) roster.Record {
	fields := map[string]string{
		roster.FieldStudentID: "456789",
		roster.FieldFirstName: "Ana",
		roster.FieldLastName:  "Lopez",
		roster.FieldDOB:       "03/05/2012",
	}
	for k, v := range extra {
		fields[k] = v
	}
	return roster.NewRecord(fields)
}

func address(entries []patron.AddressEntry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Data != nil {
			out[e.Code] = *e.Data
		}
	}
	return out
}

func TestCreatePayload(t *testing.T) {
	m := newMapper(t, defaults())
	client := testsupport.DefaultClient()
	rec := baseRecord(map[string]string{
		roster.FieldAddress:    "12 Elm street",
		roster.FieldCity:       "Springfield",
		roster.FieldMiddleName: "Q",
		roster.FieldEmail:      "ana@example.org",
	})

	payload, err := m.CreatePayload("123456789", rec, client.NewDefaults)
	if err != nil {
		t.Fatalf("CreatePayload: %v", err)
	}
	if payload.Barcode != "123456789" || payload.BirthDate != "2012-03-05" || payload.PIN != "03052012" {
		t.Fatalf("unexpected identity fields: %+v", payload)
	}
	if payload.MiddleName == nil || *payload.MiddleName != "Q" {
		t.Fatalf("middle name not copied: %+v", payload.MiddleName)
	}
	got := address(payload.Address)
	want := map[string]string{
		patron.AddressStreet:    "12 Elm ST",
		patron.AddressCityState: "Springfield, ST",
		patron.AddressEmail:     "ana@example.org",
		patron.AddressZip:       "00000",
	}
	for code, v := range want {
		if got[code] != v {
			t.Errorf("%s = %q, want %q", code, got[code], v)
		}
	}
	if payload.Address[0].Code != patron.AddressStreet || payload.Address[3].Code != patron.AddressZip {
		t.Fatalf("address block order changed: %+v", payload.Address)
	}
	if payload.HomeLibrary != "MAIN" || payload.Categories[1] != "ISD123" || payload.Categories[7] != "STUDENT" {
		t.Fatalf("policy not applied: %+v", payload)
	}

	again, err := m.CreatePayload("123456789", rec, client.NewDefaults)
	if err != nil {
		t.Fatalf("CreatePayload again: %v", err)
	}
	if !reflect.DeepEqual(payload, again) {
		t.Fatalf("CreatePayload is not repeatable:\n%+v\n%+v", payload, again)
	}
	payload.Categories[1] = "CHANGED"
	if client.NewDefaults.Categories[1] != "ISD123" {
		t.Fatal("CreatePayload must not alias the policy categories")
	}
}

func TestCreatePayloadSuppressedAddress(t *testing.T) {
	m := newMapper(t, defaults())
	for _, street := range []string{"", "address suppressed", " ADDRESS SUPPRESSED "} {
		rec := baseRecord(map[string]string{roster.FieldAddress: street})
		payload, err := m.CreatePayload("1", rec, config.Policy{})
		if err != nil {
			t.Fatalf("CreatePayload: %v", err)
		}
		if got := address(payload.Address)[patron.AddressStreet]; got != "UNKNOWN" {
			t.Errorf("street %q -> %q, want sentinel", street, got)
		}
	}

	rec := baseRecord(map[string]string{roster.FieldHomeAddress: "9 Oak street"})
	payload, _ := m.CreatePayload("1", rec, config.Policy{})
	if got := address(payload.Address)[patron.AddressStreet]; got != "9 Oak ST" {
		t.Fatalf("home_address fallback = %q", got)
	}
}

func existingIdentity() *patron.Identity {
	return &patron.Identity{
		Key:         "9001",
		Barcode:     "OLD1",
		AlternateID: "OLD1",
		FirstName:   "Ana",
		LastName:    "Lopez",
		BirthDate:   "2012-03-05",
		HomeLibrary: "BRANCH",
		UserProfile: "ADULT",
		Categories:  map[int]string{2: "KEEP", 7: "ADULT"},
		PIN:         "9999",
		Address: []patron.AddressEntry{
			{Code: patron.AddressStreet, Data: patron.Ptr("old street")},
			{Code: patron.AddressPhone, Data: patron.Ptr("555-1234")},
			{Code: patron.AddressEmail, Data: patron.Ptr("kept@example.org")},
			{Code: "FAX", Data: nil},
		},
		Custom: []patron.CustomEntry{
			{Key: "1", Code: patron.CustomActiveID, Data: patron.Ptr("A0,OLD1")},
			{Key: "2", Code: "NOTE", Data: nil},
		},
	}
}

func TestOverlayMergesAndPreserves(t *testing.T) {
	m := newMapper(t, defaults())
	client := testsupport.DefaultClient()
	existing := existingIdentity()
	rec := baseRecord(map[string]string{roster.FieldAddress: "1 Main street", roster.FieldEmail: "new@example.org"})

	result, err := m.Overlay(client, "123456789", rec, existing)
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	if result.TooLong {
		t.Fatal("unexpected TooLong")
	}
	p := result.Payload
	if p.AlternateID != "123456789" || p.Barcode != "OLD1" {
		t.Fatalf("keys = %s/%s", p.Barcode, p.AlternateID)
	}
	if p.HomeLibrary != "MAIN" || p.UserProfile != "STUDENT" {
		t.Fatalf("overlay policy not applied: %+v", p)
	}
	if p.Categories[2] != "KEEP" || p.Categories[7] != "STUDENT" {
		t.Fatalf("categories = %v", p.Categories)
	}
	got := address(p.Address)
	if got[patron.AddressPhone] != "555-1234" {
		t.Fatalf("PHONE not preserved: %+v", got)
	}
	if got[patron.AddressEmail] != "kept@example.org" {
		t.Fatalf("current e-mail should win: %q", got[patron.AddressEmail])
	}
	if got[patron.AddressStreet] != "1 Main ST" {
		t.Fatalf("street = %q", got[patron.AddressStreet])
	}
	emails := 0
	for _, a := range p.Address {
		if a.Data == nil {
			t.Fatalf("null address entry survived: %+v", a)
		}
		if a.Code == patron.AddressEmail {
			emails++
		}
	}
	if emails != 1 {
		t.Fatalf("expected a single EMAIL entry, got %d", emails)
	}
	if len(p.Custom) != 1 || *p.Custom[0].Data != "A0,OLD1,123456789" || p.Custom[0].Key != "1" {
		t.Fatalf("custom info = %+v", p.Custom)
	}
	if p.PIN != nil {
		t.Fatal("PIN must not be refreshed without overlay_pins")
	}

	if existing.HomeLibrary != "BRANCH" || existing.Categories[7] != "ADULT" || len(existing.Custom) != 2 {
		t.Fatal("Overlay mutated the existing identity")
	}
}

func TestOverlayKeepsEveryPhoneAndExtraEmail(t *testing.T) {
	m := newMapper(t, defaults())
	existing := existingIdentity()
	existing.Address = []patron.AddressEntry{
		{Code: patron.AddressEmail, Data: patron.Ptr("first@example.org")},
		{Code: patron.AddressPhone, Data: patron.Ptr("555-0001")},
		{Code: patron.AddressPhone, Data: patron.Ptr("555-0002")},
		{Code: patron.AddressEmail, Data: patron.Ptr("second@example.org")},
	}

	result, err := m.Overlay(testsupport.DefaultClient(), "123456789", baseRecord(nil), existing)
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	var phones, emails []string
	for _, a := range result.Payload.Address {
		switch a.Code {
		case patron.AddressPhone:
			phones = append(phones, *a.Data)
		case patron.AddressEmail:
			emails = append(emails, *a.Data)
		}
	}
	if want := []string{"555-0001", "555-0002"}; !reflect.DeepEqual(phones, want) {
		t.Fatalf("phones = %v, want %v", phones, want)
	}
	if want := []string{"first@example.org", "second@example.org"}; !reflect.DeepEqual(emails, want) {
		t.Fatalf("emails = %v, want %v", emails, want)
	}
	if result.Payload.Address[0].Code != patron.AddressStreet || len(result.Payload.Address) != 7 {
		t.Fatalf("address block = %+v", result.Payload.Address)
	}
}

func TestOverlayCreatesActiveIDAndRefreshesPIN(t *testing.T) {
	d := defaults()
	d.OverlayPins = true
	m := newMapper(t, d)
	existing := &patron.Identity{Key: "1", Barcode: "123456789", FirstName: "Ana", LastName: "Lopez"}

	result, err := m.Overlay(testsupport.DefaultClient(), "123456789", baseRecord(nil), existing)
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	v, ok := result.Identity.CustomValue(patron.CustomActiveID)
	if !ok || v != "123456789" {
		t.Fatalf("ACTIVEID = %q, %v", v, ok)
	}
	if result.Payload.PIN == nil || *result.Payload.PIN != "03052012" {
		t.Fatalf("PIN = %v", result.Payload.PIN)
	}
	if got := address(result.Payload.Address)[patron.AddressEmail]; got != "" {
		t.Fatalf("email should be blank, got %q", got)
	}
}

func TestOverlayTooLong(t *testing.T) {
	m := newMapper(t, defaults())
	cases := []struct {
		name    string
		length  int
		tooLong bool
	}{
		{name: "at limit", length: mapping.MaxCustomInfoLength, tooLong: false},
		{name: "over limit", length: mapping.MaxCustomInfoLength + 1, tooLong: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			existing := &patron.Identity{
				Key:     "1",
				Barcode: "123456789",
				Custom:  []patron.CustomEntry{{Code: "NOTE", Data: patron.Ptr(strings.Repeat("x", tc.length))}},
			}
			result, err := m.Overlay(testsupport.DefaultClient(), "123456789", baseRecord(nil), existing)
			if err != nil {
				t.Fatalf("Overlay: %v", err)
			}
			if result.TooLong != tc.tooLong {
				t.Fatalf("TooLong = %v, want %v", result.TooLong, tc.tooLong)
			}
			if tc.tooLong && result.TooLongCode != "NOTE" {
				t.Fatalf("TooLongCode = %q", result.TooLongCode)
			}
		})
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	d := defaults()
	d.AddressReplace = append(d.AddressReplace, config.AddressRule{Find: "("})
	if _, err := mapping.New(d); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
