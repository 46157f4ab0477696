package ilsws

import (
	"encoding/json"
	"fmt"
	"strings"

	"rostersync/internal/patron"
)

// includeFields is requested on every read so overlays see the full record.
var includeFields = []string{
	"profile",
	"birthDate",
	"library",
	"alternateID",
	"firstName",
	"middleName",
	"displayName",
	"lastName",
	"address1",
	"barcode",
	"category01",
	"category02",
	"category07",
	"customInformation",
	"pin",
}

type ref struct {
	Resource string `json:"resource"`
	Key      string `json:"key"`
}

type codedFields struct {
	Code ref     `json:"code"`
	Data *string `json:"data"`
}

type codedEntry struct {
	Resource string      `json:"resource"`
	Key      string      `json:"key,omitempty"`
	Fields   codedFields `json:"fields"`
}

type patronEnvelope struct {
	Resource string                     `json:"resource"`
	Key      string                     `json:"key,omitempty"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

type searchResponse struct {
	TotalResults int              `json:"totalResults"`
	Result       []patronEnvelope `json:"result"`
}

func categoryField(n int) string {
	return fmt.Sprintf("category%02d", n)
}

func categoryResource(n int) string {
	return fmt.Sprintf("/policy/patronCategory%02d", n)
}

func addressEntries(entries []patron.AddressEntry) []codedEntry {
	out := make([]codedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, codedEntry{
			Resource: "/user/patron/address1",
			Fields:   codedFields{Code: ref{Resource: "/policy/patronAddress1", Key: e.Code}, Data: e.Data},
		})
	}
	return out
}

func customEntries(entries []patron.CustomEntry) []codedEntry {
	out := make([]codedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, codedEntry{
			Resource: "/user/patron/customInformation",
			Key:      e.Key,
			Fields:   codedFields{Code: ref{Resource: "/policy/patronExtendedInformation", Key: e.Code}, Data: e.Data},
		})
	}
	return out
}

func encodeCreate(p patron.CreatePayload) map[string]any {
	fields := map[string]any{
		"barcode":   p.Barcode,
		"birthDate": p.BirthDate,
		"firstName": p.FirstName,
		"lastName":  p.LastName,
		"address1":  addressEntries(p.Address),
		"library":   ref{Resource: "/policy/library", Key: p.HomeLibrary},
		"profile":   ref{Resource: "/policy/userProfile", Key: p.UserProfile},
		"pin":       p.PIN,
	}
	if p.MiddleName != nil {
		fields["middleName"] = *p.MiddleName
	}
	for n, key := range p.Categories {
		fields[categoryField(n)] = ref{Resource: categoryResource(n), Key: key}
	}
	return map[string]any{"resource": "/user/patron", "fields": fields}
}

func encodeUpdate(key string, p patron.UpdatePayload) map[string]any {
	fields := map[string]any{
		"barcode":           p.Barcode,
		"alternateID":       p.AlternateID,
		"firstName":         p.FirstName,
		"lastName":          p.LastName,
		"address1":          addressEntries(p.Address),
		"customInformation": customEntries(p.Custom),
		"library":           ref{Resource: "/policy/library", Key: p.HomeLibrary},
		"profile":           ref{Resource: "/policy/userProfile", Key: p.UserProfile},
	}
	if p.BirthDate != "" {
		fields["birthDate"] = p.BirthDate
	}
	if p.MiddleName != nil {
		fields["middleName"] = *p.MiddleName
	}
	if p.PIN != nil {
		fields["pin"] = *p.PIN
	}
	for n, k := range p.Categories {
		fields[categoryField(n)] = ref{Resource: categoryResource(n), Key: k}
	}
	return map[string]any{"resource": "/user/patron", "key": key, "fields": fields}
}

func decodePatron(env patronEnvelope) (*patron.Identity, error) {
	id := &patron.Identity{Key: env.Key}
	str := func(name string, dst *string) error {
		raw, ok := env.Fields[name]
		if !ok || string(raw) == "null" {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		return nil
	}
	refKey := func(name string) (string, error) {
		raw, ok := env.Fields[name]
		if !ok || string(raw) == "null" {
			return "", nil
		}
		var r ref
		if err := json.Unmarshal(raw, &r); err != nil {
			return "", fmt.Errorf("decode %s: %w", name, err)
		}
		return r.Key, nil
	}
	coded := func(name string) ([]codedEntry, error) {
		raw, ok := env.Fields[name]
		if !ok || string(raw) == "null" {
			return nil, nil
		}
		var entries []codedEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return entries, nil
	}

	for name, dst := range map[string]*string{
		"barcode":     &id.Barcode,
		"alternateID": &id.AlternateID,
		"firstName":   &id.FirstName,
		"middleName":  &id.MiddleName,
		"lastName":    &id.LastName,
		"birthDate":   &id.BirthDate,
		"pin":         &id.PIN,
	} {
		if err := str(name, dst); err != nil {
			return nil, err
		}
	}
	var err error
	if id.HomeLibrary, err = refKey("library"); err != nil {
		return nil, err
	}
	if id.UserProfile, err = refKey("profile"); err != nil {
		return nil, err
	}
	for name := range env.Fields {
		if !strings.HasPrefix(name, "category") {
			continue
		}
		var n int
		if _, scanErr := fmt.Sscanf(name, "category%02d", &n); scanErr != nil {
			continue
		}
		key, err := refKey(name)
		if err != nil {
			return nil, err
		}
		if key == "" {
			continue
		}
		if id.Categories == nil {
			id.Categories = make(map[int]string)
		}
		id.Categories[n] = key
	}

	address, err := coded("address1")
	if err != nil {
		return nil, err
	}
	for _, e := range address {
		id.Address = append(id.Address, patron.AddressEntry{Code: e.Fields.Code.Key, Data: e.Fields.Data})
	}
	custom, err := coded("customInformation")
	if err != nil {
		return nil, err
	}
	for _, e := range custom {
		id.Custom = append(id.Custom, patron.CustomEntry{Key: e.Key, Code: e.Fields.Code.Key, Data: e.Fields.Data})
	}
	return id, nil
}
