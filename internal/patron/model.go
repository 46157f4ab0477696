package patron

import (
	"maps"
	"strings"
)

// Address and custom-information codes used by the mapper.
const (
	AddressStreet    = "STREET"
	AddressCityState = "CITY/STATE"
	AddressEmail     = "EMAIL"
	AddressZip       = "ZIP"
	AddressPhone     = "PHONE"

	CustomActiveID = "ACTIVEID"
)

// Search indexes understood by the upstream.
const (
	IndexAlternateID = "ALT_ID"
	IndexName        = "NAME"
)

// AddressEntry is one coded line of an identity's address block.
type AddressEntry struct {
	Code string  `json:"code"`
	Data *string `json:"data"`
}

// CustomEntry is one coded custom-information value.
type CustomEntry struct {
	Key  string  `json:"key,omitempty"`
	Code string  `json:"code"`
	Data *string `json:"data"`
}

// Identity is a point-in-time copy of an upstream person record.
type Identity struct {
	Key         string         `json:"key"`
	Barcode     string         `json:"barcode"`
	AlternateID string         `json:"alternate_id,omitempty"`
	FirstName   string         `json:"first_name"`
	MiddleName  string         `json:"middle_name,omitempty"`
	LastName    string         `json:"last_name"`
	BirthDate   string         `json:"birth_date,omitempty"`
	HomeLibrary string         `json:"home_library,omitempty"`
	UserProfile string         `json:"user_profile,omitempty"`
	Categories  map[int]string `json:"categories,omitempty"`
	Address     []AddressEntry `json:"address,omitempty"`
	Custom      []CustomEntry  `json:"custom,omitempty"`
	PIN         string         `json:"pin,omitempty"`
}

// Clone returns a deep copy.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	out := *id
	out.Categories = maps.Clone(id.Categories)
	out.Address = make([]AddressEntry, len(id.Address))
	for i, a := range id.Address {
		out.Address[i] = AddressEntry{Code: a.Code, Data: clonePtr(a.Data)}
	}
	out.Custom = make([]CustomEntry, len(id.Custom))
	for i, c := range id.Custom {
		out.Custom[i] = CustomEntry{Key: c.Key, Code: c.Code, Data: clonePtr(c.Data)}
	}
	return &out
}

// AddressValue returns the data of the first address entry with code, or "".
func (id *Identity) AddressValue(code string) string {
	for _, a := range id.Address {
		if a.Code == code && a.Data != nil {
			return *a.Data
		}
	}
	return ""
}

// CustomValue returns the custom-information entry with code, if any.
func (id *Identity) CustomValue(code string) (string, bool) {
	for _, c := range id.Custom {
		if c.Code == code {
			if c.Data == nil {
				return "", true
			}
			return *c.Data, true
		}
	}
	return "", false
}

// DisplayName renders "Last, First" the way the upstream lists people.
func (id *Identity) DisplayName() string {
	return strings.TrimSpace(strings.Join([]string{id.LastName, id.FirstName}, ", "))
}

// CreatePayload is the body of a new identity.
type CreatePayload struct {
	Barcode     string
	BirthDate   string
	FirstName   string
	MiddleName  *string
	LastName    string
	Address     []AddressEntry
	HomeLibrary string
	UserProfile string
	Categories  map[int]string
	PIN         string
}

// UpdatePayload replaces an existing identity's mutable fields.
type UpdatePayload struct {
	Barcode     string
	AlternateID string
	FirstName   string
	MiddleName  *string
	LastName    string
	BirthDate   string
	HomeLibrary string
	UserProfile string
	Categories  map[int]string
	Address     []AddressEntry
	Custom      []CustomEntry
	// PIN is only sent when set.
	PIN *string
}

// Ptr returns a pointer to v.
func Ptr(v string) *string { return &v }

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
