package roster

import (
	"fmt"
	"sort"

	"rostersync/internal/config"
	"rostersync/internal/services"
)

// FieldKind selects how a raw value is typed before its validator tag runs.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInteger
	KindDate
)

// FieldRule describes one column.
type FieldRule struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Tag is a go-playground/validator tag applied to the typed value when present.
	Tag string
}

// Schema is an ordered set of field rules.
type Schema struct {
	Name   string
	Fields []FieldRule
}

// DistrictSchema is the school-district roster layout.
func DistrictSchema() Schema {
	return Schema{
		Name: "district",
		Fields: []FieldRule{
			{Name: FieldStudentID, Kind: KindInteger, Required: true, Tag: "min=100000,max=999999"},
			{Name: FieldFirstName, Kind: KindString, Required: true},
			{Name: FieldMiddleName, Kind: KindString},
			{Name: FieldLastName, Kind: KindString, Required: true},
			{Name: FieldAddress, Kind: KindString},
			{Name: FieldHomeAddress, Kind: KindString},
			{Name: FieldCity, Kind: KindString},
			{Name: FieldState, Kind: KindString},
			{Name: FieldZipcode, Kind: KindInteger, Tag: "min=0,max=99999"},
			{Name: FieldDOB, Kind: KindDate, Required: true, Tag: "dob_window=22"},
			{Name: FieldEmail, Kind: KindString, Tag: "email"},
		},
	}
}

// Registry resolves schema names to schemas.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry builds a registry. Later schemas replace earlier ones of the same name.
func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for i := range schemas {
		s := schemas[i]
		r.schemas[s.Name] = &s
	}
	return r
}

// DefaultRegistry contains every built-in schema.
func DefaultRegistry() *Registry {
	return NewRegistry(DistrictSchema())
}

// Lookup returns the named schema.
func (r *Registry) Lookup(name string) (*Schema, error) {
	if s, ok := r.schemas[name]; ok {
		return s, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "roster", "schema", fmt.Sprintf("unknown schema %q", name), nil)
}

// CheckClients verifies every client names a registered schema.
func (r *Registry) CheckClients(clients []config.Client) error {
	for _, client := range clients {
		if _, err := r.Lookup(client.Schema); err != nil {
			return fmt.Errorf("clients[%s].schema: %w", client.NID(), err)
		}
	}
	return nil
}

// Names lists registered schema names in order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
