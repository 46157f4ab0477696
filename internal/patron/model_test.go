package patron_test

import (
	"testing"

	"rostersync/internal/patron"
)

func TestCloneIsDeep(t *testing.T) {
	orig := &patron.Identity{
		Key:        "42",
		Categories: map[int]string{1: "A"},
		Address:    []patron.AddressEntry{{Code: patron.AddressPhone, Data: patron.Ptr("555-1234")}},
		Custom:     []patron.CustomEntry{{Code: patron.CustomActiveID, Data: patron.Ptr("X1")}},
	}
	cp := orig.Clone()
	cp.Categories[1] = "B"
	*cp.Address[0].Data = "000"
	cp.Custom[0].Data = nil

	if orig.Categories[1] != "A" {
		t.Fatal("categories shared")
	}
	if orig.AddressValue(patron.AddressPhone) != "555-1234" {
		t.Fatal("address data shared")
	}
	if v, ok := orig.CustomValue(patron.CustomActiveID); !ok || v != "X1" {
		t.Fatal("custom entries shared")
	}
	if (*patron.Identity)(nil).Clone() != nil {
		t.Fatal("nil clone should be nil")
	}
}
