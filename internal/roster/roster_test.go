package roster_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"rostersync/internal/config"
	"rostersync/internal/roster"
	"rostersync/internal/services"
	"rostersync/internal/testsupport"
)

func fixedClock() time.Time {
	return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newLoader() *roster.Loader {
	return roster.NewLoader(roster.DefaultRegistry(), roster.NewValidator(fixedClock), nil)
}

func TestLoadPartitionsValidAndInvalidRows(t *testing.T) {
	path := testsupport.WriteCSV(t, filepath.Join(t.TempDir(), "roster.csv"), testsupport.DistrictHeader,
		[]string{"123456", "Ana", "", "Lopez", "1 Main St", "Anytown", "ST", "12345", "03/15/2012", "ana@example.com"},
		[]string{"12", "Bo", "", "Short", "", "", "", "", "03/15/2012", ""},
		[]string{"234567", "Cy", "Q", "Young", "", "", "", "", "2013-02-01", ""},
	)

	result, err := newLoader().Load(context.Background(), path, "district")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Rows != 3 || len(result.Valid) != 2 || len(result.Invalid) != 1 {
		t.Fatalf("unexpected partition: %s", result)
	}
	bad := result.Invalid[0]
	if bad.Line != 3 {
		t.Fatalf("expected failure on line 3, got %d", bad.Line)
	}
	if bad.Record["student_id"] != "12" {
		t.Fatalf("failure should keep the row, got %v", bad.Record)
	}
	if len(bad.Errors) != 1 || !strings.Contains(bad.Errors[0], "student_id") {
		t.Fatalf("unexpected errors: %v", bad.Errors)
	}

	first := result.Valid[0]
	if first.SourceID() != "123456" || first.Street() != "1 Main St" {
		t.Fatalf("unexpected record: %+v", first.Fields)
	}
	if _, ok := result.Valid[1].Get("city"); ok {
		t.Fatal("empty optional field should be absent")
	}
	if result.Valid[1].DisplayName() != "Cy Q Young" {
		t.Fatalf("display name = %q", result.Valid[1].DisplayName())
	}
}

func TestLoadNormalizesHeaderAndRaggedRows(t *testing.T) {
	content := "\ufeffStudent_ID, First_Name ,LAST_NAME,DOB,Home_Address\n" +
		"345678,Dee,Diaz,1/2/2014\n"
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "roster.csv"), content)

	result, err := newLoader().Load(context.Background(), path, "district")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.Valid) != 1 {
		t.Fatalf("expected one valid record, got %s: %+v", result, result.Invalid)
	}
	rec := result.Valid[0]
	if rec.Value("first_name") != "Dee" || rec.Street() != "" {
		t.Fatalf("unexpected fields: %v", rec.Fields)
	}
	if _, ok := rec.Raw["home_address"]; !ok {
		t.Fatal("missing trailing column should be kept as empty raw value")
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "bare quote", content: "student_id,first_name\n\"123456,Ana\n"},
		{name: "blank header", content: " , \n123456,Ana\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "roster.csv"), tc.content)
			_, err := newLoader().Load(context.Background(), path, "district")
			if !errors.Is(err, services.ErrLoad) {
				t.Fatalf("expected ErrLoad, got %v", err)
			}
		})
	}
}

func TestLoadMissingFileAndUnknownSchema(t *testing.T) {
	_, err := newLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), "district")
	if !errors.Is(err, services.ErrLoad) {
		t.Fatalf("expected ErrLoad for missing file, got %v", err)
	}
	_, err = newLoader().Read(context.Background(), strings.NewReader("a\n1\n"), "college")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unknown schema, got %v", err)
	}
}

func TestValidatorRules(t *testing.T) {
	schema, err := roster.DefaultRegistry().Lookup("district")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	base := func() map[string]string {
		return map[string]string{
			"student_id": "123456",
			"first_name": "Ana",
			"last_name":  "Lopez",
			"dob":        "03/15/2012",
		}
	}
	cases := []struct {
		name   string
		modify func(map[string]string)
		want   string
	}{
		{name: "valid", modify: func(map[string]string) {}},
		{name: "missing first name", modify: func(m map[string]string) { m["first_name"] = " " }, want: "first_name is required"},
		{name: "id not a number", modify: func(m map[string]string) { m["student_id"] = "12ab" }, want: "student_id must be a number"},
		{name: "id too large", modify: func(m map[string]string) { m["student_id"] = "1000000" }, want: "student_id must be at most 999999"},
		{name: "zip too large", modify: func(m map[string]string) { m["zipcode"] = "123456" }, want: "zipcode must be at most 99999"},
		{name: "zip leading zero", modify: func(m map[string]string) { m["zipcode"] = "01234" }},
		{name: "dob unparsable", modify: func(m map[string]string) { m["dob"] = "March 3" }, want: "dob must be a date"},
		{name: "dob too old", modify: func(m map[string]string) { m["dob"] = "01/01/1990" }, want: "dob must fall within the last 22 years"},
		{name: "dob exactly 22 years ago", modify: func(m map[string]string) { m["dob"] = "06/01/2004" }},
		{name: "dob one day past 22 years", modify: func(m map[string]string) { m["dob"] = "05/31/2004" }, want: "dob must fall within the last 22 years"},
		{name: "dob tomorrow", modify: func(m map[string]string) { m["dob"] = "2026-06-02" }},
		{name: "dob day after tomorrow", modify: func(m map[string]string) { m["dob"] = "2026-06-03" }, want: "dob must fall within"},
		{name: "dob next week", modify: func(m map[string]string) { m["dob"] = "2026-06-08" }, want: "dob must fall within"},
		{name: "bad email", modify: func(m map[string]string) { m["email"] = "not-an-email" }, want: "email must be a valid email"},
	}
	v := roster.NewValidator(fixedClock)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := base()
			tc.modify(raw)
			_, problems := v.Validate(schema, raw)
			if tc.want == "" {
				if len(problems) != 0 {
					t.Fatalf("expected valid, got %v", problems)
				}
				return
			}
			if !slices.ContainsFunc(problems, func(p string) bool { return strings.HasPrefix(p, tc.want) }) {
				t.Fatalf("expected %q in %v", tc.want, problems)
			}
		})
	}
}

func TestValidatorDOBWindowUsesClockDate(t *testing.T) {
	schema, err := roster.DefaultRegistry().Lookup("district")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	// 23:30 on June 1 west of UTC is already June 2 in UTC.
	late := func() time.Time {
		return time.Date(2026, 6, 1, 23, 30, 0, 0, time.FixedZone("UTC-7", -7*60*60))
	}
	v := roster.NewValidator(late)
	cases := []struct {
		dob   string
		valid bool
	}{
		{dob: "06/01/2004", valid: true},
		{dob: "05/31/2004", valid: false},
		{dob: "06/02/2026", valid: true},
		{dob: "06/03/2026", valid: false},
	}
	for _, tc := range cases {
		t.Run(tc.dob, func(t *testing.T) {
			_, problems := v.Validate(schema, map[string]string{
				"student_id": "123456",
				"first_name": "Ana",
				"last_name":  "Lopez",
				"dob":        tc.dob,
			})
			if got := len(problems) == 0; got != tc.valid {
				t.Fatalf("valid = %v, want %v (problems %v)", got, tc.valid, problems)
			}
		})
	}
}

func TestRegistryNames(t *testing.T) {
	custom := roster.Schema{Name: "college", Fields: []roster.FieldRule{{Name: "id", Kind: roster.KindString, Required: true}}}
	reg := roster.NewRegistry(roster.DistrictSchema(), custom)
	if got := reg.Names(); !slices.Equal(got, []string{"college", "district"}) {
		t.Fatalf("Names = %v", got)
	}
}

func TestRegistryCheckClients(t *testing.T) {
	reg := roster.DefaultRegistry()
	client := testsupport.DefaultClient()
	if err := reg.CheckClients([]config.Client{client}); err != nil {
		t.Fatalf("CheckClients: %v", err)
	}
	client.Schema = "college"
	err := reg.CheckClients([]config.Client{client})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
