package ilsws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"rostersync/internal/config"
	"rostersync/internal/patron"
	"rostersync/internal/patron/ilsws"
	"rostersync/internal/services"
)

const patronJSON = `{
  "resource": "/user/patron",
  "key": "9001",
  "fields": {
    "barcode": "123456789",
    "alternateID": "123456789",
    "firstName": "Ana",
    "middleName": null,
    "lastName": "Lopez",
    "birthDate": "2012-03-15",
    "library": {"resource": "/policy/library", "key": "MAIN"},
    "profile": {"resource": "/policy/userProfile", "key": "STUDENT"},
    "category01": {"resource": "/policy/patronCategory01", "key": "ISD123"},
    "category07": {"resource": "/policy/patronCategory07", "key": "STUDENT"},
    "address1": [
      {"resource": "/user/patron/address1", "fields": {"code": {"resource": "/policy/patronAddress1", "key": "PHONE"}, "data": "555-1234"}},
      {"resource": "/user/patron/address1", "fields": {"code": {"resource": "/policy/patronAddress1", "key": "EMAIL"}, "data": null}}
    ],
    "customInformation": [
      {"resource": "/user/patron/customInformation", "key": "77", "fields": {"code": {"resource": "/policy/patronExtendedInformation", "key": "ACTIVEID"}, "data": "123456789"}}
    ]
  }
}`

type recorded struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

type fakeILSWS struct {
	mu       sync.Mutex
	requests []recorded
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeILSWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, header: r.Header.Clone()}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeILSWS) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	return f.requests[len(f.requests)-1]
}

func newClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*ilsws.Client, *fakeILSWS) {
	t.Helper()
	fake := &fakeILSWS{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client, err := ilsws.New(config.Upstream{
		BaseURL:           srv.URL + "/symws/",
		ClientID:          "CLIENT",
		AppID:             "rostersync",
		SessionToken:      "token-1",
		PrivilegeOverride: "SECRET",
		TimeoutSeconds:    5,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, fake
}

func TestFindByBarcodeDecodesPatron(t *testing.T) {
	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(patronJSON))
	})

	id, err := client.FindByBarcode(context.Background(), "123456789")
	if err != nil {
		t.Fatalf("FindByBarcode: %v", err)
	}
	if id == nil || id.Key != "9001" || id.FirstName != "Ana" || id.BirthDate != "2012-03-15" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.HomeLibrary != "MAIN" || id.UserProfile != "STUDENT" {
		t.Fatalf("unexpected policy: %+v", id)
	}
	if id.Categories[1] != "ISD123" || id.Categories[7] != "STUDENT" {
		t.Fatalf("unexpected categories: %v", id.Categories)
	}
	if id.AddressValue(patron.AddressPhone) != "555-1234" || len(id.Address) != 2 || id.Address[1].Data != nil {
		t.Fatalf("unexpected address: %+v", id.Address)
	}
	if v, ok := id.CustomValue(patron.CustomActiveID); !ok || v != "123456789" || id.Custom[0].Key != "77" {
		t.Fatalf("unexpected custom info: %+v", id.Custom)
	}

	req := fake.last(t)
	if req.path != "/symws/user/patron/barcode/123456789" {
		t.Fatalf("path = %s", req.path)
	}
	if req.header.Get("x-sirs-clientID") != "CLIENT" || req.header.Get("x-sirs-sessionToken") != "token-1" {
		t.Fatalf("missing auth headers: %v", req.header)
	}
	if req.header.Get("sd-originating-app-id") != "rostersync" {
		t.Fatalf("missing app id header")
	}
	if !strings.Contains(req.query, "includeFields=") {
		t.Fatalf("includeFields not requested: %s", req.query)
	}
}

func TestFindByBarcodeStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		marker error
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "unavailable", status: http.StatusServiceUnavailable, marker: services.ErrUpstreamUnavailable},
		{name: "unauthorized", status: http.StatusUnauthorized, marker: services.ErrConfiguration},
		{name: "rejected", status: http.StatusUnprocessableEntity, marker: services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})
			id, err := client.FindByBarcode(context.Background(), "1")
			if tc.marker == nil {
				if err != nil || id != nil {
					t.Fatalf("expected not found, got %+v, %v", id, err)
				}
				return
			}
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestSearchQueryAndEmptyStatuses(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if s := int(status.Load()); s != http.StatusOK {
			w.WriteHeader(s)
			return
		}
		_, _ = w.Write([]byte(`{"totalResults":1,"result":[` + patronJSON + `]}`))
	})

	found, err := client.Search(context.Background(), patron.IndexName, "'LOPEZ'|'ANA'", 10)
	if err != nil || len(found) != 1 || found[0].LastName != "Lopez" {
		t.Fatalf("Search = %+v, %v", found, err)
	}
	req := fake.last(t)
	if req.path != "/symws/user/patron/search" {
		t.Fatalf("path = %s", req.path)
	}
	if !strings.Contains(req.query, "q=NAME%3A%27%27LOPEZ%27%7C%27ANA%27%27") || !strings.Contains(req.query, "ct=10") {
		t.Fatalf("unexpected query: %s", req.query)
	}

	for _, s := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
		status.Store(int32(s))
		found, err := client.Search(context.Background(), patron.IndexAlternateID, "1", 1)
		if err != nil || len(found) != 0 {
			t.Fatalf("status %d: expected empty result, got %+v, %v", s, found, err)
		}
	}
	status.Store(http.StatusBadGateway)
	if _, err := client.Search(context.Background(), patron.IndexName, "x", 1); !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestCreateAndUpdateSendPrivilegeOverride(t *testing.T) {
	client, fake := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(patronJSON))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	created, err := client.Create(context.Background(), patron.CreatePayload{
		Barcode:     "123456789",
		BirthDate:   "2012-03-15",
		FirstName:   "Ana",
		LastName:    "Lopez",
		HomeLibrary: "MAIN",
		UserProfile: "STUDENT",
		Categories:  map[int]string{1: "ISD123"},
		Address:     []patron.AddressEntry{{Code: patron.AddressStreet, Data: patron.Ptr("1 Main St")}},
		PIN:         "03152012",
	})
	if err != nil || created.Key != "9001" {
		t.Fatalf("Create = %+v, %v", created, err)
	}
	req := fake.last(t)
	if req.method != http.MethodPost || req.path != "/symws/user/patron" {
		t.Fatalf("unexpected create request %s %s", req.method, req.path)
	}
	if req.header.Get("SD-Prompt-Return") != "USER_PRIVILEGE_OVRCD/SECRET" {
		t.Fatalf("missing override header: %v", req.header)
	}
	fields, _ := req.body["fields"].(map[string]any)
	if fields["pin"] != "03152012" || fields["category01"] == nil {
		t.Fatalf("unexpected create body: %v", req.body)
	}

	err = client.Update(context.Background(), "9001", patron.UpdatePayload{
		Barcode:     "123456789",
		AlternateID: "123456789",
		FirstName:   "Ana",
		LastName:    "Lopez",
		Custom:      []patron.CustomEntry{{Key: "77", Code: patron.CustomActiveID, Data: patron.Ptr("123456789")}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	req = fake.last(t)
	if req.method != http.MethodPut || req.path != "/symws/user/patron/key/9001" {
		t.Fatalf("unexpected update request %s %s", req.method, req.path)
	}
	fields, _ = req.body["fields"].(map[string]any)
	if _, ok := fields["pin"]; ok {
		t.Fatal("pin must be omitted when not refreshed")
	}
	if req.body["key"] != "9001" {
		t.Fatalf("update body missing key: %v", req.body)
	}
}

func TestNetworkErrorIsUnavailable(t *testing.T) {
	client, err := ilsws.New(config.Upstream{BaseURL: "http://127.0.0.1:1", TimeoutSeconds: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.FindByBarcode(context.Background(), "1"); !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if err := client.About(context.Background()); !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := ilsws.New(config.Upstream{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
