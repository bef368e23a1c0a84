package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tripweaver/tripweaver/internal/travel"
)

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(travel.DomainFlights, Func(func(_ context.Context, _ travel.Task) ([]travel.Item, error) {
		return nil, nil
	}))

	if _, err := reg.Lookup(travel.DomainFlights); err != nil {
		t.Errorf("Lookup(flights) returned unexpected error: %v", err)
	}
	if _, err := reg.Lookup(travel.DomainHotels); err == nil {
		t.Error("Lookup(hotels) succeeded with nothing registered")
	}
}

func TestTaskFlagsSortedAndMapped(t *testing.T) {
	task := travel.Task{
		Domain: travel.DomainFlights,
		Params: map[string]interface{}{
			"origin":      "Boston",
			"destination": "Seattle",
			"start_date":  "2026-06-14",
			"end_date":    "2026-06-17",
			"budget":      800.0,
			"travelers":   2,
		},
	}

	got := taskFlags(task)
	// Params are sorted by key, so end_date (rendered --return) comes second.
	want := []string{
		"--budget", "800",
		"--destination", "Seattle",
		"--return", "2026-06-17",
		"--origin", "Boston",
		"--depart", "2026-06-14",
		"--travelers", "2",
	}
	if len(got) != len(want) {
		t.Fatalf("taskFlags produced %d args, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("taskFlags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseItemsWrappedAndBare(t *testing.T) {
	wrapped := []byte(`{"items": [{"id": "f1", "name": "Alaska", "price": 250}]}`)
	items, err := parseItems(wrapped)
	if err != nil {
		t.Fatalf("parseItems(wrapped) returned unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Alaska" {
		t.Errorf("parseItems(wrapped) = %+v, want one Alaska item", items)
	}

	bare := []byte(`[{"id": "h1", "name": "Inn", "price": 120}]`)
	items, err = parseItems(bare)
	if err != nil {
		t.Fatalf("parseItems(bare) returned unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Inn" {
		t.Errorf("parseItems(bare) = %+v, want one Inn item", items)
	}

	if _, err := parseItems([]byte("not json")); err == nil {
		t.Error("parseItems accepted invalid JSON")
	}
}

func TestHTTPWorkerSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Write([]byte(`{"items": [{"id": "f1", "name": "Alaska", "price": 250, "rating": 4.2}]}`))
	}))
	defer srv.Close()

	w := NewHTTPWorker(srv.URL)
	items, err := w.Search(context.Background(), travel.Task{
		Domain: travel.DomainFlights,
		Params: map[string]interface{}{"destination": "Seattle"},
	})
	if err != nil {
		t.Fatalf("Search returned unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Domain != travel.DomainFlights {
		t.Errorf("item domain = %q, want flights", items[0].Domain)
	}
}

func TestHTTPWorkerBlockedStatuses(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		w := NewHTTPWorker(srv.URL)
		_, err := w.Search(context.Background(), travel.Task{Domain: travel.DomainHotels})
		if !errors.Is(err, ErrBlocked) {
			t.Errorf("status %d: err = %v, want ErrBlocked", status, err)
		}
		srv.Close()
	}
}

func TestHTTPWorkerServerErrorIsNotBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewHTTPWorker(srv.URL)
	_, err := w.Search(context.Background(), travel.Task{Domain: travel.DomainHotels})
	if err == nil {
		t.Fatal("Search succeeded on a 500 response")
	}
	if errors.Is(err, ErrBlocked) {
		t.Error("500 response classified as blocked")
	}
}

func TestHTTPWorkerInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	w := NewHTTPWorker(srv.URL)
	_, err := w.Search(context.Background(), travel.Task{Domain: travel.DomainExperiences})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestStubWorkerReturnsDomainItems(t *testing.T) {
	w := NewStubWorker(travel.DomainHotels)

	items, err := w.Search(context.Background(), travel.Task{
		Domain: travel.DomainHotels,
		Params: map[string]interface{}{"destination": "Lisbon"},
	})
	if err != nil {
		t.Fatalf("Search returned unexpected error: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("Search returned no items")
	}
	for _, item := range items {
		if item.Domain != travel.DomainHotels {
			t.Errorf("item %s domain = %q, want hotels", item.ID, item.Domain)
		}
		if item.Location != "Lisbon" {
			t.Errorf("item %s location = %q, want Lisbon", item.ID, item.Location)
		}
	}
}
