package seed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/tracker"
)

func TestHospitalsFromPrimarySource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"name":"St Mary's Hospital","city":"London","latitude":51.5174,"longitude":-0.1735},
			{"name":"  Leeds General Infirmary ","city":"Leeds"},
			{"name":"   ","city":"Nowhere"}
		]`))
	}))
	defer srv.Close()

	s := New(config.SeedConfig{HospitalsURL: srv.URL}, nil, nil)
	got := s.Hospitals(context.Background())

	if len(got) != 2 {
		t.Fatalf("got %d hospitals, want 2 (blank name skipped)", len(got))
	}
	if got[0].Coordinates == nil || got[0].Coordinates.Latitude != 51.5174 {
		t.Errorf("inline coordinates not preserved: %+v", got[0])
	}
	if got[1].Name != "Leeds General Infirmary" {
		t.Errorf("name not trimmed: %q", got[1].Name)
	}
	if got[1].Visited || got[1].Count != 0 {
		t.Error("seeded entities must start unvisited with zero count")
	}
}

func TestHospitalsFallsBackToDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(config.SeedConfig{HospitalsURL: srv.URL, FetchTimeout: time.Second}, nil, nil)
	got := s.Hospitals(context.Background())

	if len(got) != len(DefaultHospitals()) {
		t.Fatalf("got %d hospitals, want the %d defaults", len(got), len(DefaultHospitals()))
	}
}

type stubDirectory struct {
	entities []tracker.TrackedEntity
	err      error
}

func (d *stubDirectory) Hospitals(ctx context.Context) ([]tracker.TrackedEntity, error) {
	return d.entities, d.err
}

func TestHospitalsFallsBackToDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := &stubDirectory{entities: []tracker.TrackedEntity{{Name: "Directory Hospital", City: "York"}}}
	s := New(config.SeedConfig{HospitalsURL: srv.URL, FetchTimeout: time.Second}, nil, dir)

	got := s.Hospitals(context.Background())
	if len(got) != 1 || got[0].Name != "Directory Hospital" {
		t.Errorf("expected directory fallback, got %+v", got)
	}
}

func TestHospitalsDirectoryErrorFallsThrough(t *testing.T) {
	dir := &stubDirectory{err: errors.New("connection refused")}
	s := New(config.SeedConfig{}, nil, dir)

	got := s.Hospitals(context.Background())
	if len(got) != len(DefaultHospitals()) {
		t.Errorf("expected defaults when directory fails, got %d entities", len(got))
	}
}

func TestAmbulanceLineDelimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# NHS ambulance trusts\nLondon Ambulance Service\n\n  Yorkshire Ambulance Service  \n"))
	}))
	defer srv.Close()

	s := New(config.SeedConfig{AmbulanceURL: srv.URL}, nil, nil)
	got := s.Ambulance(context.Background())

	want := []string{"London Ambulance Service", "Yorkshire Ambulance Service"}
	if len(got) != len(want) {
		t.Fatalf("got %d trusts, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("trust %d = %q, want %q", i, got[i].Name, name)
		}
	}
}

type stubGeocoder struct {
	coords map[string]*tracker.Coordinates
	err    error
}

func (g *stubGeocoder) Lookup(ctx context.Context, name, city string) (*tracker.Coordinates, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.coords[name], nil
}

func TestEnrichFillsMissingCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"name":"A","city":"London","latitude":1,"longitude":2},
			{"name":"B","city":"Leeds"}
		]`))
	}))
	defer srv.Close()

	geo := &stubGeocoder{coords: map[string]*tracker.Coordinates{
		"B": {Latitude: 53.8, Longitude: -1.5},
	}}
	s := New(config.SeedConfig{HospitalsURL: srv.URL}, geo, nil)

	got := s.Hospitals(context.Background())
	if got[0].Coordinates.Latitude != 1 {
		t.Error("inline coordinates were overwritten")
	}
	if got[1].Coordinates == nil || got[1].Coordinates.Latitude != 53.8 {
		t.Errorf("missing coordinates not enriched: %+v", got[1])
	}
}

func TestEnrichToleratesGeocoderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"A","city":"London"}]`))
	}))
	defer srv.Close()

	geo := &stubGeocoder{err: errors.New("rate limited")}
	s := New(config.SeedConfig{HospitalsURL: srv.URL}, geo, nil)

	got := s.Hospitals(context.Background())
	if len(got) != 1 {
		t.Fatalf("seeding must survive geocoder failure, got %d entities", len(got))
	}
	if got[0].Coordinates != nil {
		t.Error("failed lookup should leave coordinates nil")
	}
}

func TestDocumentSeedsBothCollections(t *testing.T) {
	s := New(config.SeedConfig{}, nil, nil)
	doc := s.Document(context.Background())

	if len(doc.Hospitals) == 0 || len(doc.Ambulance) == 0 {
		t.Fatal("expected both collections seeded from defaults")
	}
	for _, e := range append(doc.Hospitals, doc.Ambulance...) {
		if e.Visited || e.Count != 0 {
			t.Fatalf("seeded entity %q must start unvisited", e.Name)
		}
	}
}
