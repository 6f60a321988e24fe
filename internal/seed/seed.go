package seed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/shared/metrics"
	"github.com/healthlog/platform/internal/tracker"
)

// Geocoder enriches seeded entities with coordinates. Optional; a nil
// geocoder skips enrichment entirely.
type Geocoder interface {
	Lookup(ctx context.Context, name, city string) (*tracker.Coordinates, error)
}

// Directory is a secondary source of hospital names used when the
// primary HTTP lists are unreachable.
type Directory interface {
	Hospitals(ctx context.Context) ([]tracker.TrackedEntity, error)
}

// Seeder builds the initial entity collections for a brand new user.
// Source order: primary HTTP lists, then the legacy directory, then
// the built-in defaults. Seeding never fails; every fallback step
// narrows the data but keeps the app usable.
type Seeder struct {
	cfg        config.SeedConfig
	httpClient *http.Client
	geocoder   Geocoder
	directory  Directory
}

// New creates a seeder. geocoder and directory may be nil.
func New(cfg config.SeedConfig, geocoder Geocoder, directory Directory) *Seeder {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Seeder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		geocoder:   geocoder,
		directory:  directory,
	}
}

// Document builds a fresh user document with both collections seeded.
func (s *Seeder) Document(ctx context.Context) *tracker.UserDocument {
	return &tracker.UserDocument{
		Hospitals: s.Hospitals(ctx),
		Ambulance: s.Ambulance(ctx),
	}
}

// Hospitals returns the hospital list from the best available source.
func (s *Seeder) Hospitals(ctx context.Context) []tracker.TrackedEntity {
	if s.cfg.HospitalsURL != "" {
		entities, err := s.fetchHospitals(ctx)
		if err == nil && len(entities) > 0 {
			return s.enrich(ctx, entities)
		}
		if err != nil {
			log.Printf("WARN: hospital list fetch failed: %v", err)
		}
	}

	if s.directory != nil {
		entities, err := s.directory.Hospitals(ctx)
		if err == nil && len(entities) > 0 {
			metrics.RecordSeedFallback("directory")
			return s.enrich(ctx, entities)
		}
		if err != nil {
			log.Printf("WARN: legacy directory fetch failed: %v", err)
		}
	}

	metrics.RecordSeedFallback("defaults")
	return DefaultHospitals()
}

// Ambulance returns the ambulance trust list from the best available
// source.
func (s *Seeder) Ambulance(ctx context.Context) []tracker.TrackedEntity {
	if s.cfg.AmbulanceURL != "" {
		entities, err := s.fetchAmbulance(ctx)
		if err == nil && len(entities) > 0 {
			return entities
		}
		if err != nil {
			log.Printf("WARN: ambulance list fetch failed: %v", err)
		}
	}

	metrics.RecordSeedFallback("defaults")
	return DefaultAmbulance()
}

type hospitalRecord struct {
	Name      string   `json:"name"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// fetchHospitals reads the structured JSON hospital list.
func (s *Seeder) fetchHospitals(ctx context.Context) ([]tracker.TrackedEntity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.HospitalsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var records []hospitalRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode hospital list: %w", err)
	}

	entities := make([]tracker.TrackedEntity, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Name) == "" {
			continue
		}
		e := tracker.TrackedEntity{Name: strings.TrimSpace(rec.Name), City: strings.TrimSpace(rec.City)}
		if rec.Latitude != nil && rec.Longitude != nil {
			e.Coordinates = &tracker.Coordinates{Latitude: *rec.Latitude, Longitude: *rec.Longitude}
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// fetchAmbulance reads the line-delimited trust list, one name per
// line, blank lines and # comments skipped.
func (s *Seeder) fetchAmbulance(ctx context.Context) ([]tracker.TrackedEntity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.AmbulanceURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var entities []tracker.TrackedEntity
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entities = append(entities, tracker.TrackedEntity{Name: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ambulance list: %w", err)
	}
	return entities, nil
}

// enrich fills in missing coordinates. Failures are logged and
// skipped; enrichment never blocks seeding.
func (s *Seeder) enrich(ctx context.Context, entities []tracker.TrackedEntity) []tracker.TrackedEntity {
	if s.geocoder == nil {
		return entities
	}
	for i := range entities {
		if entities[i].Coordinates != nil {
			continue
		}
		coords, err := s.geocoder.Lookup(ctx, entities[i].Name, entities[i].City)
		if err != nil {
			log.Printf("WARN: geocode failed for %q: %v", entities[i].Name, err)
			continue
		}
		entities[i].Coordinates = coords
	}
	return entities
}
