package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/shared/metrics"
	"github.com/healthlog/platform/internal/tracker"
	"golang.org/x/time/rate"
)

// Client resolves place names to coordinates against a
// Nominatim-compatible endpoint. Lookups are paced so a bulk seed
// enrichment stays inside the provider's usage policy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	retryAttempts int
	retryDelay    time.Duration
}

// New creates a geocoding client from configuration.
func New(cfg config.GeocodeConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		retryAttempts: 3,
		retryDelay:    time.Second,
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup resolves a place name. A miss returns (nil, nil); callers
// treat coordinates as optional enrichment, so only transport-level
// problems surface as errors.
func (c *Client) Lookup(ctx context.Context, name, city string) (*tracker.Coordinates, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := name
	if city != "" {
		query = fmt.Sprintf("%s, %s", name, city)
	}

	u := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", c.baseURL, url.QueryEscape(query))

	resp, err := c.doRequest(ctx, u)
	if err != nil {
		metrics.RecordGeocodeLookup("error")
		return nil, fmt.Errorf("geocode lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordGeocodeLookup("error")
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		metrics.RecordGeocodeLookup("error")
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(results) == 0 {
		metrics.RecordGeocodeLookup("miss")
		return nil, nil
	}

	var lat, lon float64
	if _, err := fmt.Sscanf(results[0].Lat, "%f", &lat); err != nil {
		metrics.RecordGeocodeLookup("error")
		return nil, fmt.Errorf("bad latitude %q: %w", results[0].Lat, err)
	}
	if _, err := fmt.Sscanf(results[0].Lon, "%f", &lon); err != nil {
		metrics.RecordGeocodeLookup("error")
		return nil, fmt.Errorf("bad longitude %q: %w", results[0].Lon, err)
	}

	metrics.RecordGeocodeLookup("hit")
	return &tracker.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// doRequest performs a GET with retry on server errors.
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "healthlog-platform/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
