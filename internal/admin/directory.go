package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/healthlog/platform/internal/shared/config"
)

// DirectoryClient checks group membership against the staff directory
// service. Admin JWTs carry group claims already; this client is the
// authoritative recheck for sensitive operations.
type DirectoryClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewDirectoryClient creates a directory client from configuration.
func NewDirectoryClient(cfg config.DirectoryConfig) *DirectoryClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DirectoryClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type membershipResponse struct {
	Member bool   `json:"member"`
	Group  string `json:"group"`
}

// IsMember reports whether an email belongs to a directory group.
func (c *DirectoryClient) IsMember(ctx context.Context, email, group string) (bool, error) {
	u := fmt.Sprintf("%s/api/groups/%s/members/%s",
		c.baseURL, url.PathEscape(group), url.PathEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("directory lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var out membershipResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Member, nil
}
