package googlegeo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode"

// Client resolves coordinates into human-readable place names via the
// Google Geocoding API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a reverse geocoding client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ReverseGeocode returns the formatted address of the first geocoding
// result. The display name only decorates the response, so every failure
// surfaces as an error the caller downgrades to an empty name.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("geocoding api key not configured")
	}

	query := url.Values{}
	query.Set("latlng", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/json?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("geocode request error: status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read geocode response: %w", err)
	}

	var raw apiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode geocode response: %w", err)
	}

	if raw.Status != "OK" || len(raw.Results) == 0 {
		return "", fmt.Errorf("geocode returned no results: status=%s", raw.Status)
	}
	return raw.Results[0].FormattedAddress, nil
}

type apiResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}
