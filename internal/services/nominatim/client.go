// Package nominatim implements a minimal reverse-geocoding client for the
// OpenStreetMap Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"floravision/internal/services"
)

// DefaultBaseURL is the public OpenStreetMap endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// ErrNoResult reports that the service answered but has no address for the point.
var ErrNoResult = errors.New("nominatim: no result")

type reverseResponse struct {
	PlaceID     int64             `json:"place_id"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// Client performs single reverse lookups. Retry policy belongs to the caller.
type Client struct {
	baseURL    string
	userAgent  string
	email      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEmail sets the contact address Nominatim asks heavy users to provide.
func WithEmail(email string) Option {
	return func(c *Client) {
		c.email = strings.TrimSpace(email)
	}
}

// New creates a Nominatim client. The usage policy requires an identifying
// User-Agent, so an empty one is rejected.
func New(baseURL, userAgent string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return nil, errors.New("nominatim user agent required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Reverse returns the structured address components for a coordinate.
// Timeouts are tagged with services.ErrGeocodeTimeout, transport and HTTP
// failures with services.ErrGeocodeService.
func (c *Client) Reverse(ctx context.Context, lat, lon float64, language string) (map[string]string, error) {
	endpoint, err := url.Parse(c.baseURL + "/reverse")
	if err != nil {
		return nil, services.Wrap(services.ErrGeocodeService, "geocode", "parse url", "", err)
	}
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("addressdetails", "1")
	if language = strings.TrimSpace(language); language != "" {
		params.Set("accept-language", language)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrGeocodeService, "geocode", "build request", "", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if language != "" {
		req.Header.Set("Accept-Language", language)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, services.Wrap(services.ErrGeocodeTimeout, "geocode", "reverse",
				fmt.Sprintf("request timed out (latency=%v)", latency), err)
		}
		return nil, services.Wrap(services.ErrGeocodeService, "geocode", "reverse",
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, services.Wrap(services.ErrGeocodeService, "geocode", "reverse",
			fmt.Sprintf("nominatim returned %d (latency=%v): %s", resp.StatusCode, latency, strings.TrimSpace(string(snippet))), nil)
	}

	var payload reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if isTimeout(ctx, err) {
			return nil, services.Wrap(services.ErrGeocodeTimeout, "geocode", "reverse", "reading response timed out", err)
		}
		return nil, services.Wrap(services.ErrGeocodeService, "geocode", "reverse", "decode response", err)
	}
	if payload.Error != "" || len(payload.Address) == 0 {
		return nil, ErrNoResult
	}
	return payload.Address, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
