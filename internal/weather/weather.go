// Package weather fetches current outdoor conditions from OpenWeatherMap and
// caches them for a fixed interval.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultEndpoint = "http://api.openweathermap.org/data/2.5/weather"
	DefaultTimeout  = 5 * time.Second
)

// ErrUnavailable is returned when the provider answered without usable data.
var ErrUnavailable = errors.New("weather unavailable")

// Conditions is the outdoor snapshot shown next to the classroom readings.
type Conditions struct {
	Temperature float64   // Celsius
	Description string    // localized, e.g. "awan pecah"
	FetchedAt   time.Time
}

// Client queries the current-weather endpoint for one city.
type Client struct {
	Endpoint string
	APIKey   string
	City     string
	Units    string
	Lang     string
	HTTP     *http.Client
}

// NewClient returns a client with metric units, Indonesian descriptions and
// a short request timeout.
func NewClient(apiKey, city string) *Client {
	return &Client{
		Endpoint: DefaultEndpoint,
		APIKey:   apiKey,
		City:     city,
		Units:    "metric",
		Lang:     "id",
		HTTP:     &http.Client{Timeout: DefaultTimeout},
	}
}

// owmResponse is the subset of the provider body we read. The provider
// sends "cod" as a number on success and as a string on some errors.
type owmResponse struct {
	Cod  json.RawMessage `json:"cod"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Message string `json:"message"`
}

func (r owmResponse) code() string {
	var n json.Number
	if err := json.Unmarshal(r.Cod, &n); err == nil {
		return n.String()
	}
	var s string
	if err := json.Unmarshal(r.Cod, &s); err == nil {
		return s
	}
	return ""
}

// Current performs one request. Any transport error, timeout, non-200
// status or incomplete body is an error.
func (c *Client) Current(ctx context.Context) (Conditions, error) {
	q := url.Values{}
	q.Set("q", c.City)
	q.Set("appid", c.APIKey)
	q.Set("units", c.Units)
	q.Set("lang", c.Lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Conditions{}, fmt.Errorf("build request: %w", err)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return Conditions{}, fmt.Errorf("request weather: %w", err)
	}
	defer resp.Body.Close()

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Conditions{}, fmt.Errorf("%w: decode body: %v", ErrUnavailable, err)
	}
	if code := body.code(); code != "200" {
		return Conditions{}, fmt.Errorf("%w: cod=%s http=%d %s", ErrUnavailable, code, resp.StatusCode, body.Message)
	}
	if body.Main.Temp == nil || len(body.Weather) == 0 {
		return Conditions{}, fmt.Errorf("%w: incomplete body", ErrUnavailable)
	}

	return Conditions{
		Temperature: *body.Main.Temp,
		Description: body.Weather[0].Description,
		FetchedAt:   time.Now(),
	}, nil
}
