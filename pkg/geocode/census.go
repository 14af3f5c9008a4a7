package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	censusBaseURL   = "https://geocoding.geo.census.gov"
	censusBenchmark = "Public_AR_Current"
	censusVintage   = "Current_Current"
)

// CensusClient geocodes via the Census Geocoder geographies endpoint, which
// returns the containing county alongside the coordinates.
type CensusClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// CensusOption configures the CensusClient.
type CensusOption func(*CensusClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) CensusOption {
	return func(c *CensusClient) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the Census API base URL. Used by tests.
func WithBaseURL(u string) CensusOption {
	return func(c *CensusClient) {
		c.baseURL = u
	}
}

// WithRateLimit sets the requests-per-second limit for Census API calls.
func WithRateLimit(rps float64) CensusOption {
	return func(c *CensusClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// NewCensusClient creates a CensusClient with the given options.
func NewCensusClient(opts ...CensusOption) *CensusClient {
	c := &CensusClient{
		baseURL:    censusBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(50, 50), // Census default: 50 req/s
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Client.
func (c *CensusClient) Name() string { return "census" }

// Available implements Client. The Census Geocoder needs no credentials.
func (c *CensusClient) Available() bool { return true }

// censusResponse is the JSON response from the geographies endpoint.
type censusResponse struct {
	Result struct {
		AddressMatches []censusMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string                       `json:"matchedAddress"`
	Geographies    map[string][]censusGeography `json:"geographies"`
}

type censusGeography struct {
	GEOID string `json:"GEOID"`
	Name  string `json:"NAME"`
}

// Geocode implements Client via the Census one-line geographies API.
func (c *CensusClient) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census rate limit")
	}

	oneLine := addr.OneLine()
	if oneLine == "" {
		return &Result{Matched: false, Source: "census"}, nil
	}

	params := url.Values{
		"address":   {oneLine},
		"benchmark": {censusBenchmark},
		"vintage":   {censusVintage},
		"layers":    {"Counties"},
		"format":    {"json"},
	}

	reqURL := c.baseURL + "/geocoder/geographies/onelineaddress?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: census returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census read body")
	}

	var censusResp censusResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: "census"}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	result := &Result{
		Lat:     match.Coordinates.Y,
		Lon:     match.Coordinates.X,
		Matched: true,
		Quality: matchQuality(match, addr),
		Source:  "census",
	}
	if counties := match.Geographies["Counties"]; len(counties) > 0 {
		result.CountyFIPS = counties[0].GEOID
	}
	return result, nil
}

// matchQuality marks exact one-line matches as rooftop and everything else
// as approximate.
func matchQuality(match censusMatch, addr AddressInput) string {
	if match.MatchedAddress != "" && addr.Street != "" {
		return "rooftop"
	}
	return "approximate"
}
