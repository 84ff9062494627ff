package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/derickschaefer/atmosight/internal/model"
)

// DefaultNominatimURL is the OpenStreetMap search endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimRate is the public instance's usage limit in requests per second.
const NominatimRate = 1.0

// Nominatim implements Geocoder using the OpenStreetMap Nominatim API.
type Nominatim struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewNominatim creates a Nominatim client. Nominatim's usage policy requires
// an identifying User-Agent.
func NewNominatim(baseURL string, timeout time.Duration, logger *slog.Logger) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &Nominatim{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "atmosight-cli/1.0",
		limiter:    rate.NewLimiter(rate.Limit(NominatimRate), 1),
		logger:     logger,
	}
}

type searchHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for name.
func (n *Nominatim) Geocode(ctx context.Context, name string) (model.Place, error) {
	params := url.Values{
		"q":      {name},
		"format": {"json"},
		"limit":  {"1"},
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return model.Place{}, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return model.Place{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return model.Place{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()
	n.logger.Debug("nominatim response", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return model.Place{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var hits []searchHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return model.Place{}, fmt.Errorf("decode response: %w", err)
	}
	if len(hits) == 0 {
		return model.Place{}, nil
	}

	h := hits[0]
	lat, err := strconv.ParseFloat(h.Lat, 64)
	if err != nil {
		return model.Place{}, fmt.Errorf("bad latitude %q: %w", h.Lat, err)
	}
	lon, err := strconv.ParseFloat(h.Lon, 64)
	if err != nil {
		return model.Place{}, fmt.Errorf("bad longitude %q: %w", h.Lon, err)
	}
	return model.Place{Query: name, Name: h.DisplayName, Lat: lat, Lon: lon}, nil
}
