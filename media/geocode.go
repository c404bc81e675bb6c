package media

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

// NominatimGeocoder resolves coordinates against a Nominatim-compatible
// reverse endpoint. Every failure path returns nils; geocoding never fails
// an item.
type NominatimGeocoder struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
	// RateLimit is slept after each successful lookup to stay inside the
	// provider's usage policy.
	RateLimit time.Duration
}

func NewNominatimGeocoder(baseURL, userAgent string, timeout, rateLimit time.Duration) *NominatimGeocoder {
	return &NominatimGeocoder{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: timeout},
		RateLimit: rateLimit,
	}
}

type nominatimResponse struct {
	Address map[string]string `json:"address"`
}

func firstOf(m map[string]string, keys ...string) *string {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != "" {
			val := v
			return &val
		}
	}
	return nil
}

// ReverseGeocode looks up city/state/country for a coordinate pair
func (g *NominatimGeocoder) ReverseGeocode(latitude, longitude float64) (city, state, country *string) {
	endpoint := fmt.Sprintf("%s?format=json&lat=%s&lon=%s&zoom=10&addressdetails=1",
		g.BaseURL,
		url.QueryEscape(fmt.Sprintf("%f", latitude)),
		url.QueryEscape(fmt.Sprintf("%f", longitude)),
	)

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, nil
	}
	req.Header.Set("User-Agent", g.UserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		log.Printf("geocode: lookup failed for (%f, %f): %v", latitude, longitude, err)
		return nil, nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("geocode: unexpected status %d for (%f, %f)", resp.StatusCode, latitude, longitude)
		return nil, nil, nil
	}

	var parsed nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || parsed.Address == nil {
		return nil, nil, nil
	}

	city = firstOf(parsed.Address, "city", "town", "village", "hamlet")
	state = firstOf(parsed.Address, "state", "region", "province")
	country = firstOf(parsed.Address, "country")

	if g.RateLimit > 0 {
		time.Sleep(g.RateLimit)
	}
	return city, state, country
}
