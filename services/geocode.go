package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

var ErrAddressNotFound = errors.New("address could not be geocoded")

// Geocoder resolves pickup addresses to coordinates and coordinates to a
// city name through a Nominatim-compatible HTTP API. Lookups are idempotent
// reads, so a failed call gets exactly one retry; nothing here is ever
// retried blindly on the write path.
type Geocoder struct {
	baseURL string
	client  *http.Client
}

func NewGeocoder() *Geocoder {
	base := os.Getenv("GEOCODER_BASE_URL")
	if base == "" {
		base = "https://nominatim.openstreetmap.org"
	}
	return NewGeocoderWithBase(base)
}

func NewGeocoderWithBase(base string) *Geocoder {
	return &Geocoder{
		baseURL: base,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Forward resolves a street address to coordinates.
func (g *Geocoder) Forward(ctx context.Context, address string) (lat float64, lng float64, err error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	body, err := g.get(ctx, g.baseURL+"/search?"+q.Encode())
	if err != nil {
		return 0, 0, err
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return 0, 0, err
	}
	if len(results) == 0 {
		return 0, 0, ErrAddressNotFound
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, ErrAddressNotFound
	}
	return lat, lng, nil
}

// Reverse resolves coordinates to a city name. The district of the postal
// address wins when present, matching how listing cities were derived in
// the mobile flow.
func (g *Geocoder) Reverse(ctx context.Context, lat float64, lng float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("format", "json")

	body, err := g.get(ctx, g.baseURL+"/reverse?"+q.Encode())
	if err != nil {
		return "", err
	}

	var result struct {
		Address struct {
			CityDistrict string `json:"city_district"`
			Suburb       string `json:"suburb"`
			City         string `json:"city"`
			Town         string `json:"town"`
		} `json:"address"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	for _, candidate := range []string{
		result.Address.CityDistrict,
		result.Address.Suburb,
		result.Address.City,
		result.Address.Town,
	} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", ErrAddressNotFound
}

// get performs the request with a single bounded retry on transport
// errors and 5xx responses.
func (g *Geocoder) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "carshare-server")

		res, err := g.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if res.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("geocoder responded with status %d", res.StatusCode)
			continue
		}
		if res.StatusCode != http.StatusOK {
			// 4xx responses are deterministic; retrying buys nothing.
			return nil, fmt.Errorf("geocoder responded with status %d", res.StatusCode)
		}
		return body, nil
	}
	return nil, lastErr
}
