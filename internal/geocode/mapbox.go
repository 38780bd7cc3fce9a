// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: March 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"remitero/internal/geo"
)

const mapboxDefaultBaseURL = "https://api.mapbox.com"

// Mapbox is the Mapbox Geocoding v5 provider, second in the cascade.
type Mapbox struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewMapbox builds the provider. baseURL falls back to the public API.
func NewMapbox(baseURL, token string) *Mapbox {
	if baseURL == "" {
		baseURL = mapboxDefaultBaseURL
	}
	return &Mapbox{baseURL: baseURL, token: token, http: newHTTPClient()}
}

func (m *Mapbox) Name() string  { return "mapbox" }
func (m *Mapbox) Enabled() bool { return m.token != "" }

func (m *Mapbox) Geocode(ctx context.Context, address string) (*Result, error) {
	encoded := url.PathEscape(address + ", Mendoza, Argentina")
	q := url.Values{
		"access_token": {m.token},
		"country":      {"ar"},
		"bbox": {fmt.Sprintf("%g,%g,%g,%g",
			geo.BBoxLngMin, geo.BBoxLatMin, geo.BBoxLngMax, geo.BBoxLatMax)},
		"limit": {"1"},
		"types": {"address"},
	}
	u := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", m.baseURL, encoded, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("mapbox: request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapbox: llamada: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapbox: status %d", resp.StatusCode)
	}

	var payload struct {
		Features []struct {
			Center    []float64 `json:"center"` // [lng, lat]
			PlaceName string    `json:"place_name"`
			PlaceType []string  `json:"place_type"`
			Relevance float64   `json:"relevance"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("mapbox: decodificando: %w", err)
	}
	if len(payload.Features) == 0 {
		return nil, nil
	}
	f := payload.Features[0]
	if len(f.Center) < 2 {
		return nil, fmt.Errorf("mapbox: center incompleto")
	}
	hasNum := false
	for _, t := range f.PlaceType {
		if t == "address" {
			hasNum = true
			break
		}
	}
	conf := f.Relevance
	if conf == 0 {
		conf = 0.5
	}
	return &Result{
		Point:           geo.Point{Lat: f.Center[1], Lng: f.Center[0]},
		Formatted:       f.PlaceName,
		HasStreetNumber: hasNum,
		Confidence:      conf,
		Provider:        "mapbox",
	}, nil
}
