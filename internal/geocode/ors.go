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
	"strconv"

	"remitero/internal/geo"
)

const orsDefaultBaseURL = "https://api.openrouteservice.org"

// ORS is the OpenRouteService (Pelias) geocoder, first in the cascade.
type ORS struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewORS builds the provider. baseURL falls back to the public API.
func NewORS(baseURL, apiKey string) *ORS {
	if baseURL == "" {
		baseURL = orsDefaultBaseURL
	}
	return &ORS{baseURL: baseURL, apiKey: apiKey, http: newHTTPClient()}
}

func (o *ORS) Name() string  { return "ors" }
func (o *ORS) Enabled() bool { return o.apiKey != "" }

func (o *ORS) Geocode(ctx context.Context, address string) (*Result, error) {
	q := url.Values{
		"api_key":               {o.apiKey},
		"text":                  {address + ", Mendoza, Argentina"},
		"boundary.rect.min_lng": {strconv.FormatFloat(geo.BBoxLngMin, 'f', -1, 64)},
		"boundary.rect.min_lat": {strconv.FormatFloat(geo.BBoxLatMin, 'f', -1, 64)},
		"boundary.rect.max_lng": {strconv.FormatFloat(geo.BBoxLngMax, 'f', -1, 64)},
		"boundary.rect.max_lat": {strconv.FormatFloat(geo.BBoxLatMax, 'f', -1, 64)},
		"size":                  {"1"},
		"layers":                {"address"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/geocode/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("ors: request: %w", err)
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ors: llamada: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ors: status %d", resp.StatusCode)
	}

	var payload struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"` // [lng, lat]
			} `json:"geometry"`
			Properties struct {
				Label       string  `json:"label"`
				Housenumber string  `json:"housenumber"`
				Confidence  float64 `json:"confidence"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ors: decodificando: %w", err)
	}
	if len(payload.Features) == 0 {
		return nil, nil
	}
	f := payload.Features[0]
	if len(f.Geometry.Coordinates) < 2 {
		return nil, fmt.Errorf("ors: geometria incompleta")
	}
	conf := f.Properties.Confidence
	if conf == 0 {
		conf = 0.5
	}
	return &Result{
		Point:           geo.Point{Lat: f.Geometry.Coordinates[1], Lng: f.Geometry.Coordinates[0]},
		Formatted:       f.Properties.Label,
		HasStreetNumber: f.Properties.Housenumber != "",
		Confidence:      conf,
		Provider:        "ors",
	}, nil
}
