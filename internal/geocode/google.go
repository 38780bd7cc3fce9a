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

const googleDefaultBaseURL = "https://maps.googleapis.com"

// Google is the Google Maps Geocoding provider, last and most expensive in
// the cascade.
type Google struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewGoogle builds the provider. baseURL falls back to the public API.
func NewGoogle(baseURL, apiKey string) *Google {
	if baseURL == "" {
		baseURL = googleDefaultBaseURL
	}
	return &Google{baseURL: baseURL, apiKey: apiKey, http: newHTTPClient()}
}

func (g *Google) Name() string  { return "google" }
func (g *Google) Enabled() bool { return g.apiKey != "" }

func (g *Google) Geocode(ctx context.Context, address string) (*Result, error) {
	q := url.Values{
		"address":    {address + ", Mendoza, Argentina"},
		"key":        {g.apiKey},
		"components": {"country:AR"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/maps/api/geocode/json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google: request: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: llamada: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
			FormattedAddress  string `json:"formatted_address"`
			AddressComponents []struct {
				Types []string `json:"types"`
			} `json:"address_components"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("google: decodificando: %w", err)
	}
	if len(payload.Results) == 0 {
		return nil, nil
	}
	r := payload.Results[0]
	hasNum := false
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			if t == "street_number" {
				hasNum = true
			}
		}
	}
	return &Result{
		Point:           geo.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		Formatted:       r.FormattedAddress,
		HasStreetNumber: hasNum,
		Confidence:      0.9,
		Provider:        "google",
	}, nil
}
