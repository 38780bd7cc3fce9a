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

// Package matrix computes NxN travel-time matrices in minutes, combining a
// tolerant persistent cache, block-sized provider calls for the misses, and a
// haversine estimate for whatever remains unanswered.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"remitero/internal/geo"
)

// providerTimeout bounds one matrix call; block requests are heavier than
// geocoding lookups.
const providerTimeout = 30 * time.Second

// Provider answers the duration block sources×destinations in minutes.
type Provider interface {
	Name() string
	Enabled() bool
	Durations(ctx context.Context, sources, dests []geo.Point) ([][]float64, error)
}

const orsDefaultBaseURL = "https://api.openrouteservice.org"

// ORS calls the OpenRouteService matrix endpoint for the driving-car
// profile.
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
	return &ORS{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: providerTimeout}}
}

func (o *ORS) Name() string  { return "ors" }
func (o *ORS) Enabled() bool { return o.apiKey != "" }

func (o *ORS) Durations(ctx context.Context, sources, dests []geo.Point) ([][]float64, error) {
	locations := make([][2]float64, 0, len(sources)+len(dests))
	srcIdx := make([]int, len(sources))
	dstIdx := make([]int, len(dests))
	for i, p := range sources {
		srcIdx[i] = i
		locations = append(locations, [2]float64{p.Lng, p.Lat})
	}
	for j, p := range dests {
		dstIdx[j] = len(sources) + j
		locations = append(locations, [2]float64{p.Lng, p.Lat})
	}
	body, err := json.Marshal(map[string]interface{}{
		"locations":    locations,
		"sources":      srcIdx,
		"destinations": dstIdx,
		"metrics":      []string{"duration"},
		"units":        "km",
	})
	if err != nil {
		return nil, fmt.Errorf("ors matrix: armando payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/v2/matrix/driving-car", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ors matrix: request: %w", err)
	}
	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ors matrix: llamada: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ors matrix: status %d", resp.StatusCode)
	}
	return decodeDurations(resp, len(sources), len(dests), "ors matrix")
}

const osrmDefaultBaseURL = "http://router.project-osrm.org"

// OSRM calls the OSRM table endpoint, typically a self-hosted instance.
// It needs no credentials; Enabled is driven by configuration.
type OSRM struct {
	baseURL string
	enabled bool
	http    *http.Client
}

// NewOSRM builds the provider. baseURL falls back to the public demo server.
func NewOSRM(baseURL string, enabled bool) *OSRM {
	if baseURL == "" {
		baseURL = osrmDefaultBaseURL
	}
	return &OSRM{baseURL: baseURL, enabled: enabled, http: &http.Client{Timeout: providerTimeout}}
}

func (o *OSRM) Name() string  { return "osrm" }
func (o *OSRM) Enabled() bool { return o.enabled }

func (o *OSRM) Durations(ctx context.Context, sources, dests []geo.Point) ([][]float64, error) {
	coords := make([]string, 0, len(sources)+len(dests))
	srcIdx := make([]string, len(sources))
	dstIdx := make([]string, len(dests))
	for i, p := range sources {
		srcIdx[i] = strconv.Itoa(i)
		coords = append(coords, fmt.Sprintf("%g,%g", p.Lng, p.Lat))
	}
	for j, p := range dests {
		dstIdx[j] = strconv.Itoa(len(sources) + j)
		coords = append(coords, fmt.Sprintf("%g,%g", p.Lng, p.Lat))
	}
	u := fmt.Sprintf("%s/table/v1/driving/%s?annotations=duration&sources=%s&destinations=%s",
		o.baseURL, strings.Join(coords, ";"), strings.Join(srcIdx, ";"), strings.Join(dstIdx, ";"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("osrm table: request: %w", err)
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm table: llamada: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm table: status %d", resp.StatusCode)
	}
	return decodeDurations(resp, len(sources), len(dests), "osrm table")
}

const googleDefaultBaseURL = "https://maps.googleapis.com"

// Google calls the Distance Matrix API.
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
	return &Google{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: providerTimeout}}
}

func (g *Google) Name() string  { return "google" }
func (g *Google) Enabled() bool { return g.apiKey != "" }

func (g *Google) Durations(ctx context.Context, sources, dests []geo.Point) ([][]float64, error) {
	q := url.Values{}
	q.Set("origins", joinLatLng(sources))
	q.Set("destinations", joinLatLng(dests))
	q.Set("mode", "driving")
	q.Set("key", g.apiKey)
	u := g.baseURL + "/maps/api/distancematrix/json?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("google matrix: request: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google matrix: llamada: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google matrix: status %d", resp.StatusCode)
	}

	var payload struct {
		Status string `json:"status"`
		Rows   []struct {
			Elements []struct {
				Status   string `json:"status"`
				Duration struct {
					Value float64 `json:"value"`
				} `json:"duration"`
			} `json:"elements"`
		} `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("google matrix: decodificando: %w", err)
	}
	if payload.Status != "OK" {
		return nil, fmt.Errorf("google matrix: status %q", payload.Status)
	}
	if len(payload.Rows) != len(sources) {
		return nil, fmt.Errorf("google matrix: %d filas, esperaba %d", len(payload.Rows), len(sources))
	}
	out := make([][]float64, len(sources))
	for i, row := range payload.Rows {
		if len(row.Elements) != len(dests) {
			return nil, fmt.Errorf("google matrix: fila %d con %d columnas, esperaba %d",
				i, len(row.Elements), len(dests))
		}
		out[i] = make([]float64, len(dests))
		for j, el := range row.Elements {
			if el.Status != "OK" {
				return nil, fmt.Errorf("google matrix: elemento (%d,%d) status %q", i, j, el.Status)
			}
			out[i][j] = el.Duration.Value / 60.0
		}
	}
	return out, nil
}

func joinLatLng(points []geo.Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%g,%g", p.Lat, p.Lng)
	}
	return strings.Join(parts, "|")
}

const mapboxDefaultBaseURL = "https://api.mapbox.com"

// Mapbox calls the Matrix API for the driving profile.
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
	return &Mapbox{baseURL: baseURL, token: token, http: &http.Client{Timeout: providerTimeout}}
}

func (m *Mapbox) Name() string  { return "mapbox" }
func (m *Mapbox) Enabled() bool { return m.token != "" }

func (m *Mapbox) Durations(ctx context.Context, sources, dests []geo.Point) ([][]float64, error) {
	coords := make([]string, 0, len(sources)+len(dests))
	srcIdx := make([]string, len(sources))
	dstIdx := make([]string, len(dests))
	for i, p := range sources {
		srcIdx[i] = strconv.Itoa(i)
		coords = append(coords, fmt.Sprintf("%g,%g", p.Lng, p.Lat))
	}
	for j, p := range dests {
		dstIdx[j] = strconv.Itoa(len(sources) + j)
		coords = append(coords, fmt.Sprintf("%g,%g", p.Lng, p.Lat))
	}
	q := url.Values{}
	q.Set("annotations", "duration")
	q.Set("sources", strings.Join(srcIdx, ";"))
	q.Set("destinations", strings.Join(dstIdx, ";"))
	q.Set("access_token", m.token)
	u := fmt.Sprintf("%s/directions-matrix/v1/mapbox/driving/%s?%s",
		m.baseURL, strings.Join(coords, ";"), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("mapbox matrix: request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapbox matrix: llamada: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapbox matrix: status %d", resp.StatusCode)
	}
	return decodeDurations(resp, len(sources), len(dests), "mapbox matrix")
}

// decodeDurations parses the shared {"durations": [[sec]]} shape and
// converts seconds to minutes, validating the block dimensions.
func decodeDurations(resp *http.Response, rows, cols int, tag string) ([][]float64, error) {
	var payload struct {
		Durations [][]float64 `json:"durations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: decodificando: %w", tag, err)
	}
	if len(payload.Durations) != rows {
		return nil, fmt.Errorf("%s: %d filas, esperaba %d", tag, len(payload.Durations), rows)
	}
	out := make([][]float64, rows)
	for i, row := range payload.Durations {
		if len(row) != cols {
			return nil, fmt.Errorf("%s: fila %d con %d columnas, esperaba %d", tag, i, len(row), cols)
		}
		out[i] = make([]float64, cols)
		for j, sec := range row {
			out[i][j] = sec / 60.0
		}
	}
	return out, nil
}
