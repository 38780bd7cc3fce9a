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

// Package geocode resolves free-text addresses to coordinates through a
// provider cascade (ORS, Mapbox, Google) fronted by a persistent cache.
// Each provider sits behind a circuit breaker; an open breaker counts as a
// provider miss and the cascade moves on.
package geocode

import (
	"context"
	"net/http"
	"time"

	"remitero/internal/geo"
)

// providerTimeout bounds every single provider HTTP call.
const providerTimeout = 10 * time.Second

// Result is one geocoding answer, before or after cache.
type Result struct {
	Point           geo.Point `json:"punto"`
	Formatted       string    `json:"direccion_formateada"`
	HasStreetNumber bool      `json:"tiene_altura"`
	Confidence      float64   `json:"score"`
	Provider        string    `json:"provider"`
	FromCache       bool      `json:"desde_cache"`
}

// Provider is one upstream geocoding API.
type Provider interface {
	Name() string
	// Enabled reports whether the provider has credentials configured.
	Enabled() bool
	// Geocode resolves the address. (nil, nil) means the provider answered
	// but found nothing.
	Geocode(ctx context.Context, address string) (*Result, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: providerTimeout}
}
