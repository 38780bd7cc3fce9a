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

package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"remitero/internal/geo"
	"remitero/internal/model"
)

// RouteConfig is the typed view of the config_ruta table: the operational
// knobs of route generation.
type RouteConfig struct {
	TiempoEsperaMin    float64 `json:"tiempo_espera_min"`
	DepositoLat        float64 `json:"deposito_lat"`
	DepositoLng        float64 `json:"deposito_lng"`
	DepositoDireccion  string  `json:"deposito_direccion"`
	HoraDesde          string  `json:"hora_desde"`
	HoraHasta          string  `json:"hora_hasta"`
	EvitarSaltosMin    float64 `json:"evitar_saltos_min"`
	VueltaGalponMin    float64 `json:"vuelta_galpon_min"`
	ProveedorMatrix    string  `json:"proveedor_matrix"`
	UtilizarVentana    bool    `json:"utilizar_ventana"`
	DistanciaMaxKm     float64 `json:"distancia_max_km"`
	VelocidadUrbanaKmh float64 `json:"velocidad_urbana_kmh"`
	DMBlockSize        int     `json:"dm_block_size"`
	GeocodeCacheDays   int     `json:"geocode_cache_days"`
	MaxRemitosRuta     int     `json:"max_remitos_ruta"`
}

// DefaultRouteConfig returns the same defaults the seed migration writes.
func DefaultRouteConfig() RouteConfig {
	return RouteConfig{
		TiempoEsperaMin:    10,
		DepositoLat:        geo.DepotLat,
		DepositoLng:        geo.DepotLng,
		DepositoDireccion:  geo.DepotAddress,
		HoraDesde:          "09:00",
		HoraHasta:          "14:00",
		EvitarSaltosMin:    25,
		VueltaGalponMin:    25,
		ProveedorMatrix:    "ors",
		UtilizarVentana:    true,
		DistanciaMaxKm:     45,
		VelocidadUrbanaKmh: 40,
		DMBlockSize:        10,
		GeocodeCacheDays:   30,
		MaxRemitosRuta:     40,
	}
}

// Depot returns the configured depot point.
func (c RouteConfig) Depot() geo.Point {
	return geo.Point{Lat: c.DepositoLat, Lng: c.DepositoLng}
}

// apply sets one typed key. Unknown keys are ignored so new rows never break
// old binaries.
func (c *RouteConfig) apply(key, value string) error {
	switch key {
	case "tiempo_espera_min":
		return parseFloat(value, &c.TiempoEsperaMin)
	case "deposito_lat":
		return parseFloat(value, &c.DepositoLat)
	case "deposito_lng":
		return parseFloat(value, &c.DepositoLng)
	case "deposito_direccion":
		c.DepositoDireccion = value
	case "hora_desde":
		c.HoraDesde = value
	case "hora_hasta":
		c.HoraHasta = value
	case "evitar_saltos_min":
		return parseFloat(value, &c.EvitarSaltosMin)
	case "vuelta_galpon_min":
		return parseFloat(value, &c.VueltaGalponMin)
	case "proveedor_matrix":
		c.ProveedorMatrix = value
	case "utilizar_ventana":
		c.UtilizarVentana = parseBool(value)
	case "distancia_max_km":
		return parseFloat(value, &c.DistanciaMaxKm)
	case "velocidad_urbana_kmh":
		return parseFloat(value, &c.VelocidadUrbanaKmh)
	case "dm_block_size":
		return parseInt(value, &c.DMBlockSize)
	case "geocode_cache_days":
		return parseInt(value, &c.GeocodeCacheDays)
	case "max_remitos_ruta":
		return parseInt(value, &c.MaxRemitosRuta)
	}
	return nil
}

func parseFloat(s string, dst *float64) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func parseInt(s string, dst *int) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "si":
		return true
	}
	return false
}

// FromEntries builds a RouteConfig from the table rows, starting at the
// defaults. A malformed row fails loudly rather than silently running with
// half a config.
func FromEntries(entries []model.ConfigEntry) (RouteConfig, error) {
	cfg := DefaultRouteConfig()
	for _, e := range entries {
		if err := cfg.apply(e.Key, e.Value); err != nil {
			return cfg, fmt.Errorf("config_ruta %q=%q: %w", e.Key, e.Value, err)
		}
	}
	return cfg, nil
}

// Override is a partial RouteConfig carried by the route-generation request.
type Override map[string]string

// Merge applies the override on top of cfg and returns the result.
func (c RouteConfig) Merge(ov Override) (RouteConfig, error) {
	out := c
	for k, v := range ov {
		if err := out.apply(k, v); err != nil {
			return out, fmt.Errorf("override %q=%q: %w", k, v, err)
		}
	}
	return out, nil
}

// EntryStore is the slice of the store the cached service needs.
type EntryStore interface {
	ListConfig(ctx context.Context) ([]model.ConfigEntry, error)
	SetConfig(ctx context.Context, key, value, tipo string) error
}

// RutaConfigService serves the typed config with an in-process cache
// invalidated by version counter on every write.
type RutaConfigService struct {
	store EntryStore

	mu      sync.Mutex
	cached  *RouteConfig
	version uint64
}

// NewRutaConfigService wires the cached config reader.
func NewRutaConfigService(store EntryStore) *RutaConfigService {
	return &RutaConfigService{store: store}
}

// Get returns the current typed config, reading the table only when the
// cache was invalidated.
func (s *RutaConfigService) Get(ctx context.Context) (RouteConfig, error) {
	s.mu.Lock()
	cached, version := s.cached, s.version
	s.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	entries, err := s.store.ListConfig(ctx)
	if err != nil {
		return DefaultRouteConfig(), err
	}
	cfg, err := FromEntries(entries)
	if err != nil {
		return cfg, err
	}

	s.mu.Lock()
	if s.version == version {
		s.cached = &cfg
	}
	s.mu.Unlock()
	return cfg, nil
}

// Set writes one key and invalidates the cache.
func (s *RutaConfigService) Set(ctx context.Context, key, value, tipo string) error {
	trial := DefaultRouteConfig()
	if err := trial.apply(key, value); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	if err := s.store.SetConfig(ctx, key, value, tipo); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate drops the cached config; the next Get re-reads the table.
func (s *RutaConfigService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.version++
	s.mu.Unlock()
}
