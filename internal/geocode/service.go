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
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"remitero/internal/address"
	"remitero/internal/billing"
	"remitero/internal/geo"
	"remitero/internal/model"
	"remitero/internal/telemetry"
)

// DefaultCacheTTL is the geocode cache lifetime when config carries no
// geocode_cache_days override.
const DefaultCacheTTL = 30 * 24 * time.Hour

// Cache persists geocoding results across runs. Lookups of absent or expired
// keys return model.ErrNotFound.
type Cache interface {
	Lookup(ctx context.Context, key string) (*model.GeoCacheEntry, error)
	Save(ctx context.Context, e *model.GeoCacheEntry) error
}

// Service runs the cache-then-cascade resolution.
type Service struct {
	cache     Cache
	providers []Provider
	breakers  map[string]*gobreaker.CircuitBreaker
	billing   billing.Recorder // may be nil
	log       *logrus.Logger

	// CacheTTL yields the lifetime of fresh cache entries. Swappable so the
	// config layer can drive it from geocode_cache_days.
	CacheTTL func() time.Duration
}

// NewService wires the cascade in the given provider order. Disabled
// providers stay in the list and are skipped per call, so enabling a key is
// a restart-only change.
func NewService(cache Cache, providers []Provider, rec billing.Recorder, log *logrus.Logger) *Service {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "geocode-" + p.Name(),
			Timeout: 30 * time.Second,
		})
	}
	return &Service{
		cache:     cache,
		providers: providers,
		breakers:  breakers,
		billing:   rec,
		log:       log,
		CacheTTL:  func() time.Duration { return DefaultCacheTTL },
	}
}

// Geocode resolves an address. It returns (nil, nil) when every provider
// missed or answered implausibly; provider errors never propagate.
// providerOverride restricts the cascade to one named provider.
func (s *Service) Geocode(ctx context.Context, addr, runID, providerOverride string) (*Result, error) {
	if addr == "" {
		return nil, nil
	}
	normalized := address.Normalize(addr)
	key := address.CacheKey(addr)

	if entry, err := s.cache.Lookup(ctx, key); err == nil {
		telemetry.CacheLookups.WithLabelValues("geocode", "hit").Inc()
		return &Result{
			Point:           geo.Point{Lat: entry.Lat, Lng: entry.Lng},
			Formatted:       entry.FormattedAddress,
			HasStreetNumber: entry.HasStreetNumber,
			Confidence:      entry.Score,
			Provider:        entry.Provider,
			FromCache:       true,
		}, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		s.log.WithError(err).Warn("geocode: fallo la lectura de cache")
	}
	telemetry.CacheLookups.WithLabelValues("geocode", "miss").Inc()

	for _, p := range s.providers {
		if providerOverride != "" && p.Name() != providerOverride {
			continue
		}
		if !p.Enabled() {
			continue
		}
		res := s.callProvider(ctx, p, normalized, runID)
		if res == nil {
			continue
		}
		if !geo.Plausible(res.Point) {
			telemetry.ProviderCalls.WithLabelValues("geocode", p.Name(), "rejected").Inc()
			s.log.WithFields(logrus.Fields{
				"provider":  p.Name(),
				"direccion": addr,
				"lat":       res.Point.Lat,
				"lng":       res.Point.Lng,
			}).Warn("geocode: resultado implausible, se descarta")
			continue
		}
		s.saveCache(ctx, key, addr, res)
		return res, nil
	}

	s.log.WithField("direccion", addr).Warn("geocode: sin resultado")
	return nil, nil
}

// callProvider runs one provider through its breaker, recording latency,
// metrics and the billing trace. nil means miss or failure.
func (s *Service) callProvider(ctx context.Context, p Provider, normalized, runID string) *Result {
	cb := s.breakers[p.Name()]
	start := time.Now()
	out, err := cb.Execute(func() (interface{}, error) {
		return p.Geocode(ctx, normalized)
	})
	latency := time.Since(start)
	telemetry.ProviderLatency.WithLabelValues("geocode", p.Name()).Observe(latency.Seconds())

	code := 200
	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome, code = "breaker_open", 0
	case err != nil:
		outcome, code = "error", 0
		s.log.WithError(err).WithField("provider", p.Name()).Warn("geocode: proveedor fallo")
	}

	var res *Result
	if err == nil {
		res, _ = out.(*Result)
		if res == nil {
			outcome = "empty"
		}
	}
	telemetry.ProviderCalls.WithLabelValues("geocode", p.Name(), outcome).Inc()

	if s.billing != nil && outcome != "breaker_open" {
		s.billing.Trace(ctx, model.BillingTrace{
			RunID:        runID,
			Stage:        "geocode",
			Service:      p.Name(),
			SKU:          "geocode",
			Units:        1,
			ResponseCode: code,
			LatencyMs:    latency.Milliseconds(),
		})
	}
	return res
}

func (s *Service) saveCache(ctx context.Context, key, original string, res *Result) {
	now := time.Now().UTC()
	entry := &model.GeoCacheEntry{
		KeyNormalizada:   key,
		QueryOriginal:    original,
		Lat:              res.Point.Lat,
		Lng:              res.Point.Lng,
		FormattedAddress: res.Formatted,
		HasStreetNumber:  res.HasStreetNumber,
		Provider:         res.Provider,
		Score:            res.Confidence,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.CacheTTL()),
	}
	if err := s.cache.Save(ctx, entry); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("geocode: no se pudo guardar en cache")
	}
}
