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

package matrix

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"remitero/internal/billing"
	"remitero/internal/geo"
	"remitero/internal/model"
	"remitero/internal/telemetry"
)

// PairTolerance is the coordinate half-width for cache matches: two points
// within ~55 m count as the same endpoint.
const PairTolerance = 0.0005

// DefaultCacheTTL is the pair cache lifetime when config carries no
// override.
const DefaultCacheTTL = 6 * time.Hour

// DefaultBlockSize bounds one provider call to BxB cells when config carries
// no override.
const DefaultBlockSize = 10

// Cache persists origin→destination durations. Lookups of absent or expired
// pairs return model.ErrNotFound.
type Cache interface {
	LookupPair(ctx context.Context, origin, dest geo.Point, tol float64) (*model.TravelCacheEntry, error)
	SavePair(ctx context.Context, e *model.TravelCacheEntry) error
}

// Service builds matrices from cache, block-sized provider calls, then
// estimates.
type Service struct {
	cache    Cache
	provider Provider
	breaker  *gobreaker.CircuitBreaker
	billing  billing.Recorder // may be nil
	log      *logrus.Logger

	// SpeedKmh feeds the haversine fallback; swappable from config.
	SpeedKmh func() float64
	// CacheTTL yields the lifetime of fresh pair entries.
	CacheTTL func() time.Duration
	// BlockSize caps one provider call at BxB cells.
	BlockSize func() int
}

// NewService wires the matrix builder around one routing provider.
func NewService(cache Cache, provider Provider, rec billing.Recorder, log *logrus.Logger) *Service {
	return &Service{
		cache:    cache,
		provider: provider,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "matrix-" + provider.Name(),
			Timeout: 30 * time.Second,
		}),
		billing:   rec,
		log:       log,
		SpeedKmh:  func() float64 { return 40 },
		CacheTTL:  func() time.Duration { return DefaultCacheTTL },
		BlockSize: func() int { return DefaultBlockSize },
	}
}

// Durations returns the NxN travel-time matrix in minutes. It never fails:
// any pair the cache and the provider leave unanswered is estimated from the
// straight-line distance.
func (s *Service) Durations(ctx context.Context, points []geo.Point, runID string) [][]float64 {
	n := len(points)
	m := make([][]float64, n)
	missing := make([][]bool, n)
	anyMissing := false
	for i := range m {
		m[i] = make([]float64, n)
		missing[i] = make([]bool, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			entry, err := s.cache.LookupPair(ctx, points[i], points[j], PairTolerance)
			switch {
			case err == nil:
				telemetry.CacheLookups.WithLabelValues("matrix", "hit").Inc()
				m[i][j] = entry.DurationSec / 60.0
			case errors.Is(err, model.ErrNotFound):
				telemetry.CacheLookups.WithLabelValues("matrix", "miss").Inc()
				missing[i][j] = true
				anyMissing = true
			default:
				s.log.WithError(err).Warn("matrix: fallo la lectura de cache")
				missing[i][j] = true
				anyMissing = true
			}
		}
	}

	// Misses go to the provider in BxB blocks; a failed block degrades to
	// the estimate without touching the others.
	if anyMissing && s.provider.Enabled() {
		bs := s.BlockSize()
		if bs <= 0 {
			bs = DefaultBlockSize
		}
		now := time.Now().UTC()
		for i0 := 0; i0 < n; i0 += bs {
			i1 := min(i0+bs, n)
			for j0 := 0; j0 < n; j0 += bs {
				j1 := min(j0+bs, n)
				if !hasMiss(missing, i0, i1, j0, j1) {
					continue
				}
				api := s.callProvider(ctx, points[i0:i1], points[j0:j1], runID)
				if api == nil {
					continue
				}
				for i := i0; i < i1; i++ {
					for j := j0; j < j1; j++ {
						if !missing[i][j] {
							continue
						}
						m[i][j] = api[i-i0][j-j0]
						missing[i][j] = false
						s.savePair(ctx, points[i], points[j], m[i][j], now)
					}
				}
			}
		}
	}

	// Whatever is still open gets the straight-line estimate.
	speed := s.SpeedKmh()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if missing[i][j] {
				m[i][j] = geo.EstimateMinutes(points[i], points[j], speed)
			}
		}
	}
	return m
}

func hasMiss(missing [][]bool, i0, i1, j0, j1 int) bool {
	for i := i0; i < i1; i++ {
		for j := j0; j < j1; j++ {
			if missing[i][j] {
				return true
			}
		}
	}
	return false
}

func (s *Service) callProvider(ctx context.Context, sources, dests []geo.Point, runID string) [][]float64 {
	start := time.Now()
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.provider.Durations(ctx, sources, dests)
	})
	latency := time.Since(start)
	telemetry.ProviderLatency.WithLabelValues("matrix", s.provider.Name()).Observe(latency.Seconds())

	outcome := "ok"
	code := 200
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome, code = "breaker_open", 0
	case err != nil:
		outcome, code = "error", 0
		s.log.WithError(err).WithField("provider", s.provider.Name()).
			Warn("matrix: proveedor fallo, se usa estimacion haversine")
	}
	telemetry.ProviderCalls.WithLabelValues("matrix", s.provider.Name(), outcome).Inc()

	if s.billing != nil && outcome != "breaker_open" {
		s.billing.Trace(ctx, model.BillingTrace{
			RunID:        runID,
			Stage:        "matrix",
			Service:      s.provider.Name(),
			SKU:          "distance_matrix",
			Units:        len(sources) * len(dests),
			ResponseCode: code,
			LatencyMs:    latency.Milliseconds(),
		})
	}

	if err != nil {
		return nil
	}
	api, _ := out.([][]float64)
	return api
}

func (s *Service) savePair(ctx context.Context, origin, dest geo.Point, minutes float64, now time.Time) {
	entry := &model.TravelCacheEntry{
		OriginLat:   origin.Lat,
		OriginLng:   origin.Lng,
		DestLat:     dest.Lat,
		DestLng:     dest.Lng,
		DurationSec: minutes * 60.0,
		Provider:    s.provider.Name(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.CacheTTL()),
	}
	if err := s.cache.SavePair(ctx, entry); err != nil {
		s.log.WithError(err).Warn("matrix: no se pudo guardar el par en cache")
	}
}
