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
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"remitero/internal/address"
	"remitero/internal/geo"
	"remitero/internal/model"
)

type memCache struct {
	entries map[string]*model.GeoCacheEntry
	saveErr error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]*model.GeoCacheEntry{}}
}

func (m *memCache) Lookup(_ context.Context, key string) (*model.GeoCacheEntry, error) {
	e, ok := m.entries[key]
	if !ok || time.Now().After(e.ExpiresAt) {
		return nil, model.ErrNotFound
	}
	return e, nil
}

func (m *memCache) Save(_ context.Context, e *model.GeoCacheEntry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries[e.KeyNormalizada] = e
	return nil
}

type stubProvider struct {
	name    string
	enabled bool
	res     *Result
	err     error
	calls   int
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Enabled() bool { return s.enabled }
func (s *stubProvider) Geocode(context.Context, string) (*Result, error) {
	s.calls++
	return s.res, s.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func goodResult(name string) *Result {
	return &Result{
		Point:           geo.Point{Lat: -32.95, Lng: -68.85},
		Formatted:       "Calle Falsa 123, Godoy Cruz",
		HasStreetNumber: true,
		Confidence:      0.9,
		Provider:        name,
	}
}

func TestGeocodeCascadeFallsThrough(t *testing.T) {
	p1 := &stubProvider{name: "ors", enabled: true, err: errors.New("boom")}
	p2 := &stubProvider{name: "mapbox", enabled: true, res: nil} // answered empty
	p3 := &stubProvider{name: "google", enabled: true, res: goodResult("google")}
	svc := NewService(newMemCache(), []Provider{p1, p2, p3}, nil, quietLogger())

	res, err := svc.Geocode(context.Background(), "Calle Falsa 123", "run", "")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Provider != "google" {
		t.Fatalf("expected google result, got %+v", res)
	}
	if p1.calls != 1 || p2.calls != 1 || p3.calls != 1 {
		t.Fatalf("cascade calls: %d %d %d", p1.calls, p2.calls, p3.calls)
	}
}

func TestGeocodeRejectsImplausible(t *testing.T) {
	bad := &stubProvider{name: "ors", enabled: true, res: &Result{
		Point: geo.Point{Lat: -32.8908, Lng: -68.8272}, Provider: "ors", // city centroid
	}}
	good := &stubProvider{name: "mapbox", enabled: true, res: goodResult("mapbox")}
	svc := NewService(newMemCache(), []Provider{bad, good}, nil, quietLogger())

	res, err := svc.Geocode(context.Background(), "Plaza algo", "run", "")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Provider != "mapbox" {
		t.Fatalf("centroid echo must be rejected, got %+v", res)
	}
}

func TestGeocodeCacheHitSkipsProviders(t *testing.T) {
	cache := newMemCache()
	p := &stubProvider{name: "ors", enabled: true, res: goodResult("ors")}
	svc := NewService(cache, []Provider{p}, nil, quietLogger())

	addr := "Av. San Martín 1234, Godoy Cruz"
	if _, err := svc.Geocode(context.Background(), addr, "run", ""); err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Fatalf("first call must hit the provider")
	}

	// Equivalent spelling must hit the cache.
	res, err := svc.Geocode(context.Background(), "avenida san martin 1234, godoy cruz", "run", "")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || !res.FromCache {
		t.Fatalf("expected cache hit, got %+v", res)
	}
	if p.calls != 1 {
		t.Fatalf("cache hit must not call the provider again, calls=%d", p.calls)
	}
	if _, ok := cache.entries[address.CacheKey(addr)]; !ok {
		t.Fatal("entry missing under normalized key")
	}
}

func TestGeocodeDisabledProviderSkipped(t *testing.T) {
	off := &stubProvider{name: "ors", enabled: false, res: goodResult("ors")}
	on := &stubProvider{name: "google", enabled: true, res: goodResult("google")}
	svc := NewService(newMemCache(), []Provider{off, on}, nil, quietLogger())

	res, _ := svc.Geocode(context.Background(), "Calle Falsa 123", "run", "")
	if off.calls != 0 || res.Provider != "google" {
		t.Fatalf("disabled provider must be skipped: calls=%d res=%+v", off.calls, res)
	}
}

func TestGeocodeProviderOverride(t *testing.T) {
	a := &stubProvider{name: "ors", enabled: true, res: goodResult("ors")}
	b := &stubProvider{name: "google", enabled: true, res: goodResult("google")}
	svc := NewService(newMemCache(), []Provider{a, b}, nil, quietLogger())

	res, _ := svc.Geocode(context.Background(), "Calle Falsa 123", "run", "google")
	if a.calls != 0 || res.Provider != "google" {
		t.Fatalf("override must restrict the cascade: %+v", res)
	}
}

func TestGeocodeAllMiss(t *testing.T) {
	p := &stubProvider{name: "ors", enabled: true, res: nil}
	svc := NewService(newMemCache(), []Provider{p}, nil, quietLogger())
	res, err := svc.Geocode(context.Background(), "direccion inexistente", "run", "")
	if err != nil || res != nil {
		t.Fatalf("total miss must be (nil, nil): %v %v", res, err)
	}
}

func TestGeocodeSaveFailureStillReturns(t *testing.T) {
	cache := newMemCache()
	cache.saveErr = errors.New("disk full")
	p := &stubProvider{name: "ors", enabled: true, res: goodResult("ors")}
	svc := NewService(cache, []Provider{p}, nil, quietLogger())
	res, err := svc.Geocode(context.Background(), "Calle Falsa 123", "run", "")
	if err != nil || res == nil {
		t.Fatalf("cache save failure must not fail the lookup: %v %v", res, err)
	}
}
