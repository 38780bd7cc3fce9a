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

package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Plaza Independencia to the depot in Guaymallén, roughly 3.3 km.
	a := Point{-32.8894, -68.8446}
	b := Point{DepotLat, DepotLng}
	d := HaversineKm(a, b)
	if d < 3.0 || d > 4.5 {
		t.Fatalf("distance out of expected band: %.3f km", d)
	}
	if HaversineKm(a, a) != 0 {
		t.Fatalf("zero distance expected for identical points")
	}
	// Symmetry.
	if math.Abs(HaversineKm(a, b)-HaversineKm(b, a)) > 1e-9 {
		t.Fatalf("haversine must be symmetric")
	}
}

func TestEstimateMinutes(t *testing.T) {
	a := Point{-32.90, -68.85}
	b := Point{-32.95, -68.85}
	km := HaversineKm(a, b)
	got := EstimateMinutes(a, b, 40)
	want := km / 40 * 60
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("EstimateMinutes = %f, want %f", got, want)
	}
	// Non-positive speed falls back to the default 40 km/h.
	if math.Abs(EstimateMinutes(a, b, 0)-want) > 1e-9 {
		t.Fatalf("zero speed must fall back to 40 km/h")
	}
}

func TestPlausible(t *testing.T) {
	cases := []struct {
		name string
		p    Point
		want bool
	}{
		{"null island", Point{0, 0}, false},
		{"outside bbox north", Point{-31.0, -68.5}, false},
		{"outside bbox east", Point{-32.9, -67.0}, false},
		{"mendoza centroid echo", Point{-32.8908, -68.8272}, false},
		{"near godoy cruz centroid", Point{-32.9890, -68.8358}, false},
		{"real street point", Point{-32.91973, -68.81829}, true},
		{"inside bbox far from centroids", Point{-33.2, -68.9}, true},
	}
	for _, c := range cases {
		if got := Plausible(c.p); got != c.want {
			t.Errorf("%s: Plausible(%v) = %v, want %v", c.name, c.p, got, c.want)
		}
	}
}

func TestIsCentroidEchoTolerance(t *testing.T) {
	// Just inside tolerance on both axes.
	if !IsCentroidEcho(Point{-32.8908 + 0.0009, -68.8272 - 0.0009}) {
		t.Fatalf("point inside tolerance must be an echo")
	}
	// Outside tolerance on one axis is enough to pass.
	if IsCentroidEcho(Point{-32.8908 + 0.002, -68.8272}) {
		t.Fatalf("point outside tolerance must not be an echo")
	}
}
