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

package routing

import (
	"math"
	"strings"
	"testing"

	"remitero/internal/geo"
	"remitero/internal/model"
)

var depot = geo.Point{Lat: -32.91973, Lng: -68.81829}

func TestSweepOrdersByPolarAngle(t *testing.T) {
	// Three points east, north and west of the depot: angles 0, π/2, π.
	pts := []Point{
		{Idx: 0, Lat: depot.Lat + 0.01, Lng: depot.Lng},         // north, π/2
		{Idx: 1, Lat: depot.Lat, Lng: depot.Lng + 0.01},         // east, 0
		{Idx: 2, Lat: depot.Lat + 0.001, Lng: depot.Lng - 0.01}, // west, ~π
	}
	got := Sweep(depot, pts)
	want := []int{1, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sweep order = %v, want %v", got, want)
		}
	}
}

func TestTwoOptUncrossesRoute(t *testing.T) {
	// Four points on a square; the order 0,2,1,3 crosses itself.
	m := [][]float64{
		{0, 1, 1.4, 1},
		{1, 0, 1, 1.4},
		{1.4, 1, 0, 1},
		{1, 1.4, 1, 0},
	}
	order := TwoOpt([]int{0, 2, 1, 3}, m)
	cost := 0.0
	for i := 1; i < len(order); i++ {
		cost += m[order[i-1]][order[i]]
	}
	if cost > 3.0+1e-9 {
		t.Fatalf("2-opt left a crossing route: order=%v cost=%f", order, cost)
	}
	// Endpoints stay fixed.
	if order[0] != 0 || order[len(order)-1] != 3 {
		t.Fatalf("2-opt must not move the endpoints: %v", order)
	}
}

func TestTwoOptSmallInputUntouched(t *testing.T) {
	order := []int{2, 0, 1}
	got := TwoOpt(order, [][]float64{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}})
	for i := range order {
		if got[i] != order[i] {
			t.Fatalf("orders under 4 points must pass through")
		}
	}
}

func TestNearestNeighbor(t *testing.T) {
	m := [][]float64{
		{0, 5, 1, 9},
		{5, 0, 2, 3},
		{1, 2, 0, 7},
		{9, 3, 7, 0},
	}
	got := NearestNeighbor(m, 0)
	want := []int{0, 2, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("nearest neighbor = %v, want %v", got, want)
		}
	}
}

func TestFilterJumpsDropsLargestNonPriority(t *testing.T) {
	pts := []Point{
		{Idx: 0}, {Idx: 1}, {Idx: 2, Urgente: true}, {Idx: 3},
	}
	// Edge 1→3 is a 40-minute jump; edge into urgent 2 is larger but protected.
	m := [][]float64{
		{0, 5, 60, 10},
		{5, 0, 60, 40},
		{60, 60, 0, 60},
		{10, 40, 60, 0},
	}
	order := []int{0, 1, 3, 2}
	filtered, excluded := FilterJumps(pts, order, m, 25)
	if len(excluded) != 1 || excluded[0] != 3 {
		t.Fatalf("expected idx 3 excluded, got %v", excluded)
	}
	for _, i := range filtered {
		if i == 3 {
			t.Fatal("excluded idx must leave the order")
		}
	}
	// The urgent stop survives even though its edge exceeds the threshold.
	found := false
	for _, i := range filtered {
		if i == 2 {
			found = true
		}
	}
	if !found {
		t.Fatal("urgent stop must never be dropped by the jump filter")
	}
}

func TestFilterJumpsConverges(t *testing.T) {
	// All edges huge, no protected points: the filter must stop at the
	// round cap instead of emptying the route one stop per round forever.
	n := 15
	pts := make([]Point, n)
	order := make([]int, n)
	m := make([][]float64, n)
	for i := range pts {
		pts[i] = Point{Idx: i}
		order[i] = i
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = 100
			}
		}
	}
	_, excluded := FilterJumps(pts, order, m, 25)
	if len(excluded) > MaxJumpFilterRounds {
		t.Fatalf("filter must stop after %d rounds, excluded %d", MaxJumpFilterRounds, len(excluded))
	}
}

func TestOptimizeBucketOrder(t *testing.T) {
	pts := []Point{
		{Idx: 0, Lat: -32.93, Lng: -68.80, VentanaTipo: model.VentanaPM},                   // NORM_PM
		{Idx: 1, Lat: -32.92, Lng: -68.81, Urgente: true, VentanaTipo: model.VentanaSin},   // URG
		{Idx: 2, Lat: -32.91, Lng: -68.82, Prioridad: true, VentanaTipo: model.VentanaAM},  // PRI_AM
		{Idx: 3, Lat: -32.90, Lng: -68.83, VentanaTipo: model.VentanaAM},                   // NORM_AM
		{Idx: 4, Lat: -32.94, Lng: -68.84, Prioridad: true, VentanaTipo: model.VentanaPM},  // PRI_PM
		{Idx: 5, Lat: -32.95, Lng: -68.85, VentanaTipo: model.VentanaSin},                  // NORM_SIN
		{Idx: 6, Lat: -32.96, Lng: -68.86, Prioridad: true, VentanaTipo: model.VentanaSin}, // PRI_SIN
	}
	n := len(pts)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = 5
			}
		}
	}
	res := Optimize(pts, m, depot, 25)
	if len(res.Ordered) != n {
		t.Fatalf("nothing should be excluded: %+v", res.ExcludedIdxs)
	}
	gotIdxs := make([]int, n)
	for i, p := range res.Ordered {
		gotIdxs[i] = p.Idx
	}
	want := []int{1, 2, 6, 3, 5, 4, 0} // URG, PRI_AM, PRI_SIN, NORM_AM, NORM_SIN, PRI_PM, NORM_PM
	for i := range want {
		if gotIdxs[i] != want[i] {
			t.Fatalf("bucket order = %v, want %v", gotIdxs, want)
		}
	}
}

func TestOptimizeEmpty(t *testing.T) {
	res := Optimize(nil, nil, depot, 25)
	if len(res.Ordered) != 0 || len(res.ExcludedIdxs) != 0 {
		t.Fatalf("empty input must yield empty route: %+v", res)
	}
}

func TestOptimizeTwoOptOnlyWithFourUrgent(t *testing.T) {
	// Three urgent stops: sweep order must stand, no 2-opt.
	pts := []Point{
		{Idx: 0, Lat: depot.Lat + 0.01, Lng: depot.Lng, Urgente: true},
		{Idx: 1, Lat: depot.Lat, Lng: depot.Lng + 0.01, Urgente: true},
		{Idx: 2, Lat: depot.Lat - 0.01, Lng: depot.Lng, Urgente: true},
	}
	m := [][]float64{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}}
	res := Optimize(pts, m, depot, 1000)
	// Sweep: angles -π/2 (idx 2), 0 (idx 1), π/2 (idx 0).
	want := []int{2, 1, 0}
	for i, p := range res.Ordered {
		if p.Idx != want[i] {
			t.Fatalf("sweep-only order mismatch: got %+v", res.Ordered)
		}
	}
}

func TestBuildGmapsLinksSingleLeg(t *testing.T) {
	stops := []Point{
		{Lat: -32.90, Lng: -68.85},
		{Lat: -32.95, Lng: -68.84},
	}
	links := BuildGmapsLinks(stops, depot)
	if len(links) != 1 {
		t.Fatalf("expected one link, got %d", len(links))
	}
	l := links[0]
	if !strings.HasPrefix(l, "https://www.google.com/maps/dir/?") {
		t.Fatalf("bad prefix: %s", l)
	}
	if !strings.Contains(l, "api=1") {
		t.Fatalf("missing api=1: %s", l)
	}
	// Final destination is the depot.
	if !strings.Contains(l, "destination=-32.91973%2C-68.81829") {
		t.Fatalf("destination must be the depot: %s", l)
	}
}

func TestBuildGmapsLinksChaining(t *testing.T) {
	stops := make([]Point, 13)
	for i := range stops {
		stops[i] = Point{Lat: -32.90 - float64(i)*0.001, Lng: -68.85}
	}
	links := BuildGmapsLinks(stops, depot)
	if len(links) != 2 {
		t.Fatalf("13 stops must produce 2 links, got %d", len(links))
	}
	// Second leg starts where the first chunk ended (stop index 9).
	if !strings.Contains(links[1], "origin=-32.909") {
		t.Fatalf("second link must chain from stop 10: %s", links[1])
	}
	// Last link ends at the depot.
	if !strings.Contains(links[1], "destination=-32.91973%2C-68.81829") {
		t.Fatalf("last link must end at the depot: %s", links[1])
	}
	// No link carries more than the waypoint limit.
	for _, l := range links {
		u := l[strings.Index(l, "waypoints=")+len("waypoints="):]
		if amp := strings.Index(u, "&"); amp >= 0 {
			u = u[:amp]
		}
		if n := strings.Count(u, "%7C") + 1; n > MaxWaypointsPerLink {
			t.Fatalf("link exceeds waypoint limit: %d", n)
		}
	}
}

func TestSubMatrixProjection(t *testing.T) {
	full := [][]float64{
		{0, 1, 2, 3},
		{1, 0, 4, 5},
		{2, 4, 0, 6},
		{3, 5, 6, 0},
	}
	group := []Point{{Idx: 3}, {Idx: 1}}
	sub := subMatrix(full, group)
	if sub[0][1] != full[3][1] || sub[1][0] != full[1][3] {
		t.Fatalf("projection mismatch: %v", sub)
	}
	if math.Abs(sub[0][0]) > 0 {
		t.Fatal("diagonal must be zero")
	}
}
