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

// Package routing turns classified delivery points into an ordered daily
// route: a polar sweep per priority bucket, 2-opt refinement for the urgent
// segment, a fixpoint jump filter, and the final stop materialization with
// Google Maps deep links.
package routing

import (
	"math"
	"sort"

	"remitero/internal/geo"
	"remitero/internal/model"
)

// Point is one route candidate, carrying the snapshot the stop will keep.
type Point struct {
	Idx           int // position in the original candidate slice
	Lat           float64
	Lng           float64
	RemitoID      int64
	Numero        string
	Cliente       string
	Direccion     string
	Observaciones string
	Urgente       bool
	Prioridad     bool
	VentanaTipo   model.VentanaTipo
	VentanaDesde  *int
	VentanaHasta  *int
	LlamarAntes   bool
}

// Optimized is the ordered route plus the points the jump filter dropped.
type Optimized struct {
	Ordered          []Point
	ExcludedIdxs     []int
	ExclusionReasons map[int]string
}

// MaxJumpFilterRounds bounds the fixpoint filter.
const MaxJumpFilterRounds = 10

// twoOptEpsilon is the minimum improvement a 2-opt move must yield.
const twoOptEpsilon = 1e-6

// Sweep orders points by polar angle around the depot, ascending. Equal
// angles keep their input order.
func Sweep(depot geo.Point, points []Point) []int {
	idxs := make([]int, len(points))
	for i := range idxs {
		idxs[i] = i
	}
	angle := func(p Point) float64 {
		return math.Atan2(p.Lat-depot.Lat, p.Lng-depot.Lng)
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return angle(points[idxs[a]]) < angle(points[idxs[b]])
	})
	return idxs
}

// TwoOpt refines an order in place against the duration matrix until no
// segment reversal improves it. The first-to-last edge is never touched.
func TwoOpt(order []int, matrix [][]float64) []int {
	n := len(order)
	if n < 4 {
		return order
	}
	improved := true
	for improved {
		improved = false
		for i := 0; i < n-1; i++ {
			for k := i + 2; k < n; k++ {
				if i == 0 && k == n-1 {
					continue
				}
				a, b := order[i], order[i+1]
				c, d := order[k-1], order[k%n]
				delta := (matrix[a][c] + matrix[b][d]) - (matrix[a][b] + matrix[c][d])
				if delta < -twoOptEpsilon {
					reverse(order[i+1 : k])
					improved = true
				}
			}
		}
	}
	return order
}

func reverse(s []int) {
	for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
		s[l], s[r] = s[r], s[l]
	}
}

// NearestNeighbor builds a greedy order always visiting the closest
// unvisited point next.
func NearestNeighbor(matrix [][]float64, start int) []int {
	n := len(matrix)
	if n == 0 {
		return nil
	}
	visited := make([]bool, n)
	order := make([]int, 0, n)
	order = append(order, start)
	visited[start] = true
	for len(order) < n {
		last := order[len(order)-1]
		bestDist := math.Inf(1)
		bestNext := -1
		for j := 0; j < n; j++ {
			if !visited[j] && matrix[last][j] < bestDist {
				bestDist = matrix[last][j]
				bestNext = j
			}
		}
		if bestNext < 0 {
			break
		}
		order = append(order, bestNext)
		visited[bestNext] = true
	}
	return order
}

// FilterJumps drops, one per round, the destination of the largest
// over-threshold edge, unless that destination is urgent or priority. It
// converges when no droppable jump remains or after MaxJumpFilterRounds.
func FilterJumps(points []Point, order []int, matrix [][]float64, thresholdMin float64) (filtered, excluded []int) {
	current := append([]int(nil), order...)
	for round := 0; round < MaxJumpFilterRounds; round++ {
		maxJump := 0.0
		maxIdx := -1
		for pos := 1; pos < len(current); pos++ {
			prev, curr := current[pos-1], current[pos]
			dur := matrix[prev][curr]
			if dur >= 9e8 {
				dur = 0
			}
			if dur > maxJump && dur > thresholdMin {
				p := points[curr]
				if !p.Urgente && !p.Prioridad {
					maxJump = dur
					maxIdx = curr
				}
			}
		}
		if maxIdx < 0 {
			break
		}
		excluded = append(excluded, maxIdx)
		next := current[:0]
		for _, i := range current {
			if i != maxIdx {
				next = append(next, i)
			}
		}
		current = next
	}
	return current, excluded
}

// Optimize runs the full ordering pipeline. Bucket order: urgent first, then
// priority AM, priority without window, normal AM, normal without window,
// priority PM, normal PM. Only the urgent segment gets 2-opt, and only when
// it holds at least four stops.
func Optimize(points []Point, matrix [][]float64, depot geo.Point, evitarSaltosMin float64) Optimized {
	if len(points) == 0 {
		return Optimized{ExclusionReasons: map[int]string{}}
	}

	var urg, priAM, priPM, priSin, normAM, normPM, normSin []Point
	for _, p := range points {
		switch {
		case p.Urgente:
			urg = append(urg, p)
		case p.Prioridad && p.VentanaTipo == model.VentanaAM:
			priAM = append(priAM, p)
		case p.Prioridad && p.VentanaTipo == model.VentanaPM:
			priPM = append(priPM, p)
		case p.Prioridad:
			priSin = append(priSin, p)
		case p.VentanaTipo == model.VentanaAM:
			normAM = append(normAM, p)
		case p.VentanaTipo == model.VentanaPM:
			normPM = append(normPM, p)
		default:
			normSin = append(normSin, p)
		}
	}

	sortGroup := func(group []Point) []Point {
		if len(group) == 0 {
			return nil
		}
		idxs := Sweep(depot, group)
		out := make([]Point, len(group))
		for i, gi := range idxs {
			out[i] = group[gi]
		}
		return out
	}

	urgSorted := sortGroup(urg)
	if len(urgSorted) >= 4 {
		sub := subMatrix(matrix, urgSorted)
		local := make([]int, len(urgSorted))
		for i := range local {
			local[i] = i
		}
		local = TwoOpt(local, sub)
		refined := make([]Point, len(urgSorted))
		for i, li := range local {
			refined[i] = urgSorted[li]
		}
		urgSorted = refined
	}

	ordered := urgSorted
	ordered = append(ordered, sortGroup(priAM)...)
	ordered = append(ordered, sortGroup(priSin)...)
	ordered = append(ordered, sortGroup(normAM)...)
	ordered = append(ordered, sortGroup(normSin)...)
	ordered = append(ordered, sortGroup(priPM)...)
	ordered = append(ordered, sortGroup(normPM)...)

	orderIdxs := make([]int, len(ordered))
	for i, p := range ordered {
		orderIdxs[i] = p.Idx
	}
	filteredIdxs, excludedIdxs := FilterJumps(points, orderIdxs, matrix, evitarSaltosMin)

	byIdx := make(map[int]Point, len(points))
	for _, p := range points {
		byIdx[p.Idx] = p
	}
	finalOrdered := make([]Point, 0, len(filteredIdxs))
	for _, i := range filteredIdxs {
		finalOrdered = append(finalOrdered, byIdx[i])
	}
	reasons := make(map[int]string, len(excludedIdxs))
	for _, i := range excludedIdxs {
		reasons[i] = "salto"
	}
	return Optimized{Ordered: finalOrdered, ExcludedIdxs: excludedIdxs, ExclusionReasons: reasons}
}

// subMatrix projects the full matrix onto the group's global indexes.
func subMatrix(full [][]float64, group []Point) [][]float64 {
	n := len(group)
	sub := make([][]float64, n)
	for i := range sub {
		sub[i] = make([]float64, n)
		for j := range sub[i] {
			gi, gj := group[i].Idx, group[j].Idx
			if gi < len(full) && gj < len(full[gi]) {
				sub[i][j] = full[gi][gj]
			}
		}
	}
	return sub
}
