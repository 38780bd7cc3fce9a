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

// Package geo holds the geographic constants of the Mendoza service region
// and the pure-math primitives (haversine distance, plausibility checks)
// shared by geocoding, the travel matrix and the route builder.
package geo

import "math"

// Service-region bounding box. Coordinates outside it are rejected as
// implausible geocoding results.
const (
	BBoxLatMin = -33.5
	BBoxLatMax = -32.0
	BBoxLngMin = -69.5
	BBoxLngMax = -68.0
)

// Default depot, used when config carries no override.
const (
	DepotLat     = -32.91973
	DepotLng     = -68.81829
	DepotAddress = "Elpidio González 2753, Guaymallén, Mendoza"
)

// CentroidTolerance is the half-width in degrees around a city centroid
// inside which a geocoding result is considered a centroid echo: the
// provider gave up on the street and answered with the city itself.
const CentroidTolerance = 0.001

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// cityCentroids are the centers of the metro-area localities. A result
// landing exactly on one of these is a centroid echo, not a street match.
var cityCentroids = []Point{
	{-32.8908, -68.8272}, // Mendoza
	{-32.9887, -68.8361}, // Godoy Cruz
	{-32.8833, -68.7833}, // Guaymallén
	{-32.8500, -68.8833}, // Las Heras
	{-33.0712, -68.8868}, // Luján de Cuyo
	{-32.9833, -68.6000}, // Maipú
}

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// EstimateMinutes converts the straight-line distance between two points into
// travel minutes assuming an average urban speed in km/h. It is the fallback
// when no routing provider answers.
func EstimateMinutes(a, b Point, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = 40
	}
	return HaversineKm(a, b) / speedKmh * 60
}

// InBBox reports whether p lies inside the service-region bounding box.
func InBBox(p Point) bool {
	return p.Lat >= BBoxLatMin && p.Lat <= BBoxLatMax &&
		p.Lng >= BBoxLngMin && p.Lng <= BBoxLngMax
}

// IsCentroidEcho reports whether p sits within CentroidTolerance of any known
// city centroid on both axes.
func IsCentroidEcho(p Point) bool {
	for _, c := range cityCentroids {
		if math.Abs(p.Lat-c.Lat) < CentroidTolerance && math.Abs(p.Lng-c.Lng) < CentroidTolerance {
			return true
		}
	}
	return false
}

// Plausible runs the full acceptance check for a geocoding result: not the
// null island, inside the region bbox, and not a city-centroid echo.
func Plausible(p Point) bool {
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	if !InBBox(p) {
		return false
	}
	return !IsCentroidEcho(p)
}
