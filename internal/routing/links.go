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
	"net/url"
	"strconv"
	"strings"

	"remitero/internal/geo"
)

// MaxWaypointsPerLink is the Google Maps directions limit per link.
const MaxWaypointsPerLink = 10

func coord(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

// BuildGmapsLinks splits the ordered stops into navigable Google Maps links
// of at most MaxWaypointsPerLink waypoints each. The depot is the origin of
// the first leg and the destination of the last; each later leg starts at
// the previous leg's final stop, so the links chain into one route.
func BuildGmapsLinks(stops []Point, depot geo.Point) []string {
	if len(stops) == 0 {
		return nil
	}
	var links []string
	for i := 0; i < len(stops); i += MaxWaypointsPerLink {
		chunk := stops[i:min(i+MaxWaypointsPerLink, len(stops))]

		origin := coord(depot.Lat, depot.Lng)
		if i > 0 {
			prev := stops[i-1]
			origin = coord(prev.Lat, prev.Lng)
		}

		var destination string
		if i+MaxWaypointsPerLink >= len(stops) {
			destination = coord(depot.Lat, depot.Lng)
		} else {
			last := chunk[len(chunk)-1]
			destination = coord(last.Lat, last.Lng)
			chunk = chunk[:len(chunk)-1]
		}

		waypoints := make([]string, len(chunk))
		for j, p := range chunk {
			waypoints[j] = coord(p.Lat, p.Lng)
		}

		q := url.Values{
			"api":         {"1"},
			"origin":      {origin},
			"destination": {destination},
		}
		if len(waypoints) > 0 {
			q.Set("waypoints", strings.Join(waypoints, "|"))
		}
		links = append(links, "https://www.google.com/maps/dir/?"+q.Encode())
	}
	return links
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
