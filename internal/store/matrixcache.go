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

package store

import (
	"context"
	"fmt"

	"remitero/internal/geo"
	"remitero/internal/model"
)

// LookupPair returns the freshest unexpired duration whose origin and
// destination both fall within tol degrees of the requested pair.
func (s *Store) LookupPair(ctx context.Context, origin, dest geo.Point, tol float64) (*model.TravelCacheEntry, error) {
	var e model.TravelCacheEntry
	err := s.db.GetContext(ctx, &e, `
		SELECT id, origin_lat, origin_lng, dest_lat, dest_lng, duration_sec,
			provider, created_at, expires_at
		FROM distance_matrix_cache
		WHERE origin_lat BETWEEN $1 AND $2
		  AND origin_lng BETWEEN $3 AND $4
		  AND dest_lat   BETWEEN $5 AND $6
		  AND dest_lng   BETWEEN $7 AND $8
		  AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1`,
		origin.Lat-tol, origin.Lat+tol,
		origin.Lng-tol, origin.Lng+tol,
		dest.Lat-tol, dest.Lat+tol,
		dest.Lng-tol, dest.Lng+tol)
	if isNoRows(err) {
		return nil, fmt.Errorf("distance_matrix_cache: %w", model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo distance_matrix_cache: %w", err)
	}
	return &e, nil
}

// SavePair appends one measured duration. Pairs are never updated in place;
// LookupPair prefers the newest row.
func (s *Store) SavePair(ctx context.Context, e *model.TravelCacheEntry) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO distance_matrix_cache (origin_lat, origin_lng, dest_lat,
			dest_lng, duration_sec, provider, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		e.OriginLat, e.OriginLng, e.DestLat, e.DestLng,
		e.DurationSec, e.Provider, e.ExpiresAt,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: guardando distance_matrix_cache: %w", err)
	}
	return nil
}

// PurgeExpiredPairs deletes expired duration rows and reports how many.
func (s *Store) PurgeExpiredPairs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM distance_matrix_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("store: purgando distance_matrix_cache: %w", err)
	}
	return res.RowsAffected()
}
