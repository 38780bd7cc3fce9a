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

	"remitero/internal/model"
)

// Lookup returns the unexpired cached geocode for key, or model.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, key string) (*model.GeoCacheEntry, error) {
	var e model.GeoCacheEntry
	err := s.db.GetContext(ctx, &e, `
		SELECT id, key_normalizada, query_original, lat, lng, formatted_address,
			has_street_number, provider, score, created_at, expires_at
		FROM geo_cache
		WHERE key_normalizada = $1 AND expires_at > now()`, key)
	if isNoRows(err) {
		return nil, fmt.Errorf("geo_cache %s: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo geo_cache: %w", err)
	}
	return &e, nil
}

// Save upserts one cached geocode. A repeat key refreshes the row and its
// expiry.
func (s *Store) Save(ctx context.Context, e *model.GeoCacheEntry) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO geo_cache (key_normalizada, query_original, lat, lng,
			formatted_address, has_street_number, provider, score, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key_normalizada) DO UPDATE SET
			query_original = EXCLUDED.query_original,
			lat = EXCLUDED.lat, lng = EXCLUDED.lng,
			formatted_address = EXCLUDED.formatted_address,
			has_street_number = EXCLUDED.has_street_number,
			provider = EXCLUDED.provider, score = EXCLUDED.score,
			expires_at = EXCLUDED.expires_at
		RETURNING id, created_at`,
		e.KeyNormalizada, e.QueryOriginal, e.Lat, e.Lng,
		e.FormattedAddress, e.HasStreetNumber, e.Provider, e.Score, e.ExpiresAt,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: guardando geo_cache: %w", err)
	}
	return nil
}

// GeoCacheStats counts cached entries per provider, expired rows excluded.
func (s *Store) GeoCacheStats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT provider, COUNT(*) FROM geo_cache
		WHERE expires_at > now()
		GROUP BY provider`)
	if err != nil {
		return nil, fmt.Errorf("store: contando geo_cache: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var provider string
		var n int
		if err := rows.Scan(&provider, &n); err != nil {
			return nil, err
		}
		out[provider] = n
	}
	return out, rows.Err()
}

// PurgeExpiredGeo deletes expired geocode rows and reports how many.
func (s *Store) PurgeExpiredGeo(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM geo_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("store: purgando geo_cache: %w", err)
	}
	return res.RowsAffected()
}
