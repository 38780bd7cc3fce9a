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

// ListConfig returns every typed config row ordered by key.
func (s *Store) ListConfig(ctx context.Context) ([]model.ConfigEntry, error) {
	var out []model.ConfigEntry
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, key, value, tipo, descripcion, updated_at
		FROM config_ruta ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("store: listando config_ruta: %w", err)
	}
	return out, nil
}

// SetConfig upserts one config key. Description is preserved on update.
func (s *Store) SetConfig(ctx context.Context, key, value, tipo string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config_ruta (key, value, tipo)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value, tipo = EXCLUDED.tipo, updated_at = now()`,
		key, value, tipo)
	if err != nil {
		return fmt.Errorf("store: escribiendo config_ruta %s: %w", key, err)
	}
	return nil
}
