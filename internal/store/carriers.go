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

const carrierCols = `id, nombre_canonico, aliases, regex_pattern, es_externo,
	es_pickup, activo, prioridad_regex, created_at, updated_at`

// ActiveWithRegex returns active carriers carrying a regex pattern, ordered
// by cascade priority. Lower prioridad_regex wins ties first.
func (s *Store) ActiveWithRegex(ctx context.Context) ([]model.Carrier, error) {
	var out []model.Carrier
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+carrierCols+` FROM carriers
		WHERE activo AND regex_pattern IS NOT NULL
		ORDER BY prioridad_regex ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: listando carriers con regex: %w", err)
	}
	return out, nil
}

// ByName returns the carrier with the exact canonical name.
func (s *Store) ByName(ctx context.Context, nombre string) (*model.Carrier, error) {
	var c model.Carrier
	err := s.db.GetContext(ctx, &c,
		`SELECT `+carrierCols+` FROM carriers WHERE nombre_canonico = $1`, nombre)
	if isNoRows(err) {
		return nil, fmt.Errorf("carrier %s: %w", nombre, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo carrier: %w", err)
	}
	return &c, nil
}

// ListCarriers returns the full catalog, active first.
func (s *Store) ListCarriers(ctx context.Context) ([]model.Carrier, error) {
	var out []model.Carrier
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+carrierCols+` FROM carriers
		ORDER BY activo DESC, prioridad_regex ASC, nombre_canonico ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: listando carriers: %w", err)
	}
	return out, nil
}

// CreateCarrier inserts a new catalog row. A duplicate canonical name yields
// model.ErrConflict.
func (s *Store) CreateCarrier(ctx context.Context, c *model.Carrier) error {
	if c.Aliases == nil {
		c.Aliases = model.JSONList{}
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO carriers (nombre_canonico, aliases, regex_pattern, es_externo,
			es_pickup, activo, prioridad_regex)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (nombre_canonico) DO NOTHING
		RETURNING id, created_at, updated_at`,
		c.NombreCanonico, c.Aliases, c.RegexPattern, c.EsExterno,
		c.EsPickup, c.Activo, c.PrioridadRegex,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isNoRows(err) {
		return fmt.Errorf("carrier %s duplicado: %w", c.NombreCanonico, model.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("store: creando carrier: %w", err)
	}
	return nil
}

// UpdateCarrier rewrites the mutable fields of one catalog row.
func (s *Store) UpdateCarrier(ctx context.Context, c *model.Carrier) error {
	if c.Aliases == nil {
		c.Aliases = model.JSONList{}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE carriers SET nombre_canonico = $2, aliases = $3, regex_pattern = $4,
			es_externo = $5, es_pickup = $6, activo = $7, prioridad_regex = $8,
			updated_at = now()
		WHERE id = $1`,
		c.ID, c.NombreCanonico, c.Aliases, c.RegexPattern,
		c.EsExterno, c.EsPickup, c.Activo, c.PrioridadRegex)
	if err != nil {
		return fmt.Errorf("store: actualizando carrier %d: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("carrier %d: %w", c.ID, model.ErrNotFound)
	}
	return nil
}
