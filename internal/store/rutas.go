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

const rutaCols = `id, fecha, estado, config_snapshot, deposito_lat, deposito_lng,
	total_paradas, total_excluidos, duracion_estimada_min, distancia_total_km,
	gmaps_links, ruta_geom, created_at, updated_at, completed_at`

const paradaCols = `id, ruta_id, remito_id, remito_numero, orden, lat_snapshot,
	lng_snapshot, cliente_snapshot, direccion_snapshot, observaciones_snapshot,
	minutos_desde_anterior, tiempo_espera_min, minutos_acumulados,
	distancia_desde_anterior_km, es_urgente, es_prioridad, ventana_tipo,
	estado, created_at, updated_at`

// CreateRuta persists the route with its stops and exclusions in one
// transaction: either the whole route lands or nothing does.
func (s *Store) CreateRuta(ctx context.Context, r *model.Ruta) error {
	if r.ConfigSnapshot == nil {
		r.ConfigSnapshot = []byte("{}")
	}
	if r.GmapsLinks == nil {
		r.GmapsLinks = model.JSONList{}
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: iniciando tx ruta: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO rutas (fecha, estado, config_snapshot, deposito_lat,
			deposito_lng, total_paradas, total_excluidos, duracion_estimada_min,
			distancia_total_km, gmaps_links, ruta_geom)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		r.Fecha, string(r.Estado), r.ConfigSnapshot, r.DepositoLat,
		r.DepositoLng, len(r.Paradas), len(r.Excluidos), r.DuracionEstimadaMin,
		r.DistanciaTotalKm, r.GmapsLinks, r.RutaGeom,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: insertando ruta: %w", err)
	}
	r.TotalParadas = len(r.Paradas)
	r.TotalExcluidos = len(r.Excluidos)

	for i := range r.Paradas {
		p := &r.Paradas[i]
		p.RutaID = r.ID
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO ruta_paradas (ruta_id, remito_id, remito_numero, orden,
				lat_snapshot, lng_snapshot, cliente_snapshot, direccion_snapshot,
				observaciones_snapshot, minutos_desde_anterior, tiempo_espera_min,
				minutos_acumulados, distancia_desde_anterior_km, es_urgente,
				es_prioridad, ventana_tipo, estado)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING id, created_at, updated_at`,
			p.RutaID, p.RemitoID, p.RemitoNumero, p.Orden,
			p.LatSnapshot, p.LngSnapshot, p.ClienteSnapshot, p.DireccionSnapshot,
			p.ObservacionesSnapshot, p.MinutosDesdeAnterior, p.TiempoEsperaMin,
			p.MinutosAcumulados, p.DistanciaDesdeAnteriorKm, p.EsUrgente,
			p.EsPrioridad, string(p.VentanaTipo), string(model.ParadaPendiente),
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("store: insertando parada %d: %w", p.Orden, err)
		}
		p.Estado = model.ParadaPendiente
	}

	for i := range r.Excluidos {
		e := &r.Excluidos[i]
		e.RutaID = r.ID
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO ruta_excluidos (ruta_id, remito_id, remito_numero,
				cliente_snapshot, direccion_snapshot, observaciones_snapshot, motivo)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			e.RutaID, e.RemitoID, e.RemitoNumero,
			e.ClienteSnapshot, e.DireccionSnapshot, e.ObservacionesSnapshot, e.Motivo,
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return fmt.Errorf("store: insertando excluido %s: %w", e.RemitoNumero, err)
		}
		// The excluded remito keeps the reason so operators see it on the board.
		if _, err := tx.ExecContext(ctx,
			`UPDATE remitos SET motivo_exclusion_ruta = $2, updated_at = now() WHERE id = $1`,
			e.RemitoID, e.Motivo); err != nil {
			return fmt.Errorf("store: marcando exclusion %s: %w", e.RemitoNumero, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit ruta: %w", err)
	}
	return nil
}

// GetRuta loads one route with its stops and exclusions.
func (s *Store) GetRuta(ctx context.Context, id int64) (*model.Ruta, error) {
	var r model.Ruta
	err := s.db.GetContext(ctx, &r,
		`SELECT `+rutaCols+` FROM rutas WHERE id = $1`, id)
	if isNoRows(err) {
		return nil, fmt.Errorf("ruta %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo ruta: %w", err)
	}
	if err := s.loadRutaChildren(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetUltimaRuta loads the most recently generated route.
func (s *Store) GetUltimaRuta(ctx context.Context) (*model.Ruta, error) {
	var r model.Ruta
	err := s.db.GetContext(ctx, &r,
		`SELECT `+rutaCols+` FROM rutas ORDER BY id DESC LIMIT 1`)
	if isNoRows(err) {
		return nil, fmt.Errorf("ultima ruta: %w", model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo ultima ruta: %w", err)
	}
	if err := s.loadRutaChildren(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) loadRutaChildren(ctx context.Context, r *model.Ruta) error {
	if err := s.db.SelectContext(ctx, &r.Paradas,
		`SELECT `+paradaCols+` FROM ruta_paradas WHERE ruta_id = $1 ORDER BY orden`, r.ID); err != nil {
		return fmt.Errorf("store: leyendo paradas: %w", err)
	}
	if err := s.db.SelectContext(ctx, &r.Excluidos, `
		SELECT id, ruta_id, remito_id, remito_numero, cliente_snapshot,
			direccion_snapshot, observaciones_snapshot, motivo, created_at
		FROM ruta_excluidos WHERE ruta_id = $1 ORDER BY id`, r.ID); err != nil {
		return fmt.Errorf("store: leyendo excluidos: %w", err)
	}
	return nil
}

// ListRutas returns route headers (no children), newest first.
func (s *Store) ListRutas(ctx context.Context, limit int) ([]model.Ruta, error) {
	if limit <= 0 {
		limit = 30
	}
	var out []model.Ruta
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+rutaCols+` FROM rutas ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: listando rutas: %w", err)
	}
	return out, nil
}

// UpdateRutaEstado moves one route to a new status, stamping completed_at on
// terminal states.
func (s *Store) UpdateRutaEstado(ctx context.Context, id int64, estado model.RutaEstado) error {
	query := `UPDATE rutas SET estado = $2, updated_at = now()`
	if estado == model.RutaCompletada || estado == model.RutaCancelada {
		query += `, completed_at = now()`
	}
	query += ` WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, string(estado))
	if err != nil {
		return fmt.Errorf("store: actualizando ruta %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ruta %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// UpdateParadaEstado moves one stop to a new execution state.
func (s *Store) UpdateParadaEstado(ctx context.Context, rutaID int64, orden int, estado model.ParadaEstado) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ruta_paradas SET estado = $3, updated_at = now()
		WHERE ruta_id = $1 AND orden = $2`, rutaID, orden, string(estado))
	if err != nil {
		return fmt.Errorf("store: actualizando parada %d/%d: %w", rutaID, orden, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("parada %d/%d: %w", rutaID, orden, model.ErrNotFound)
	}
	return nil
}
