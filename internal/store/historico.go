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
	"time"

	"github.com/lib/pq"

	"remitero/internal/model"
)

const historicoCols = `id, remito_id, numero, cliente, direccion_snapshot,
	localidad, provincia, observaciones, obs_entrega, lat, lng, carrier_nombre,
	es_urgente, es_prioridad, estado_al_archivar, transp_json, fecha_ingreso,
	fecha_armado, fecha_entregado, fecha_archivado, mes_cierre, created_at`

// MoveToHistorico archives delivered remitos: each one is snapshotted into
// historico_entregados and removed from the active table, atomically. Remitos
// not at entregado are skipped. Returns how many were archived.
func (s *Store) MoveToHistorico(ctx context.Context, ids []int64, mesCierre string) (int, error) {
	if mesCierre == "" {
		mesCierre = time.Now().UTC().Format("2006-01")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: iniciando tx historico: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO historico_entregados (remito_id, numero, cliente,
			direccion_snapshot, localidad, provincia, observaciones, obs_entrega,
			lat, lng, carrier_nombre, es_urgente, es_prioridad, estado_al_archivar,
			transp_json, fecha_ingreso, fecha_armado, fecha_entregado, mes_cierre)
		SELECT r.id, r.numero, r.cliente,
			COALESCE(NULLIF(r.direccion_normalizada, ''), r.direccion_raw),
			r.localidad, r.provincia, r.observaciones, r.observaciones_entrega,
			r.lat, r.lng, COALESCE(c.nombre_canonico, ''), r.es_urgente,
			r.es_prioridad, r.estado_clasificacion, r.transp_json,
			r.fecha_ingreso, r.fecha_armado, COALESCE(r.fecha_entregado, now()), $2
		FROM remitos r
		LEFT JOIN carriers c ON c.id = r.carrier_id
		WHERE r.id = ANY($1) AND r.estado_lifecycle = $3`,
		pq.Array(ids), mesCierre, string(model.LifecycleEntregado))
	if err != nil {
		return 0, fmt.Errorf("store: archivando remitos: %w", err)
	}
	archived, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if archived > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM remitos WHERE id = ANY($1) AND estado_lifecycle = $2`,
			pq.Array(ids), string(model.LifecycleEntregado)); err != nil {
			return 0, fmt.Errorf("store: removiendo archivados: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit historico: %w", err)
	}
	return int(archived), nil
}

// RestaurarHistorico brings one archived remito back to the active table at
// entregado, preserving its snapshot. The archive row is removed.
func (s *Store) RestaurarHistorico(ctx context.Context, historicoID int64) (*model.Remito, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: iniciando tx restaurar: %w", err)
	}
	defer tx.Rollback()

	var h model.HistoricoEntregado
	err = tx.GetContext(ctx, &h,
		`SELECT `+historicoCols+` FROM historico_entregados WHERE id = $1 FOR UPDATE`, historicoID)
	if isNoRows(err) {
		return nil, fmt.Errorf("historico %d: %w", historicoID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo historico: %w", err)
	}

	var exists int
	if err := tx.GetContext(ctx, &exists,
		`SELECT COUNT(*) FROM remitos WHERE numero = $1`, h.Numero); err != nil {
		return nil, fmt.Errorf("store: verificando numero activo: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("numero %s ya activo: %w", h.Numero, model.ErrConflict)
	}

	if h.TranspJSON == nil {
		h.TranspJSON = []byte("{}")
	}
	var r model.Remito
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO remitos (numero, cliente, direccion_raw, localidad, provincia,
			observaciones, observaciones_entrega, estado_clasificacion,
			estado_lifecycle, lat, lng, es_urgente, es_prioridad, transp_json,
			fecha_ingreso, fecha_armado, fecha_entregado)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			COALESCE($15, now()), $16, $17)
		RETURNING `+remitoCols,
		h.Numero, h.Cliente, h.DireccionSnapshot, h.Localidad, h.Provincia,
		h.Observaciones, h.ObsEntrega, h.EstadoAlArchivar,
		string(model.LifecycleEntregado), h.Lat, h.Lng, h.EsUrgente,
		h.EsPrioridad, h.TranspJSON, h.FechaIngreso, h.FechaArmado, h.FechaEntregado,
	).StructScan(&r)
	if err != nil {
		return nil, fmt.Errorf("store: restaurando remito %s: %w", h.Numero, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM historico_entregados WHERE id = $1`, historicoID); err != nil {
		return nil, fmt.Errorf("store: removiendo historico %d: %w", historicoID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit restaurar: %w", err)
	}
	return &r, nil
}

// ListHistorico returns archive rows, optionally filtered by mes_cierre
// (YYYY-MM), newest first.
func (s *Store) ListHistorico(ctx context.Context, mesCierre string) ([]model.HistoricoEntregado, error) {
	var out []model.HistoricoEntregado
	var err error
	if mesCierre != "" {
		err = s.db.SelectContext(ctx, &out, `
			SELECT `+historicoCols+` FROM historico_entregados
			WHERE mes_cierre = $1 ORDER BY fecha_archivado DESC`, mesCierre)
	} else {
		err = s.db.SelectContext(ctx, &out, `
			SELECT `+historicoCols+` FROM historico_entregados
			ORDER BY fecha_archivado DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("store: listando historico: %w", err)
	}
	return out, nil
}
