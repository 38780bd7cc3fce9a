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
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"remitero/internal/model"
)

// remitoCols is the column list shared by every remito SELECT.
const remitoCols = `id, numero, cliente, direccion_raw, direccion_normalizada, localidad,
	provincia, telefono, observaciones, observaciones_entrega, carrier_id,
	estado_clasificacion, motivo_clasificacion, estado_lifecycle, lat, lng,
	geocode_formatted, geocode_provider, geocode_score, geocode_has_street_num,
	ventana_tipo, ventana_desde_min, ventana_hasta_min, ventana_raw, llamar_antes,
	es_urgente, es_prioridad, source, motivo_exclusion_ruta, transp_json,
	fecha_ingreso, fecha_armado, fecha_entregado, fecha_historico, created_at, updated_at`

// InsertRemito creates one remito. A duplicate numero (active or archived)
// yields model.ErrConflict.
func (s *Store) InsertRemito(ctx context.Context, r *model.Remito) error {
	var archived int
	if err := s.db.GetContext(ctx, &archived,
		`SELECT COUNT(*) FROM historico_entregados WHERE numero = $1`, r.Numero); err != nil {
		return fmt.Errorf("store: verificando historico: %w", err)
	}
	if archived > 0 {
		return fmt.Errorf("numero %s ya archivado: %w", r.Numero, model.ErrConflict)
	}

	if r.TranspJSON == nil {
		r.TranspJSON = []byte("{}")
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO remitos (numero, cliente, direccion_raw, direccion_normalizada,
			localidad, provincia, telefono, observaciones, estado_clasificacion,
			estado_lifecycle, es_urgente, es_prioridad, source, transp_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (numero) DO NOTHING
		RETURNING id, created_at, updated_at`,
		r.Numero, r.Cliente, r.DireccionRaw, r.DireccionNormalizada,
		r.Localidad, r.Provincia, r.Telefono, r.Observaciones,
		string(model.ClasifPendiente), string(model.LifecycleIngresado),
		r.EsUrgente, r.EsPrioridad, r.Source, r.TranspJSON,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if isNoRows(err) {
		return fmt.Errorf("numero %s duplicado: %w", r.Numero, model.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("store: insertando remito: %w", err)
	}
	r.EstadoClasificacion = model.ClasifPendiente
	r.EstadoLifecycle = model.LifecycleIngresado
	return nil
}

// GetRemitoByNumero fetches one remito by its normalized number.
func (s *Store) GetRemitoByNumero(ctx context.Context, numero string) (*model.Remito, error) {
	var r model.Remito
	err := s.db.GetContext(ctx, &r,
		`SELECT `+remitoCols+` FROM remitos WHERE numero = $1`, numero)
	if isNoRows(err) {
		return nil, fmt.Errorf("remito %s: %w", numero, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo remito: %w", err)
	}
	return &r, nil
}

// GetRemito fetches one remito by id.
func (s *Store) GetRemito(ctx context.Context, id int64) (*model.Remito, error) {
	var r model.Remito
	err := s.db.GetContext(ctx, &r,
		`SELECT `+remitoCols+` FROM remitos WHERE id = $1`, id)
	if isNoRows(err) {
		return nil, fmt.Errorf("remito %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo remito: %w", err)
	}
	return &r, nil
}

// ListRemitos returns remitos filtered by classification and/or lifecycle;
// empty filters list everything, newest first.
func (s *Store) ListRemitos(ctx context.Context, clasif, lifecycle string) ([]model.Remito, error) {
	query := `SELECT ` + remitoCols + ` FROM remitos`
	var conds []string
	var args []interface{}
	if clasif != "" {
		args = append(args, clasif)
		conds = append(conds, fmt.Sprintf("estado_clasificacion = $%d", len(args)))
	}
	if lifecycle != "" {
		args = append(args, lifecycle)
		conds = append(conds, fmt.Sprintf("estado_lifecycle = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY fecha_ingreso DESC"

	var out []model.Remito
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("store: listando remitos: %w", err)
	}
	return out, nil
}

// RouteCandidates returns remitos classified enviar, lifecycle armado, with
// coordinates: the input of the route builder.
func (s *Store) RouteCandidates(ctx context.Context) ([]model.Remito, error) {
	var out []model.Remito
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+remitoCols+` FROM remitos
		WHERE estado_clasificacion = $1 AND estado_lifecycle = $2
		  AND lat IS NOT NULL AND lng IS NOT NULL
		ORDER BY id`,
		string(model.ClasifEnviar), string(model.LifecycleArmado))
	if err != nil {
		return nil, fmt.Errorf("store: leyendo candidatos: %w", err)
	}
	return out, nil
}

// PendingRemitos lists remitos still awaiting classification.
func (s *Store) PendingRemitos(ctx context.Context) ([]model.Remito, error) {
	return s.ListRemitos(ctx, string(model.ClasifPendiente), "")
}

// UpdateRemitoPipeline persists the fields the classification pipeline
// mutates in one statement.
func (s *Store) UpdateRemitoPipeline(ctx context.Context, r *model.Remito) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE remitos SET
			cliente = $2, direccion_raw = $3, direccion_normalizada = $4,
			localidad = $5, provincia = $6, observaciones = $7, carrier_id = $8,
			estado_clasificacion = $9, motivo_clasificacion = $10,
			lat = $11, lng = $12, geocode_formatted = $13, geocode_provider = $14,
			geocode_score = $15, geocode_has_street_num = $16,
			ventana_tipo = $17, ventana_desde_min = $18, ventana_hasta_min = $19,
			ventana_raw = $20, llamar_antes = $21, transp_json = $22,
			updated_at = now()
		WHERE id = $1`,
		r.ID, r.Cliente, r.DireccionRaw, r.DireccionNormalizada,
		r.Localidad, r.Provincia, r.Observaciones, r.CarrierID,
		string(r.EstadoClasificacion), r.MotivoClasificacion,
		r.Lat, r.Lng, r.GeocodeFormatted, r.GeocodeProvider,
		r.GeocodeScore, r.GeocodeHasStreetNum,
		string(r.VentanaTipo), r.VentanaDesdeMin, r.VentanaHastaMin,
		r.VentanaRaw, r.LlamarAntes, r.TranspJSON)
	if err != nil {
		return fmt.Errorf("store: actualizando remito %d: %w", r.ID, err)
	}
	return requireOneRow(res, r.ID)
}

// SetClasificacion overrides the classification of one remito.
func (s *Store) SetClasificacion(ctx context.Context, id int64, estado model.Clasificacion, motivo string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE remitos SET estado_clasificacion = $2, motivo_clasificacion = $3, updated_at = now()
		WHERE id = $1`, id, string(estado), motivo)
	if err != nil {
		return fmt.Errorf("store: clasificando remito %d: %w", id, err)
	}
	return requireOneRow(res, id)
}

// SetDireccion replaces the raw address and resets the remito to pendiente
// so the pipeline reprocesses it.
func (s *Store) SetDireccion(ctx context.Context, id int64, direccion string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE remitos SET direccion_raw = $2, estado_clasificacion = $3,
			motivo_clasificacion = '', lat = NULL, lng = NULL, updated_at = now()
		WHERE id = $1`, id, direccion, string(model.ClasifPendiente))
	if err != nil {
		return fmt.Errorf("store: corrigiendo direccion %d: %w", id, err)
	}
	return requireOneRow(res, id)
}

// RemitoPatch carries the operator-editable attributes; nil fields are left
// untouched.
type RemitoPatch struct {
	Cliente              *string `json:"cliente"`
	Telefono             *string `json:"telefono"`
	Observaciones        *string `json:"observaciones"`
	ObservacionesEntrega *string `json:"observaciones_entrega"`
	EsUrgente            *bool   `json:"es_urgente"`
	EsPrioridad          *bool   `json:"es_prioridad"`
}

// PatchRemito applies a partial update and returns the fresh row.
func (s *Store) PatchRemito(ctx context.Context, numero string, p RemitoPatch) (*model.Remito, error) {
	var r model.Remito
	err := s.db.QueryRowxContext(ctx, `
		UPDATE remitos SET
			cliente = COALESCE($2, cliente),
			telefono = COALESCE($3, telefono),
			observaciones = COALESCE($4, observaciones),
			observaciones_entrega = COALESCE($5, observaciones_entrega),
			es_urgente = COALESCE($6, es_urgente),
			es_prioridad = COALESCE($7, es_prioridad),
			updated_at = now()
		WHERE numero = $1
		RETURNING `+remitoCols,
		numero, p.Cliente, p.Telefono, p.Observaciones,
		p.ObservacionesEntrega, p.EsUrgente, p.EsPrioridad,
	).StructScan(&r)
	if isNoRows(err) {
		return nil, fmt.Errorf("remito %s: %w", numero, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: parcheando remito %s: %w", numero, err)
	}
	return &r, nil
}

// AdvanceLifecycle moves one remito to next, enforcing monotonicity inside a
// transaction. Reaching the same stage again is a no-op, not an error.
func (s *Store) AdvanceLifecycle(ctx context.Context, numero string, next model.Lifecycle) (*model.Remito, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: iniciando tx: %w", err)
	}
	defer tx.Rollback()

	var r model.Remito
	err = tx.GetContext(ctx, &r,
		`SELECT `+remitoCols+` FROM remitos WHERE numero = $1 FOR UPDATE`, numero)
	if isNoRows(err) {
		return nil, fmt.Errorf("remito %s: %w", numero, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo remito: %w", err)
	}

	if r.EstadoLifecycle == next {
		return &r, nil // idempotent repeat
	}
	if !r.EstadoLifecycle.CanAdvanceTo(next) || next.Rank() < r.EstadoLifecycle.Rank() {
		return nil, fmt.Errorf("remito %s: %s -> %s: %w",
			numero, r.EstadoLifecycle, next, model.ErrInvalidTransition)
	}

	stamp := lifecycleStampColumn(next)
	query := `UPDATE remitos SET estado_lifecycle = $2, updated_at = now()`
	if stamp != "" {
		query += `, ` + stamp + ` = now()`
	}
	query += ` WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, r.ID, string(next)); err != nil {
		return nil, fmt.Errorf("store: avanzando lifecycle: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit lifecycle: %w", err)
	}
	r.EstadoLifecycle = next
	now := time.Now().UTC()
	switch next {
	case model.LifecycleArmado:
		r.FechaArmado = &now
	case model.LifecycleEntregado:
		r.FechaEntregado = &now
	case model.LifecycleHistorico:
		r.FechaHistorico = &now
	}
	return &r, nil
}

func lifecycleStampColumn(l model.Lifecycle) string {
	switch l {
	case model.LifecycleArmado:
		return "fecha_armado"
	case model.LifecycleEntregado:
		return "fecha_entregado"
	case model.LifecycleHistorico:
		return "fecha_historico"
	}
	return ""
}

// MarkEntregados advances the given ids to entregado, skipping ids whose
// lifecycle would move backwards. It returns the ids actually updated.
func (s *Store) MarkEntregados(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := s.db.QueryxContext(ctx, `
		UPDATE remitos SET estado_lifecycle = $2, fecha_entregado = now(), updated_at = now()
		WHERE id = ANY($1)
		  AND estado_lifecycle IN ($3, $4, $5)
		RETURNING id`,
		pq.Array(ids), string(model.LifecycleEntregado),
		string(model.LifecycleArmado), string(model.LifecycleDespachado), string(model.LifecycleEntregado))
	if err != nil {
		return nil, fmt.Errorf("store: marcando entregados: %w", err)
	}
	defer rows.Close()
	var updated []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

// DeliveredRemitos lists remitos at entregado, awaiting archive.
func (s *Store) DeliveredRemitos(ctx context.Context) ([]model.Remito, error) {
	return s.ListRemitos(ctx, "", string(model.LifecycleEntregado))
}

func requireOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("remito %d: %w", id, model.ErrNotFound)
	}
	return nil
}
