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

	"remitero/internal/model"
)

// InsertTrace appends one billing trace row.
func (s *Store) InsertTrace(ctx context.Context, t *model.BillingTrace) error {
	if t.Metadata == nil {
		t.Metadata = []byte("{}")
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO billing_trace (run_id, stage, service, sku, units,
			response_code, latency_ms, estimated_cost, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		t.RunID, t.Stage, t.Service, t.SKU, t.Units,
		t.ResponseCode, t.LatencyMs, t.EstimatedCost, t.Metadata, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("store: guardando billing_trace: %w", err)
	}
	return nil
}

// BillingResumenRow aggregates traces per service and sku over a period.
type BillingResumenRow struct {
	Service       string  `db:"service" json:"service"`
	SKU           string  `db:"sku" json:"sku"`
	Llamadas      int     `db:"llamadas" json:"llamadas"`
	Unidades      int     `db:"unidades" json:"unidades"`
	CostoEstimado float64 `db:"costo_estimado" json:"costo_estimado"`
}

// BillingResumen aggregates traces created in [desde, hasta).
func (s *Store) BillingResumen(ctx context.Context, desde, hasta time.Time) ([]BillingResumenRow, error) {
	var out []BillingResumenRow
	err := s.db.SelectContext(ctx, &out, `
		SELECT service, sku,
			COUNT(*) AS llamadas,
			COALESCE(SUM(units), 0) AS unidades,
			COALESCE(SUM(estimated_cost), 0) AS costo_estimado
		FROM billing_trace
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY service, sku
		ORDER BY costo_estimado DESC`, desde, hasta)
	if err != nil {
		return nil, fmt.Errorf("store: resumiendo billing_trace: %w", err)
	}
	return out, nil
}

// TracesByRun lists the traces of one pipeline or route run, oldest first.
func (s *Store) TracesByRun(ctx context.Context, runID string) ([]model.BillingTrace, error) {
	var out []model.BillingTrace
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, run_id, stage, service, sku, units, response_code,
			latency_ms, estimated_cost, metadata, created_at
		FROM billing_trace WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: leyendo billing_trace: %w", err)
	}
	return out, nil
}
