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

// UpsertPedidoListo inserts or refreshes one external attribute bag keyed by
// remito number. Repeats replace the payload and bump synced_at.
func (s *Store) UpsertPedidoListo(ctx context.Context, p *model.PedidoListo) error {
	if p.RawData == nil {
		p.RawData = []byte("{}")
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO pedidos_listos (numero_remito, cliente, domicilio, localidad,
			provincia, observaciones, transporte, raw_data, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (numero_remito) DO UPDATE SET
			cliente = EXCLUDED.cliente, domicilio = EXCLUDED.domicilio,
			localidad = EXCLUDED.localidad, provincia = EXCLUDED.provincia,
			observaciones = EXCLUDED.observaciones, transporte = EXCLUDED.transporte,
			raw_data = EXCLUDED.raw_data, synced_at = now()
		RETURNING id, synced_at, created_at`,
		p.NumeroRemito, p.Cliente, p.Domicilio, p.Localidad,
		p.Provincia, p.Observaciones, p.Transporte, p.RawData,
	).Scan(&p.ID, &p.SyncedAt, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert pedido_listo %s: %w", p.NumeroRemito, err)
	}
	return nil
}

// PedidoListoByNumero fetches the attribute bag for one remito number.
func (s *Store) PedidoListoByNumero(ctx context.Context, numero string) (*model.PedidoListo, error) {
	var p model.PedidoListo
	err := s.db.GetContext(ctx, &p, `
		SELECT id, remito_id, numero_remito, cliente, domicilio, localidad,
			provincia, observaciones, transporte, raw_data, synced_at, created_at
		FROM pedidos_listos WHERE numero_remito = $1`, numero)
	if isNoRows(err) {
		return nil, fmt.Errorf("pedido_listo %s: %w", numero, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: leyendo pedido_listo: %w", err)
	}
	return &p, nil
}

// LinkPedidoListo ties one synced bag to the remito it enriched.
func (s *Store) LinkPedidoListo(ctx context.Context, pedidoID, remitoID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pedidos_listos SET remito_id = $2 WHERE id = $1`, pedidoID, remitoID)
	if err != nil {
		return fmt.Errorf("store: enlazando pedido_listo %d: %w", pedidoID, err)
	}
	return nil
}
