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

package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"remitero/internal/model"
)

func TestFromEntries(t *testing.T) {
	entries := []model.ConfigEntry{
		{Key: "tiempo_espera_min", Value: "15", Tipo: "int"},
		{Key: "utilizar_ventana", Value: "false", Tipo: "bool"},
		{Key: "distancia_max_km", Value: "50.5", Tipo: "float"},
		{Key: "hora_desde", Value: "08:30", Tipo: "str"},
		{Key: "clave_desconocida", Value: "x", Tipo: "str"},
	}
	cfg, err := FromEntries(entries)
	require.NoError(t, err)
	require.Equal(t, float64(15), cfg.TiempoEsperaMin)
	require.False(t, cfg.UtilizarVentana)
	require.Equal(t, 50.5, cfg.DistanciaMaxKm)
	require.Equal(t, "08:30", cfg.HoraDesde)
	// Untouched keys keep their defaults.
	require.Equal(t, 40, cfg.MaxRemitosRuta)
	require.Equal(t, "ors", cfg.ProveedorMatrix)
}

func TestFromEntriesMalformed(t *testing.T) {
	_, err := FromEntries([]model.ConfigEntry{{Key: "dm_block_size", Value: "diez"}})
	require.Error(t, err, "malformed row must fail")
}

func TestMergeOverride(t *testing.T) {
	cfg := DefaultRouteConfig()
	out, err := cfg.Merge(Override{"evitar_saltos_min": "30", "proveedor_matrix": "osrm"})
	require.NoError(t, err)
	require.Equal(t, float64(30), out.EvitarSaltosMin)
	require.Equal(t, "osrm", out.ProveedorMatrix)
	// Original untouched.
	require.Equal(t, float64(25), cfg.EvitarSaltosMin, "merge must not mutate the receiver")

	_, err = cfg.Merge(Override{"deposito_lat": "no-es-numero"})
	require.Error(t, err, "bad override must fail")
}

type fakeEntryStore struct {
	entries []model.ConfigEntry
	lists   int
	setErr  error
}

func (f *fakeEntryStore) ListConfig(context.Context) ([]model.ConfigEntry, error) {
	f.lists++
	return f.entries, nil
}

func (f *fakeEntryStore) SetConfig(_ context.Context, key, value, tipo string) error {
	if f.setErr != nil {
		return f.setErr
	}
	for i := range f.entries {
		if f.entries[i].Key == key {
			f.entries[i].Value = value
			return nil
		}
	}
	f.entries = append(f.entries, model.ConfigEntry{Key: key, Value: value, Tipo: tipo})
	return nil
}

func TestRutaConfigServiceCachesUntilWrite(t *testing.T) {
	store := &fakeEntryStore{entries: []model.ConfigEntry{{Key: "max_remitos_ruta", Value: "20"}}}
	svc := NewRutaConfigService(store)
	ctx := context.Background()

	c1, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 20, c1.MaxRemitosRuta)
	svc.Get(ctx)
	svc.Get(ctx)
	require.Equal(t, 1, store.lists, "cached reads must not hit the store")

	require.NoError(t, svc.Set(ctx, "max_remitos_ruta", "25", "int"))
	c2, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 25, c2.MaxRemitosRuta, "write must invalidate the cache")
	require.Equal(t, 2, store.lists, "expected one re-read after invalidation")
}

func TestRutaConfigServiceSetValidates(t *testing.T) {
	svc := NewRutaConfigService(&fakeEntryStore{})
	err := svc.Set(context.Background(), "deposito_lat", "abc", "float")
	require.ErrorIs(t, err, model.ErrValidation)
}
