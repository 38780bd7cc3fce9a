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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"remitero/internal/config"
	"remitero/internal/geocode"
	"remitero/internal/model"
	"remitero/internal/pipeline"
	"remitero/internal/routing"
	"remitero/internal/store"
)

type fakeAPIStore struct {
	remitos map[string]*model.Remito
	rutas   map[int64]*model.Ruta
	pingErr error
}

func newFakeAPIStore() *fakeAPIStore {
	return &fakeAPIStore{remitos: map[string]*model.Remito{}, rutas: map[int64]*model.Ruta{}}
}

func (f *fakeAPIStore) GetRemitoByNumero(_ context.Context, numero string) (*model.Remito, error) {
	if r, ok := f.remitos[numero]; ok {
		return r, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakeAPIStore) ListRemitos(context.Context, string, string) ([]model.Remito, error) {
	var out []model.Remito
	for _, r := range f.remitos {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeAPIStore) PatchRemito(_ context.Context, numero string, p store.RemitoPatch) (*model.Remito, error) {
	r, ok := f.remitos[numero]
	if !ok {
		return nil, model.ErrNotFound
	}
	if p.Cliente != nil {
		r.Cliente = *p.Cliente
	}
	return r, nil
}

func (f *fakeAPIStore) AdvanceLifecycle(_ context.Context, numero string, next model.Lifecycle) (*model.Remito, error) {
	r, ok := f.remitos[numero]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !r.EstadoLifecycle.CanAdvanceTo(next) {
		return nil, model.ErrInvalidTransition
	}
	r.EstadoLifecycle = next
	return r, nil
}

func (f *fakeAPIStore) MarkEntregados(_ context.Context, ids []int64) ([]int64, error) {
	return ids, nil
}

func (f *fakeAPIStore) DeliveredRemitos(context.Context) ([]model.Remito, error) {
	var out []model.Remito
	for _, r := range f.remitos {
		if r.EstadoLifecycle == model.LifecycleEntregado {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeAPIStore) MoveToHistorico(_ context.Context, ids []int64, _ string) (int, error) {
	return len(ids), nil
}

func (f *fakeAPIStore) RestaurarHistorico(context.Context, int64) (*model.Remito, error) {
	return nil, model.ErrNotFound
}

func (f *fakeAPIStore) ListHistorico(context.Context, string) ([]model.HistoricoEntregado, error) {
	return nil, nil
}

func (f *fakeAPIStore) GetRuta(_ context.Context, id int64) (*model.Ruta, error) {
	if r, ok := f.rutas[id]; ok {
		return r, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakeAPIStore) GetUltimaRuta(context.Context) (*model.Ruta, error) {
	return nil, model.ErrNotFound
}

func (f *fakeAPIStore) ListRutas(context.Context, int) ([]model.Ruta, error) { return nil, nil }

func (f *fakeAPIStore) UpdateRutaEstado(_ context.Context, id int64, estado model.RutaEstado) error {
	r, ok := f.rutas[id]
	if !ok {
		return model.ErrNotFound
	}
	r.Estado = estado
	return nil
}

func (f *fakeAPIStore) UpdateParadaEstado(context.Context, int64, int, model.ParadaEstado) error {
	return nil
}

func (f *fakeAPIStore) ListCarriers(context.Context) ([]model.Carrier, error) { return nil, nil }
func (f *fakeAPIStore) CreateCarrier(_ context.Context, c *model.Carrier) error {
	c.ID = 1
	return nil
}
func (f *fakeAPIStore) UpdateCarrier(context.Context, *model.Carrier) error { return nil }

func (f *fakeAPIStore) GeoCacheStats(context.Context) (map[string]int, error) {
	return map[string]int{"ors": 3}, nil
}
func (f *fakeAPIStore) PurgeExpiredGeo(context.Context) (int64, error) { return 2, nil }

func (f *fakeAPIStore) BillingResumen(context.Context, time.Time, time.Time) ([]store.BillingResumenRow, error) {
	return []store.BillingResumenRow{{Service: "geocode", SKU: "google", Llamadas: 4}}, nil
}

func (f *fakeAPIStore) TracesByRun(_ context.Context, runID string) ([]model.BillingTrace, error) {
	return []model.BillingTrace{{RunID: runID, Service: "ors", SKU: "geocode"}}, nil
}

func (f *fakeAPIStore) Ping() error { return f.pingErr }

type fakePipeline struct {
	ingestRes *pipeline.IngestResult
}

func (f *fakePipeline) Run(context.Context) (*pipeline.RunResult, error) {
	return &pipeline.RunResult{RunID: "run-1", Total: 0, PorEstado: map[model.Clasificacion]int{}}, nil
}
func (f *fakePipeline) Reprocess(context.Context, int64) (*model.Remito, error) {
	return nil, model.ErrNotFound
}
func (f *fakePipeline) Ingest(context.Context, []pipeline.IngestItem) (*pipeline.IngestResult, error) {
	if f.ingestRes != nil {
		return f.ingestRes, nil
	}
	return &pipeline.IngestResult{Total: 1, Nuevos: 1}, nil
}
func (f *fakePipeline) SyncPedidos(_ context.Context, items []pipeline.PedidoItem) (int, error) {
	return len(items), nil
}
func (f *fakePipeline) CorregirDireccion(context.Context, int64, string) error { return nil }
func (f *fakePipeline) OverrideClasificacion(_ context.Context, _ int64, estado model.Clasificacion, _ string) error {
	switch estado {
	case model.ClasifEnviar, model.ClasifExcluido:
		return nil
	}
	return model.ErrValidation
}

type fakeGenerator struct {
	ruta *model.Ruta
	err  error
}

func (f *fakeGenerator) Generate(context.Context, config.Override) (*model.Ruta, error) {
	return f.ruta, f.err
}

type fakeAPIGeocoder struct{ res *geocode.Result }

func (f *fakeAPIGeocoder) Geocode(context.Context, string, string, string) (*geocode.Result, error) {
	return f.res, nil
}

type fakeConfigService struct{ cfg config.RouteConfig }

func (f *fakeConfigService) Get(context.Context) (config.RouteConfig, error) { return f.cfg, nil }
func (f *fakeConfigService) Set(_ context.Context, key, value, tipo string) error {
	_, err := f.cfg.Merge(config.Override{key: value})
	return err
}

func newTestServer(st *fakeAPIStore, gen *fakeGenerator) *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	if gen == nil {
		gen = &fakeGenerator{err: routing.ErrSinCandidatos}
	}
	return NewServer(st, &fakePipeline{}, gen, &fakeAPIGeocoder{},
		&fakeConfigService{cfg: config.DefaultRouteConfig()}, log)
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(newFakeAPIStore(), nil)
	rec := do(t, s.Router(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetRemitoNotFound(t *testing.T) {
	s := newTestServer(newFakeAPIStore(), nil)
	rec := do(t, s.Router(), http.MethodGet, "/api/v1/remitos/R-404", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestQRScanAdvancesAndRepeats(t *testing.T) {
	st := newFakeAPIStore()
	st.remitos["R-1"] = &model.Remito{ID: 1, Numero: "R-1", EstadoLifecycle: model.LifecycleIngresado}
	s := newTestServer(st, nil)
	router := s.Router()

	rec := do(t, router, http.MethodPost, "/api/v1/qr/scan", map[string]string{"numero": "r-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if st.remitos["R-1"].EstadoLifecycle != model.LifecycleArmado {
		t.Fatalf("lifecycle = %s", st.remitos["R-1"].EstadoLifecycle)
	}

	// A rescan is idempotent.
	rec = do(t, router, http.MethodPost, "/api/v1/qr/scan", map[string]string{"numero": "R-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rescan status = %d", rec.Code)
	}
}

func TestQRScanBackwardsIsConflict(t *testing.T) {
	st := newFakeAPIStore()
	st.remitos["R-2"] = &model.Remito{ID: 2, Numero: "R-2", EstadoLifecycle: model.LifecycleEntregado}
	s := newTestServer(st, nil)

	rec := do(t, s.Router(), http.MethodPost, "/api/v1/qr/scan", map[string]string{"numero": "R-2"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestQRScanMissingNumero(t *testing.T) {
	s := newTestServer(newFakeAPIStore(), nil)
	rec := do(t, s.Router(), http.MethodPost, "/api/v1/qr/scan", map[string]string{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerarRutaSinCandidatos(t *testing.T) {
	s := newTestServer(newFakeAPIStore(), &fakeGenerator{err: routing.ErrSinCandidatos})
	rec := do(t, s.Router(), http.MethodPost, "/api/v1/rutas/generar", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerarRutaOK(t *testing.T) {
	dur := 90
	s := newTestServer(newFakeAPIStore(), &fakeGenerator{ruta: &model.Ruta{
		ID: 7, Estado: model.RutaGenerada, DuracionEstimadaMin: &dur,
	}})
	rec := do(t, s.Router(), http.MethodPost, "/api/v1/rutas/generar",
		map[string]interface{}{"override": map[string]string{"max_remitos_ruta": "10"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var got model.Ruta
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != 7 {
		t.Fatalf("id = %d", got.ID)
	}
}

func TestRutaEstadoInvalid(t *testing.T) {
	st := newFakeAPIStore()
	st.rutas[1] = &model.Ruta{ID: 1, Estado: model.RutaGenerada}
	s := newTestServer(st, nil)

	rec := do(t, s.Router(), http.MethodPatch, "/api/v1/rutas/1/estado",
		map[string]string{"estado": "volando"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = do(t, s.Router(), http.MethodPatch, "/api/v1/rutas/1/estado",
		map[string]string{"estado": "en_curso"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if st.rutas[1].Estado != model.RutaEnCurso {
		t.Fatalf("estado = %s", st.rutas[1].Estado)
	}
}

func TestEntregados(t *testing.T) {
	s := newTestServer(newFakeAPIStore(), nil)
	rec := do(t, s.Router(), http.MethodPost, "/api/v1/entregados",
		map[string]interface{}{"remito_ids": []int64{1, 2, 3}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 3 {
		t.Fatalf("total = %d", got.Total)
	}
}

func TestListEntregados(t *testing.T) {
	st := newFakeAPIStore()
	st.remitos["R-9"] = &model.Remito{ID: 9, Numero: "R-9", EstadoLifecycle: model.LifecycleEntregado}
	st.remitos["R-10"] = &model.Remito{ID: 10, Numero: "R-10", EstadoLifecycle: model.LifecycleArmado}
	s := newTestServer(st, nil)

	rec := do(t, s.Router(), http.MethodGet, "/api/v1/entregados", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []model.Remito
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Numero != "R-9" {
		t.Fatalf("entregados = %+v", got)
	}
}

func TestBillingTrazas(t *testing.T) {
	s := newTestServer(newFakeAPIStore(), nil)
	rec := do(t, s.Router(), http.MethodGet, "/api/v1/billing/trazas/run-42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []model.BillingTrace
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].RunID != "run-42" {
		t.Fatalf("trazas = %+v", got)
	}
}

func TestIngestAcceptsNumeros(t *testing.T) {
	st := newFakeAPIStore()
	s := newTestServer(st, nil)
	rec := do(t, s.Router(), http.MethodPost, "/api/v1/remitos/ingest",
		map[string]interface{}{"numeros": []string{"r-20"}, "source": "scanner"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
}

func TestBadJSONIs400(t *testing.T) {
	s := newTestServer(newFakeAPIStore(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/qr/scan", bytes.NewBufferString("{no es json"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGeocodeValidarMissingParam(t *testing.T) {
	s := newTestServer(newFakeAPIStore(), nil)
	rec := do(t, s.Router(), http.MethodGet, "/api/v1/geocode/validar", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
