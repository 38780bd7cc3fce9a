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

package routing

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"remitero/internal/config"
	"remitero/internal/geo"
	"remitero/internal/model"
)

type fakeBuilderStore struct {
	candidates []model.Remito
	created    *model.Ruta
	createErr  error
}

func (f *fakeBuilderStore) RouteCandidates(context.Context) ([]model.Remito, error) {
	return f.candidates, nil
}

func (f *fakeBuilderStore) CreateRuta(_ context.Context, r *model.Ruta) error {
	if f.createErr != nil {
		return f.createErr
	}
	r.ID = 1
	f.created = r
	return nil
}

type fakeConfigSource struct {
	cfg config.RouteConfig
}

func (f *fakeConfigSource) Get(context.Context) (config.RouteConfig, error) { return f.cfg, nil }

// haversineMatrix answers every pair with the haversine estimate at 40 km/h,
// which keeps geometry and durations consistent in tests.
type haversineMatrix struct{}

func (haversineMatrix) Durations(_ context.Context, points []geo.Point, _ string) [][]float64 {
	n := len(points)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = geo.EstimateMinutes(points[i], points[j], 40)
			}
		}
	}
	return m
}

func quietBuilderLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func candidato(id int64, numero string, lat, lng float64) model.Remito {
	return model.Remito{
		ID:                   id,
		Numero:               numero,
		Cliente:              "Cliente " + numero,
		DireccionNormalizada: "CALLE " + numero,
		EstadoClasificacion:  model.ClasifEnviar,
		EstadoLifecycle:      model.LifecycleArmado,
		Lat:                  &lat,
		Lng:                  &lng,
		VentanaTipo:          model.VentanaSin,
	}
}

func testBuilder(st *fakeBuilderStore, cfg config.RouteConfig) *Builder {
	return NewBuilder(st, &fakeConfigSource{cfg: cfg}, haversineMatrix{}, quietBuilderLogger())
}

func TestGenerateBuildsRoute(t *testing.T) {
	st := &fakeBuilderStore{candidates: []model.Remito{
		candidato(1, "R-1", -32.90, -68.83),
		candidato(2, "R-2", -32.92, -68.84),
		candidato(3, "R-3", -32.93, -68.85),
	}}
	b := testBuilder(st, config.DefaultRouteConfig())

	ruta, err := b.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ruta.Paradas) != 3 {
		t.Fatalf("want 3 paradas, got %d", len(ruta.Paradas))
	}
	for i, p := range ruta.Paradas {
		if p.Orden != i+1 {
			t.Fatalf("orden[%d] = %d", i, p.Orden)
		}
		if p.MinutosDesdeAnterior <= 0 {
			t.Fatalf("parada %d sin minutos", p.Orden)
		}
	}
	last := ruta.Paradas[len(ruta.Paradas)-1]
	if last.MinutosAcumulados <= ruta.Paradas[0].MinutosAcumulados {
		t.Fatal("minutos acumulados no crecen")
	}
	if ruta.DuracionEstimadaMin == nil || *ruta.DuracionEstimadaMin <= int(last.MinutosAcumulados)-1 {
		t.Fatalf("duración no incluye la vuelta: %v vs %v", ruta.DuracionEstimadaMin, last.MinutosAcumulados)
	}
	if len(ruta.GmapsLinks) == 0 {
		t.Fatal("sin links de navegación")
	}
	if ruta.RutaGeom == nil || !strings.Contains(string(ruta.RutaGeom), "LineString") {
		t.Fatalf("geom inválida: %s", ruta.RutaGeom)
	}
	if st.created == nil {
		t.Fatal("ruta no persistida")
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	b := testBuilder(&fakeBuilderStore{}, config.DefaultRouteConfig())
	_, err := b.Generate(context.Background(), nil)
	if !errors.Is(err, ErrSinCandidatos) {
		t.Fatalf("want ErrSinCandidatos, got %v", err)
	}
}

func TestGenerateAllFilteredPersistsEmptyRoute(t *testing.T) {
	// Every candidate beyond the radius: the route must still be persisted
	// with zero stops and the exclusion records.
	st := &fakeBuilderStore{candidates: []model.Remito{
		candidato(1, "R-LEJOS", -34.6, -58.4),
	}}
	b := testBuilder(st, config.DefaultRouteConfig())

	ruta, err := b.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ruta.Paradas) != 0 {
		t.Fatalf("want 0 paradas, got %d", len(ruta.Paradas))
	}
	if len(ruta.Excluidos) != 1 {
		t.Fatalf("want 1 excluido, got %d", len(ruta.Excluidos))
	}
	if !strings.HasPrefix(ruta.Excluidos[0].Motivo, "distancia_maxima") {
		t.Fatalf("motivo = %q", ruta.Excluidos[0].Motivo)
	}
	if st.created == nil {
		t.Fatal("ruta vacía no persistida")
	}
	if ruta.DuracionEstimadaMin == nil || *ruta.DuracionEstimadaMin != 0 {
		t.Fatalf("duración de ruta vacía: %v", ruta.DuracionEstimadaMin)
	}
}

func TestGenerateDistanceFilter(t *testing.T) {
	far := candidato(2, "R-LEJOS", -34.6, -58.4) // Buenos Aires, way past the radius
	st := &fakeBuilderStore{candidates: []model.Remito{
		candidato(1, "R-1", -32.90, -68.83),
		far,
	}}
	b := testBuilder(st, config.DefaultRouteConfig())

	ruta, err := b.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ruta.Paradas) != 1 {
		t.Fatalf("want 1 parada, got %d", len(ruta.Paradas))
	}
	if len(ruta.Excluidos) != 1 {
		t.Fatalf("want 1 excluido, got %d", len(ruta.Excluidos))
	}
	if !strings.HasPrefix(ruta.Excluidos[0].Motivo, "distancia_maxima") {
		t.Fatalf("motivo = %q", ruta.Excluidos[0].Motivo)
	}
}

func TestGenerateUrgentBypassesDistance(t *testing.T) {
	far := candidato(2, "R-URG", -33.4, -69.0)
	far.EsUrgente = true
	st := &fakeBuilderStore{candidates: []model.Remito{
		candidato(1, "R-1", -32.90, -68.83),
		far,
	}}
	cfg := config.DefaultRouteConfig()
	cfg.DistanciaMaxKm = 5
	cfg.VueltaGalponMin = 10000 // keep the return filter out of this test
	b := testBuilder(st, cfg)

	ruta, err := b.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, e := range ruta.Excluidos {
		if e.RemitoNumero == "R-URG" {
			t.Fatalf("urgente excluido: %q", e.Motivo)
		}
	}
}

func TestGenerateWindowFilter(t *testing.T) {
	pm := candidato(2, "R-PM", -32.92, -68.84)
	desde, hasta := 900, 1080 // 15:00-18:00, outside 09:00-14:00
	pm.VentanaDesdeMin, pm.VentanaHastaMin = &desde, &hasta
	pm.VentanaTipo = model.VentanaPM
	st := &fakeBuilderStore{candidates: []model.Remito{
		candidato(1, "R-1", -32.90, -68.83),
		pm,
	}}
	b := testBuilder(st, config.DefaultRouteConfig())

	ruta, err := b.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ruta.Excluidos) != 1 || ruta.Excluidos[0].Motivo != "ventana_horaria" {
		t.Fatalf("unexpected excluidos: %+v", ruta.Excluidos)
	}
}

func TestGenerateWindowFilterDisabled(t *testing.T) {
	pm := candidato(2, "R-PM", -32.92, -68.84)
	desde, hasta := 900, 1080
	pm.VentanaDesdeMin, pm.VentanaHastaMin = &desde, &hasta
	pm.VentanaTipo = model.VentanaPM
	st := &fakeBuilderStore{candidates: []model.Remito{
		candidato(1, "R-1", -32.90, -68.83),
		pm,
	}}
	b := testBuilder(st, config.DefaultRouteConfig())

	ruta, err := b.Generate(context.Background(), config.Override{"utilizar_ventana": "false"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ruta.Excluidos) != 0 {
		t.Fatalf("unexpected excluidos: %+v", ruta.Excluidos)
	}
}

func TestGenerateMaxRemitosCap(t *testing.T) {
	st := &fakeBuilderStore{candidates: []model.Remito{
		candidato(1, "R-1", -32.90, -68.83),
		candidato(2, "R-2", -32.91, -68.84),
		candidato(3, "R-3", -32.92, -68.85),
	}}
	cfg := config.DefaultRouteConfig()
	cfg.MaxRemitosRuta = 2
	b := testBuilder(st, cfg)

	ruta, err := b.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ruta.Paradas) != 2 {
		t.Fatalf("want 2 paradas, got %d", len(ruta.Paradas))
	}
	if len(ruta.Excluidos) != 1 || ruta.Excluidos[0].Motivo != "max_remitos_ruta" {
		t.Fatalf("unexpected excluidos: %+v", ruta.Excluidos)
	}
}

func TestGenerateInvalidOverride(t *testing.T) {
	st := &fakeBuilderStore{candidates: []model.Remito{candidato(1, "R-1", -32.90, -68.83)}}
	b := testBuilder(st, config.DefaultRouteConfig())

	_, err := b.Generate(context.Background(), config.Override{"distancia_max_km": "mucho"})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}
