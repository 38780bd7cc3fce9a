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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"remitero/internal/billing"
	"remitero/internal/config"
	"remitero/internal/geo"
	"remitero/internal/model"
	"remitero/internal/telemetry"
	"remitero/internal/window"
)

// ErrSinCandidatos means no remito is ready for routing.
var ErrSinCandidatos = errors.New("sin remitos candidatos para la ruta")

// BuilderStore is the persistence surface route generation needs.
type BuilderStore interface {
	RouteCandidates(ctx context.Context) ([]model.Remito, error)
	CreateRuta(ctx context.Context, r *model.Ruta) error
}

// ConfigSource yields the current route configuration.
type ConfigSource interface {
	Get(ctx context.Context) (config.RouteConfig, error)
}

// MatrixSource yields a complete NxN duration matrix in minutes.
type MatrixSource interface {
	Durations(ctx context.Context, points []geo.Point, runID string) [][]float64
}

// Builder turns today's candidates into a persisted, ordered route.
type Builder struct {
	store  BuilderStore
	cfg    ConfigSource
	matrix MatrixSource
	log    *logrus.Logger
}

func NewBuilder(store BuilderStore, cfg ConfigSource, matrix MatrixSource, log *logrus.Logger) *Builder {
	return &Builder{store: store, cfg: cfg, matrix: matrix, log: log}
}

// exclusion pairs a candidate with the filter that dropped it.
type exclusion struct {
	remito model.Remito
	motivo string
}

// Generate builds and persists the route: load config, filter candidates,
// fetch the duration matrix, order the stops, materialize legs and links,
// commit. Overrides adjust the config for this run only.
func (b *Builder) Generate(ctx context.Context, override config.Override) (*model.Ruta, error) {
	cfg, err := b.cfg.Get(ctx)
	if err != nil {
		telemetry.RouteGenerations.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(override) > 0 {
		cfg, err = cfg.Merge(override)
		if err != nil {
			telemetry.RouteGenerations.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
		}
	}

	candidates, err := b.store.RouteCandidates(ctx)
	if err != nil {
		telemetry.RouteGenerations.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(candidates) == 0 {
		telemetry.RouteGenerations.WithLabelValues("empty").Inc()
		return nil, ErrSinCandidatos
	}

	depot := cfg.Depot()
	included, excluded := b.filter(candidates, cfg, depot)

	// Even when the filters drop everything, the zero-stop route is still
	// materialized and persisted with its exclusion records.
	runID := billing.NewRunID()
	var ordered []Point
	var full [][]float64
	if len(included) > 0 {
		points := toPoints(included)
		full = b.matrix.Durations(ctx, withDepot(depot, points), runID)
		cm := stripDepot(full)

		opt := Optimize(points, cm, depot, cfg.EvitarSaltosMin)
		for _, idx := range opt.ExcludedIdxs {
			excluded = append(excluded, exclusion{remito: included[idx], motivo: opt.ExclusionReasons[idx]})
		}

		// The cap applies to the final ordered list; overflow stops become
		// exclusions.
		if cfg.MaxRemitosRuta > 0 && len(opt.Ordered) > cfg.MaxRemitosRuta {
			for _, p := range opt.Ordered[cfg.MaxRemitosRuta:] {
				excluded = append(excluded, exclusion{remito: included[p.Idx], motivo: "max_remitos_ruta"})
			}
			opt.Ordered = opt.Ordered[:cfg.MaxRemitosRuta]
		}
		ordered = opt.Ordered
	}

	ruta := b.materialize(ordered, excluded, full, cfg, depot)
	if err := b.store.CreateRuta(ctx, ruta); err != nil {
		telemetry.RouteGenerations.WithLabelValues("error").Inc()
		return nil, err
	}
	telemetry.RouteGenerations.WithLabelValues("ok").Inc()
	telemetry.RouteStops.Observe(float64(len(ruta.Paradas)))
	b.log.WithFields(logrus.Fields{
		"ruta_id":   ruta.ID,
		"paradas":   len(ruta.Paradas),
		"excluidos": len(ruta.Excluidos),
		"run_id":    runID,
	}).Info("ruta generada")
	return ruta, nil
}

// filter applies the pre-routing filters in order: delivery radius, time
// window, return-to-depot time. Urgency bypasses all of them; priority
// bypasses all but the window.
func (b *Builder) filter(candidates []model.Remito, cfg config.RouteConfig, depot geo.Point) ([]model.Remito, []exclusion) {
	var included []model.Remito
	var excluded []exclusion
	speed := cfg.VelocidadUrbanaKmh

	for _, r := range candidates {
		lat, lng, ok := r.Coordenadas()
		if !ok {
			continue
		}
		p := geo.Point{Lat: lat, Lng: lng}

		if !r.EsUrgente && !r.EsPrioridad {
			if km := geo.HaversineKm(depot, p); km > cfg.DistanciaMaxKm {
				excluded = append(excluded, exclusion{r,
					fmt.Sprintf("distancia_maxima (%.1f km > %v km)", km, cfg.DistanciaMaxKm)})
				continue
			}
		}

		if cfg.UtilizarVentana && !r.EsUrgente {
			win := window.Result{Kind: window.KindVentana, DesdeMin: r.VentanaDesdeMin, HastaMin: r.VentanaHastaMin}
			if !window.WithinOperatingWindow(win, cfg.HoraDesde, cfg.HoraHasta) {
				excluded = append(excluded, exclusion{r, "ventana_horaria"})
				continue
			}
		}

		if !r.EsUrgente && !r.EsPrioridad {
			if vuelta := geo.EstimateMinutes(p, depot, speed); vuelta > cfg.VueltaGalponMin {
				excluded = append(excluded, exclusion{r,
					fmt.Sprintf("vuelta_galpon (%.1f min > %v min)", vuelta, cfg.VueltaGalponMin)})
				continue
			}
		}

		included = append(included, r)
	}
	return included, excluded
}

// materialize builds the route aggregate: legs, accumulated minutes, links
// and geometry. The full matrix carries the depot at row/column 0; candidate
// i sits at row i+1.
func (b *Builder) materialize(ordered []Point, excluded []exclusion, full [][]float64, cfg config.RouteConfig, depot geo.Point) *model.Ruta {
	ruta := &model.Ruta{
		Fecha:       time.Now().UTC().Truncate(24 * time.Hour),
		Estado:      model.RutaGenerada,
		DepositoLat: depot.Lat,
		DepositoLng: depot.Lng,
		GmapsLinks:  model.JSONList(BuildGmapsLinks(ordered, depot)),
	}
	if snap, err := json.Marshal(cfg); err == nil {
		ruta.ConfigSnapshot = snap
	}

	acumulados := 0.0
	distTotal := 0.0
	prev := geo.Point{Lat: depot.Lat, Lng: depot.Lng}
	prevRow := 0
	for i, p := range ordered {
		cur := geo.Point{Lat: p.Lat, Lng: p.Lng}
		leg := matrixAt(full, prevRow, p.Idx+1)
		if leg <= 0 || leg >= 9e8 {
			leg = geo.EstimateMinutes(prev, cur, cfg.VelocidadUrbanaKmh)
		}
		distKm := geo.HaversineKm(prev, cur)
		acumulados += leg + cfg.TiempoEsperaMin
		distTotal += distKm

		ruta.Paradas = append(ruta.Paradas, model.RutaParada{
			RemitoID:                 p.RemitoID,
			RemitoNumero:             p.Numero,
			Orden:                    i + 1,
			LatSnapshot:              p.Lat,
			LngSnapshot:              p.Lng,
			ClienteSnapshot:          p.Cliente,
			DireccionSnapshot:        p.Direccion,
			ObservacionesSnapshot:    p.Observaciones,
			MinutosDesdeAnterior:     leg,
			TiempoEsperaMin:          cfg.TiempoEsperaMin,
			MinutosAcumulados:        acumulados,
			DistanciaDesdeAnteriorKm: distKm,
			EsUrgente:                p.Urgente,
			EsPrioridad:              p.Prioridad,
			VentanaTipo:              p.VentanaTipo,
			Estado:                   model.ParadaPendiente,
		})
		prev = cur
		prevRow = p.Idx + 1
	}

	// Closing leg back to the depot.
	if len(ordered) > 0 {
		back := matrixAt(full, prevRow, 0)
		if back <= 0 || back >= 9e8 {
			back = geo.EstimateMinutes(prev, depot, cfg.VelocidadUrbanaKmh)
		}
		acumulados += back
		distTotal += geo.HaversineKm(prev, depot)
	}
	dur := int(acumulados + 0.5)
	ruta.DuracionEstimadaMin = &dur
	ruta.DistanciaTotalKm = &distTotal
	ruta.RutaGeom = lineString(ordered, depot)

	for _, e := range excluded {
		ruta.Excluidos = append(ruta.Excluidos, model.RutaExcluido{
			RemitoID:              e.remito.ID,
			RemitoNumero:          e.remito.Numero,
			ClienteSnapshot:       e.remito.Cliente,
			DireccionSnapshot:     e.remito.DireccionNormalizada,
			ObservacionesSnapshot: e.remito.Observaciones,
			Motivo:                e.motivo,
		})
	}
	return ruta
}

// toPoints projects candidates onto optimizer points; Idx is the candidate's
// position, which the full matrix offsets by one for the depot row.
func toPoints(candidates []model.Remito) []Point {
	points := make([]Point, 0, len(candidates))
	for i, r := range candidates {
		lat, lng, _ := r.Coordenadas()
		points = append(points, Point{
			Idx:           i,
			Lat:           lat,
			Lng:           lng,
			RemitoID:      r.ID,
			Numero:        r.Numero,
			Cliente:       r.Cliente,
			Direccion:     r.DireccionNormalizada,
			Observaciones: r.Observaciones,
			Urgente:       r.EsUrgente,
			Prioridad:     r.EsPrioridad,
			VentanaTipo:   r.VentanaTipo,
			VentanaDesde:  r.VentanaDesdeMin,
			VentanaHasta:  r.VentanaHastaMin,
			LlamarAntes:   r.LlamarAntes,
		})
	}
	return points
}

func withDepot(depot geo.Point, points []Point) []geo.Point {
	out := make([]geo.Point, 0, len(points)+1)
	out = append(out, depot)
	for _, p := range points {
		out = append(out, geo.Point{Lat: p.Lat, Lng: p.Lng})
	}
	return out
}

// stripDepot projects the depot-rooted matrix onto candidates only.
func stripDepot(full [][]float64) [][]float64 {
	if len(full) <= 1 {
		return nil
	}
	n := len(full) - 1
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = full[i+1][j+1]
		}
	}
	return out
}

func matrixAt(m [][]float64, i, j int) float64 {
	if i < len(m) && j < len(m[i]) {
		return m[i][j]
	}
	return 0
}

// lineString renders the depot-to-depot path as a GeoJSON LineString in
// [lng, lat] coordinate order.
func lineString(ordered []Point, depot geo.Point) json.RawMessage {
	coords := make([][2]float64, 0, len(ordered)+2)
	coords = append(coords, [2]float64{depot.Lng, depot.Lat})
	for _, p := range ordered {
		coords = append(coords, [2]float64{p.Lng, p.Lat})
	}
	coords = append(coords, [2]float64{depot.Lng, depot.Lat})
	b, err := json.Marshal(map[string]interface{}{
		"type":        "LineString",
		"coordinates": coords,
	})
	if err != nil {
		return nil
	}
	return b
}
