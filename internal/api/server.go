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

// Package api is the operator HTTP surface. Handlers are thin: decode,
// validate, delegate, map the error taxonomy onto status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"remitero/internal/config"
	"remitero/internal/geocode"
	"remitero/internal/model"
	"remitero/internal/pipeline"
	"remitero/internal/routing"
	"remitero/internal/store"
)

// Store is the persistence surface the handlers use directly.
type Store interface {
	GetRemitoByNumero(ctx context.Context, numero string) (*model.Remito, error)
	ListRemitos(ctx context.Context, clasif, lifecycle string) ([]model.Remito, error)
	PatchRemito(ctx context.Context, numero string, p store.RemitoPatch) (*model.Remito, error)
	AdvanceLifecycle(ctx context.Context, numero string, next model.Lifecycle) (*model.Remito, error)
	MarkEntregados(ctx context.Context, ids []int64) ([]int64, error)
	DeliveredRemitos(ctx context.Context) ([]model.Remito, error)
	MoveToHistorico(ctx context.Context, ids []int64, mesCierre string) (int, error)
	RestaurarHistorico(ctx context.Context, historicoID int64) (*model.Remito, error)
	ListHistorico(ctx context.Context, mesCierre string) ([]model.HistoricoEntregado, error)
	GetRuta(ctx context.Context, id int64) (*model.Ruta, error)
	GetUltimaRuta(ctx context.Context) (*model.Ruta, error)
	ListRutas(ctx context.Context, limit int) ([]model.Ruta, error)
	UpdateRutaEstado(ctx context.Context, id int64, estado model.RutaEstado) error
	UpdateParadaEstado(ctx context.Context, rutaID int64, orden int, estado model.ParadaEstado) error
	ListCarriers(ctx context.Context) ([]model.Carrier, error)
	CreateCarrier(ctx context.Context, c *model.Carrier) error
	UpdateCarrier(ctx context.Context, c *model.Carrier) error
	GeoCacheStats(ctx context.Context) (map[string]int, error)
	PurgeExpiredGeo(ctx context.Context) (int64, error)
	BillingResumen(ctx context.Context, desde, hasta time.Time) ([]store.BillingResumenRow, error)
	TracesByRun(ctx context.Context, runID string) ([]model.BillingTrace, error)
	Ping() error
}

// Pipeline is the classification service surface.
type Pipeline interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
	Reprocess(ctx context.Context, id int64) (*model.Remito, error)
	Ingest(ctx context.Context, items []pipeline.IngestItem) (*pipeline.IngestResult, error)
	SyncPedidos(ctx context.Context, items []pipeline.PedidoItem) (int, error)
	CorregirDireccion(ctx context.Context, id int64, direccion string) error
	OverrideClasificacion(ctx context.Context, id int64, estado model.Clasificacion, motivo string) error
}

// Generator builds today's route.
type Generator interface {
	Generate(ctx context.Context, override config.Override) (*model.Ruta, error)
}

// Geocoder resolves a single address, used by the validation endpoints.
type Geocoder interface {
	Geocode(ctx context.Context, addr, runID, providerOverride string) (*geocode.Result, error)
}

// ConfigService serves and mutates the typed route configuration.
type ConfigService interface {
	Get(ctx context.Context) (config.RouteConfig, error)
	Set(ctx context.Context, key, value, tipo string) error
}

// Server wires the handlers onto a chi router.
type Server struct {
	store    Store
	pipe     Pipeline
	gen      Generator
	geocoder Geocoder
	cfg      ConfigService
	validate *validator.Validate
	log      *logrus.Logger
}

func NewServer(st Store, pipe Pipeline, gen Generator, geocoder Geocoder, cfg ConfigService, log *logrus.Logger) *Server {
	return &Server{
		store:    st,
		pipe:     pipe,
		gen:      gen,
		geocoder: geocoder,
		cfg:      cfg,
		validate: validator.New(),
		log:      log,
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/remitos", func(r chi.Router) {
			r.Get("/", s.handleListRemitos)
			r.Post("/", s.handleCreateRemito)
			r.Post("/ingest", s.handleIngest)
			r.Post("/reprocesar-pendientes", s.handleReprocessPending)
			r.Route("/{numero}", func(r chi.Router) {
				r.Get("/", s.handleGetRemito)
				r.Patch("/", s.handlePatchRemito)
				r.Post("/corregir-direccion", s.handleCorregirDireccion)
				r.Post("/clasificacion", s.handleOverrideClasificacion)
				r.Post("/reprocesar", s.handleReprocess)
			})
		})

		r.Post("/qr/scan", s.handleQRScan)

		r.Route("/rutas", func(r chi.Router) {
			r.Get("/", s.handleListRutas)
			r.Post("/generar", s.handleGenerarRuta)
			r.Get("/ultima", s.handleUltimaRuta)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRuta)
				r.Patch("/estado", s.handleRutaEstado)
				r.Patch("/paradas/{orden}/estado", s.handleParadaEstado)
			})
		})

		r.Get("/entregados", s.handleListEntregados)
		r.Post("/entregados", s.handleEntregados)
		r.Route("/historico", func(r chi.Router) {
			r.Get("/", s.handleListHistorico)
			r.Post("/mover", s.handleMoverHistorico)
			r.Post("/{id}/restaurar", s.handleRestaurarHistorico)
		})

		r.Post("/pedidos-listos/sync", s.handleSyncPedidos)

		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.handleGetConfig)
			r.Put("/", s.handlePutConfig)
		})

		r.Route("/carriers", func(r chi.Router) {
			r.Get("/", s.handleListCarriers)
			r.Post("/", s.handleCreateCarrier)
			r.Patch("/{id}", s.handleUpdateCarrier)
		})

		r.Route("/geocode", func(r chi.Router) {
			r.Get("/validar", s.handleGeocodeValidar)
			r.Post("/batch", s.handleGeocodeBatch)
			r.Get("/cache/stats", s.handleGeoCacheStats)
			r.Delete("/cache/expirados", s.handleGeoCachePurge)
		})

		r.Get("/billing/resumen", s.handleBillingResumen)
		r.Get("/billing/trazas/{run}", s.handleBillingTrazas)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON renders v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("codificando respuesta")
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, model.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, routing.ErrSinCandidatos):
		status = http.StatusConflict
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("error interno")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode unmarshals and validates the request body.
func (s *Server) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadJSON
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

var errBadJSON = errors.New("cuerpo JSON inválido")

func (s *Server) writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadJSON) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeError(w, err)
}
