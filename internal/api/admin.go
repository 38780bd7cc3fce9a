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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"remitero/internal/billing"
	"remitero/internal/model"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cfg.Get(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

type configPutRequest struct {
	Entries []configEntryDTO `json:"entries" validate:"required,min=1,dive"`
}

type configEntryDTO struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
	Tipo  string `json:"tipo" validate:"omitempty,oneof=str int float bool"`
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req configPutRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	for _, e := range req.Entries {
		tipo := e.Tipo
		if tipo == "" {
			tipo = "str"
		}
		if err := s.cfg.Set(r.Context(), e.Key, e.Value, tipo); err != nil {
			s.writeError(w, err)
			return
		}
	}
	cfg, err := s.cfg.Get(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleListCarriers(w http.ResponseWriter, r *http.Request) {
	carriers, err := s.store.ListCarriers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, carriers)
}

type carrierRequest struct {
	NombreCanonico string   `json:"nombre_canonico" validate:"required"`
	Aliases        []string `json:"aliases"`
	RegexPattern   *string  `json:"regex_pattern"`
	EsExterno      bool     `json:"es_externo"`
	EsPickup       bool     `json:"es_pickup"`
	Activo         *bool    `json:"activo"`
	PrioridadRegex int      `json:"prioridad_regex"`
}

func (req carrierRequest) toModel() *model.Carrier {
	c := &model.Carrier{
		NombreCanonico: req.NombreCanonico,
		Aliases:        model.JSONList(req.Aliases),
		RegexPattern:   req.RegexPattern,
		EsExterno:      req.EsExterno,
		EsPickup:       req.EsPickup,
		Activo:         true,
		PrioridadRegex: req.PrioridadRegex,
	}
	if req.Activo != nil {
		c.Activo = *req.Activo
	}
	if c.PrioridadRegex == 0 {
		c.PrioridadRegex = 50
	}
	return c
}

func (s *Server) handleCreateCarrier(w http.ResponseWriter, r *http.Request) {
	var req carrierRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	c := req.toModel()
	if err := s.store.CreateCarrier(r.Context(), c); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCarrier(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id inválido"})
		return
	}
	var req carrierRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	c := req.toModel()
	c.ID = id
	if err := s.store.UpdateCarrier(r.Context(), c); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGeocodeValidar(w http.ResponseWriter, r *http.Request) {
	direccion := r.URL.Query().Get("direccion")
	if direccion == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "falta direccion"})
		return
	}
	res, err := s.geocoder.Geocode(r.Context(), direccion, billing.NewRunID(),
		r.URL.Query().Get("provider"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if res == nil {
		s.writeJSON(w, http.StatusOK, map[string]bool{"encontrada": false})
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type geocodeBatchRequest struct {
	Direcciones []string `json:"direcciones" validate:"required,min=1"`
}

func (s *Server) handleGeocodeBatch(w http.ResponseWriter, r *http.Request) {
	var req geocodeBatchRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	runID := billing.NewRunID()
	out := make(map[string]interface{}, len(req.Direcciones))
	for _, d := range req.Direcciones {
		res, err := s.geocoder.Geocode(r.Context(), d, runID, "")
		if err != nil {
			s.writeError(w, err)
			return
		}
		out[d] = res // nil means not found
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGeoCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GeoCacheStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGeoCachePurge(w http.ResponseWriter, r *http.Request) {
	purged, err := s.store.PurgeExpiredGeo(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"purgados": purged})
}

// handleBillingResumen aggregates traces over ?desde=YYYY-MM-DD&hasta=; the
// default period is the current month.
func (s *Server) handleBillingResumen(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	desde := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	hasta := desde.AddDate(0, 1, 0)
	if q := r.URL.Query().Get("desde"); q != "" {
		t, err := time.Parse("2006-01-02", q)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "desde inválido"})
			return
		}
		desde = t
	}
	if q := r.URL.Query().Get("hasta"); q != "" {
		t, err := time.Parse("2006-01-02", q)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hasta inválido"})
			return
		}
		hasta = t
	}
	rows, err := s.store.BillingResumen(r.Context(), desde, hasta)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// handleBillingTrazas lists the raw traces of one run, oldest first.
func (s *Server) handleBillingTrazas(w http.ResponseWriter, r *http.Request) {
	traces, err := s.store.TracesByRun(r.Context(), chi.URLParam(r, "run"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, traces)
}
