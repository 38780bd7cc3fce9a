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
	"strconv"

	"github.com/go-chi/chi/v5"

	"remitero/internal/config"
	"remitero/internal/model"
)

type generarRutaRequest struct {
	Override config.Override `json:"override"`
}

func (s *Server) handleGenerarRuta(w http.ResponseWriter, r *http.Request) {
	req := generarRutaRequest{}
	if r.ContentLength > 0 {
		if err := s.decode(r, &req); err != nil {
			s.writeDecodeError(w, err)
			return
		}
	}
	ruta, err := s.gen.Generate(r.Context(), req.Override)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ruta)
}

func (s *Server) handleListRutas(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rutas, err := s.store.ListRutas(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rutas)
}

func (s *Server) handleGetRuta(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id inválido"})
		return
	}
	ruta, err := s.store.GetRuta(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ruta)
}

func (s *Server) handleUltimaRuta(w http.ResponseWriter, r *http.Request) {
	ruta, err := s.store.GetUltimaRuta(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ruta)
}

type estadoRequest struct {
	Estado string `json:"estado" validate:"required"`
}

func (s *Server) handleRutaEstado(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id inválido"})
		return
	}
	var req estadoRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	estado := model.RutaEstado(req.Estado)
	switch estado {
	case model.RutaGenerando, model.RutaGenerada, model.RutaEnCurso,
		model.RutaCompletada, model.RutaCancelada:
	default:
		s.writeError(w, model.ErrValidation)
		return
	}
	if err := s.store.UpdateRutaEstado(r.Context(), id, estado); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"estado": req.Estado})
}

func (s *Server) handleParadaEstado(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id inválido"})
		return
	}
	orden, err := strconv.Atoi(chi.URLParam(r, "orden"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "orden inválido"})
		return
	}
	var req estadoRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	estado := model.ParadaEstado(req.Estado)
	switch estado {
	case model.ParadaPendiente, model.ParadaEnCamino, model.ParadaEntregada,
		model.ParadaFallida, model.ParadaSaltada:
	default:
		s.writeError(w, model.ErrValidation)
		return
	}
	if err := s.store.UpdateParadaEstado(r.Context(), id, orden, estado); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"estado": req.Estado})
}

type remitoIDsRequest struct {
	RemitoIDs []int64 `json:"remito_ids" validate:"required,min=1"`
	MesCierre string  `json:"mes_cierre"`
}

func (s *Server) handleListEntregados(w http.ResponseWriter, r *http.Request) {
	remitos, err := s.store.DeliveredRemitos(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, remitos)
}

func (s *Server) handleEntregados(w http.ResponseWriter, r *http.Request) {
	var req remitoIDsRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	updated, err := s.store.MarkEntregados(r.Context(), req.RemitoIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entregados": updated,
		"total":      len(updated),
	})
}

func (s *Server) handleListHistorico(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListHistorico(r.Context(), r.URL.Query().Get("mes"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMoverHistorico(w http.ResponseWriter, r *http.Request) {
	var req remitoIDsRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	archived, err := s.store.MoveToHistorico(r.Context(), req.RemitoIDs, req.MesCierre)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"archivados": archived})
}

func (s *Server) handleRestaurarHistorico(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id inválido"})
		return
	}
	remito, err := s.store.RestaurarHistorico(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, remito)
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
