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
	"strings"

	"github.com/go-chi/chi/v5"

	"remitero/internal/model"
	"remitero/internal/pipeline"
	"remitero/internal/store"
)

func (s *Server) handleListRemitos(w http.ResponseWriter, r *http.Request) {
	remitos, err := s.store.ListRemitos(r.Context(),
		r.URL.Query().Get("clasificacion"), r.URL.Query().Get("lifecycle"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, remitos)
}

func (s *Server) handleGetRemito(w http.ResponseWriter, r *http.Request) {
	remito, err := s.store.GetRemitoByNumero(r.Context(), numeroParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, remito)
}

func (s *Server) handleCreateRemito(w http.ResponseWriter, r *http.Request) {
	var item pipeline.IngestItem
	if err := s.decode(r, &item); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	res, err := s.pipe.Ingest(r.Context(), []pipeline.IngestItem{item})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if res.Duplicados > 0 {
		s.writeError(w, model.ErrConflict)
		return
	}
	if len(res.Errores) > 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	remito, err := s.store.GetRemitoByNumero(r.Context(),
		strings.ToUpper(strings.TrimSpace(item.Numero)))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, remito)
}

type ingestRequest struct {
	// Numeros is the plain batch shape: order numbers only. Items carries
	// full attributes; both may appear in one request.
	Numeros []string              `json:"numeros"`
	Items   []pipeline.IngestItem `json:"items"`
	Source  string                `json:"source"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	for _, numero := range req.Numeros {
		req.Items = append(req.Items, pipeline.IngestItem{Numero: numero})
	}
	for i := range req.Items {
		if req.Items[i].Source == "" {
			req.Items[i].Source = req.Source
		}
	}
	res, err := s.pipe.Ingest(r.Context(), req.Items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePatchRemito(w http.ResponseWriter, r *http.Request) {
	var patch store.RemitoPatch
	if err := s.decode(r, &patch); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	remito, err := s.store.PatchRemito(r.Context(), numeroParam(r), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, remito)
}

type corregirDireccionRequest struct {
	Direccion string `json:"direccion" validate:"required,min=5"`
}

func (s *Server) handleCorregirDireccion(w http.ResponseWriter, r *http.Request) {
	var req corregirDireccionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	remito, err := s.store.GetRemitoByNumero(r.Context(), numeroParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.pipe.CorregirDireccion(r.Context(), remito.ID, req.Direccion); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"estado": string(model.ClasifPendiente)})
}

type clasificacionRequest struct {
	Estado string `json:"estado" validate:"required"`
	Motivo string `json:"motivo"`
}

func (s *Server) handleOverrideClasificacion(w http.ResponseWriter, r *http.Request) {
	var req clasificacionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	remito, err := s.store.GetRemitoByNumero(r.Context(), numeroParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.pipe.OverrideClasificacion(r.Context(), remito.ID,
		model.Clasificacion(req.Estado), req.Motivo); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"estado": req.Estado})
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	remito, err := s.store.GetRemitoByNumero(r.Context(), numeroParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	updated, err := s.pipe.Reprocess(r.Context(), remito.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleReprocessPending(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipe.Run(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type qrScanRequest struct {
	Numero string `json:"numero" validate:"required"`
}

// handleQRScan moves the scanned remito to armado. Rescanning the same label
// is a no-op, not an error.
func (s *Server) handleQRScan(w http.ResponseWriter, r *http.Request) {
	var req qrScanRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	numero := strings.ToUpper(strings.TrimSpace(req.Numero))
	remito, err := s.store.AdvanceLifecycle(r.Context(), numero, model.LifecycleArmado)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, remito)
}

type pedidosSyncRequest struct {
	Items []pipeline.PedidoItem `json:"items"`
}

func (s *Server) handleSyncPedidos(w http.ResponseWriter, r *http.Request) {
	var req pedidosSyncRequest
	if err := s.decode(r, &req); err != nil {
		s.writeDecodeError(w, err)
		return
	}
	synced, err := s.pipe.SyncPedidos(r.Context(), req.Items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"sincronizados": synced})
}

func numeroParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "numero")))
}
