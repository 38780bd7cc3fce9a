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

// Package pipeline classifies remitos: it merges externally synced
// attributes, normalizes the address, resolves the carrier, geocodes, parses
// the delivery window and lands each remito on a terminal classification.
// Individual failures never abort a run; the remito is marked and the run
// moves on.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"remitero/internal/address"
	"remitero/internal/billing"
	"remitero/internal/carrier"
	"remitero/internal/geocode"
	"remitero/internal/model"
	"remitero/internal/telemetry"
	"remitero/internal/window"
)

// Classification reasons surfaced to operators.
const (
	MotivoDireccionCorta = "Dirección vacía o muy corta"
	MotivoSinAltura      = "Geocodificación sin altura"
	MotivoNoEncontrado   = "No se pudo geocodificar la dirección"
	MotivoRetiro         = "Posible retiro en galpón"
)

// Store is the persistence surface a classification run needs.
type Store interface {
	PendingRemitos(ctx context.Context) ([]model.Remito, error)
	GetRemito(ctx context.Context, id int64) (*model.Remito, error)
	InsertRemito(ctx context.Context, r *model.Remito) error
	UpdateRemitoPipeline(ctx context.Context, r *model.Remito) error
	SetDireccion(ctx context.Context, id int64, direccion string) error
	SetClasificacion(ctx context.Context, id int64, estado model.Clasificacion, motivo string) error
	UpsertPedidoListo(ctx context.Context, p *model.PedidoListo) error
	PedidoListoByNumero(ctx context.Context, numero string) (*model.PedidoListo, error)
	LinkPedidoListo(ctx context.Context, pedidoID, remitoID int64) error
}

// Geocoder resolves a normalized address, cache first.
type Geocoder interface {
	Geocode(ctx context.Context, addr, runID, providerOverride string) (*geocode.Result, error)
}

// Detector runs the carrier cascade over free text.
type Detector interface {
	Detect(ctx context.Context, texto, localidad string) carrier.Detection
}

// Service orchestrates classification runs.
type Service struct {
	store    Store
	geocoder Geocoder
	detector Detector
	log      *logrus.Logger
}

func NewService(store Store, geocoder Geocoder, detector Detector, log *logrus.Logger) *Service {
	return &Service{store: store, geocoder: geocoder, detector: detector, log: log}
}

// RunResult summarizes one classification run.
type RunResult struct {
	RunID     string                      `json:"run_id"`
	Total     int                         `json:"total"`
	PorEstado map[model.Clasificacion]int `json:"por_estado"`
	Errores   []string                    `json:"errores,omitempty"`
}

// Run classifies every pending remito. Per-remito failures are recorded and
// skipped so one bad row never blocks the batch.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	pending, err := s.store.PendingRemitos(ctx)
	if err != nil {
		return nil, err
	}
	res := &RunResult{
		RunID:     billing.NewRunID(),
		Total:     len(pending),
		PorEstado: map[model.Clasificacion]int{},
	}
	for i := range pending {
		r := &pending[i]
		if err := s.classify(ctx, r, res.RunID); err != nil {
			s.log.WithError(err).WithField("numero", r.Numero).Warn("clasificación falló")
			res.Errores = append(res.Errores, r.Numero+": "+err.Error())
			continue
		}
		res.PorEstado[r.EstadoClasificacion]++
		telemetry.PipelineRemitos.WithLabelValues(string(r.EstadoClasificacion)).Inc()
	}
	s.log.WithFields(logrus.Fields{
		"run_id": res.RunID,
		"total":  res.Total,
	}).Info("corrida de clasificación completa")
	return res, nil
}

// Reprocess re-runs the pipeline over a single remito regardless of its
// current classification.
func (s *Service) Reprocess(ctx context.Context, id int64) (*model.Remito, error) {
	r, err := s.store.GetRemito(ctx, id)
	if err != nil {
		return nil, err
	}
	runID := billing.NewRunID()
	if err := s.classify(ctx, r, runID); err != nil {
		return nil, err
	}
	telemetry.PipelineRemitos.WithLabelValues(string(r.EstadoClasificacion)).Inc()
	return r, nil
}

// classify walks one remito through the cascade and persists the outcome.
func (s *Service) classify(ctx context.Context, r *model.Remito, runID string) error {
	s.mergePedidoListo(ctx, r)

	r.DireccionNormalizada = address.Normalize(r.DireccionRaw)

	// The carrier steps read the delivery notes; a remito without notes
	// falls back to the raw address.
	texto := r.Observaciones
	if texto == "" {
		texto = r.DireccionRaw
	}

	// Pickup hints in the delivery notes win over everything else.
	if carrier.DetectPickup(texto) {
		return s.finish(ctx, r, model.ClasifRetiroSospechado, MotivoRetiro, nil)
	}

	det := s.detector.Detect(ctx, texto, address.CanonicalizeLocality(r.Localidad))
	switch det.NombreCanonico {
	case carrier.PickupName:
		return s.finish(ctx, r, model.ClasifRetiroSospechado, MotivoRetiro, &det)
	case carrier.OwnFleetName, carrier.UnknownName:
		// own fleet and the unknown sentinel keep walking the pipeline
		r.CarrierID = det.CarrierID
	default:
		return s.finish(ctx, r, model.ClasifTransporteExterno,
			"Transporte externo: "+det.NombreCanonico, &det)
	}

	if !address.Sane(r.DireccionNormalizada) {
		return s.finish(ctx, r, model.ClasifCorregir, MotivoDireccionCorta, nil)
	}

	query := address.WithLocality(r.DireccionNormalizada, address.CanonicalizeLocality(r.Localidad))
	geo, err := s.geocoder.Geocode(ctx, query, runID, "")
	if err != nil {
		return err
	}
	if geo == nil {
		return s.finish(ctx, r, model.ClasifNoEncontrado, MotivoNoEncontrado, nil)
	}
	r.Lat, r.Lng = &geo.Point.Lat, &geo.Point.Lng
	r.GeocodeFormatted = geo.Formatted
	r.GeocodeProvider = geo.Provider
	r.GeocodeScore = &geo.Confidence
	r.GeocodeHasStreetNum = geo.HasStreetNumber
	if !geo.HasStreetNumber {
		return s.finish(ctx, r, model.ClasifCorregir, MotivoSinAltura, nil)
	}

	win := window.Parse(r.Observaciones)
	if win.Kind == window.KindPickup {
		return s.finish(ctx, r, model.ClasifRetiroSospechado, MotivoRetiro, nil)
	}
	r.VentanaTipo = win.VentanaTipo
	r.VentanaDesdeMin = win.DesdeMin
	r.VentanaHastaMin = win.HastaMin
	r.VentanaRaw = win.Raw
	r.LlamarAntes = win.LlamarAntes

	return s.finish(ctx, r, model.ClasifEnviar, "", nil)
}

// mergePedidoListo enriches the remito from its synced attribute bag, if one
// arrived. Missing bags are normal, not errors.
func (s *Service) mergePedidoListo(ctx context.Context, r *model.Remito) {
	p, err := s.store.PedidoListoByNumero(ctx, r.Numero)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.log.WithError(err).WithField("numero", r.Numero).Warn("leyendo pedido listo")
		}
		return
	}
	if p.Cliente != "" {
		r.Cliente = p.Cliente
	}
	if p.Domicilio != "" {
		r.DireccionRaw = p.Domicilio
	}
	if p.Localidad != "" {
		r.Localidad = p.Localidad
	}
	if p.Provincia != "" {
		r.Provincia = p.Provincia
	}
	if p.Observaciones != "" && !strings.Contains(r.Observaciones, p.Observaciones) {
		r.Observaciones = strings.TrimSpace(r.Observaciones + " " + p.Observaciones)
	}
	if p.Transporte != "" {
		r.SetTransporte(p.Transporte)
	}
	if err := s.store.LinkPedidoListo(ctx, p.ID, r.ID); err != nil {
		s.log.WithError(err).WithField("numero", r.Numero).Warn("enlazando pedido listo")
	}
}

func (s *Service) finish(ctx context.Context, r *model.Remito, estado model.Clasificacion, motivo string, det *carrier.Detection) error {
	r.EstadoClasificacion = estado
	r.MotivoClasificacion = motivo
	if det != nil {
		r.CarrierID = det.CarrierID
	}
	return s.store.UpdateRemitoPipeline(ctx, r)
}

// IngestItem is one incoming remito from the scanner or an import.
type IngestItem struct {
	Numero        string `json:"numero" validate:"required"`
	Cliente       string `json:"cliente"`
	Direccion     string `json:"direccion"`
	Localidad     string `json:"localidad"`
	Provincia     string `json:"provincia"`
	Telefono      string `json:"telefono"`
	Observaciones string `json:"observaciones"`
	Transporte    string `json:"transporte"`
	EsUrgente     bool   `json:"es_urgente"`
	EsPrioridad   bool   `json:"es_prioridad"`
	Source        string `json:"source"`
}

// IngestResult summarizes one ingest batch.
type IngestResult struct {
	Total      int      `json:"total"`
	Nuevos     int      `json:"nuevos"`
	Duplicados int      `json:"duplicados"`
	Errores    []string `json:"errores,omitempty"`
}

// Ingest creates remitos and classifies each new one right away. Duplicate
// numbers are counted, not failed; a classification failure leaves the remito
// at pendiente for the next run.
func (s *Service) Ingest(ctx context.Context, items []IngestItem) (*IngestResult, error) {
	res := &IngestResult{Total: len(items)}
	runID := billing.NewRunID()
	for _, it := range items {
		numero := strings.ToUpper(strings.TrimSpace(it.Numero))
		if numero == "" {
			res.Errores = append(res.Errores, "numero vacío")
			continue
		}
		r := &model.Remito{
			Numero:        numero,
			Cliente:       strings.TrimSpace(it.Cliente),
			DireccionRaw:  strings.TrimSpace(it.Direccion),
			Localidad:     strings.TrimSpace(it.Localidad),
			Provincia:     strings.ToUpper(strings.TrimSpace(it.Provincia)),
			Telefono:      strings.TrimSpace(it.Telefono),
			Observaciones: strings.TrimSpace(it.Observaciones),
			EsUrgente:     it.EsUrgente,
			EsPrioridad:   it.EsPrioridad,
			Source:        it.Source,
		}
		if it.Transporte != "" {
			r.SetTransporte(it.Transporte)
		}
		err := s.store.InsertRemito(ctx, r)
		switch {
		case err == nil:
			res.Nuevos++
			if cerr := s.classify(ctx, r, runID); cerr != nil {
				s.log.WithError(cerr).WithField("numero", numero).Warn("clasificación en ingesta falló")
				res.Errores = append(res.Errores, numero+": "+cerr.Error())
			} else {
				telemetry.PipelineRemitos.WithLabelValues(string(r.EstadoClasificacion)).Inc()
			}
		case errors.Is(err, model.ErrConflict):
			res.Duplicados++
		default:
			res.Errores = append(res.Errores, numero+": "+err.Error())
		}
	}
	return res, nil
}

// PedidoItem is one row of an external "pedidos listos" sync.
type PedidoItem struct {
	NumeroRemito  string          `json:"numero_remito" validate:"required"`
	Cliente       string          `json:"cliente"`
	Domicilio     string          `json:"domicilio"`
	Localidad     string          `json:"localidad"`
	Provincia     string          `json:"provincia"`
	Observaciones string          `json:"observaciones"`
	Transporte    string          `json:"transporte"`
	RawData       json.RawMessage `json:"raw_data"`
}

// SyncPedidos upserts the attribute bags a later classification run merges.
func (s *Service) SyncPedidos(ctx context.Context, items []PedidoItem) (int, error) {
	synced := 0
	for _, it := range items {
		numero := strings.ToUpper(strings.TrimSpace(it.NumeroRemito))
		if numero == "" {
			continue
		}
		p := &model.PedidoListo{
			NumeroRemito:  numero,
			Cliente:       strings.TrimSpace(it.Cliente),
			Domicilio:     strings.TrimSpace(it.Domicilio),
			Localidad:     strings.TrimSpace(it.Localidad),
			Provincia:     strings.ToUpper(strings.TrimSpace(it.Provincia)),
			Observaciones: strings.TrimSpace(it.Observaciones),
			Transporte:    strings.TrimSpace(it.Transporte),
			RawData:       it.RawData,
		}
		if err := s.store.UpsertPedidoListo(ctx, p); err != nil {
			s.log.WithError(err).WithField("numero", numero).Warn("sync pedido listo")
			continue
		}
		synced++
	}
	return synced, nil
}

// CorregirDireccion replaces the address and resets the remito so the next
// run reclassifies it.
func (s *Service) CorregirDireccion(ctx context.Context, id int64, direccion string) error {
	direccion = strings.TrimSpace(direccion)
	if direccion == "" {
		return model.ErrValidation
	}
	return s.store.SetDireccion(ctx, id, direccion)
}

// OverrideClasificacion forces a classification by operator decision.
func (s *Service) OverrideClasificacion(ctx context.Context, id int64, estado model.Clasificacion, motivo string) error {
	switch estado {
	case model.ClasifPendiente, model.ClasifEnviar, model.ClasifCorregir,
		model.ClasifRetiroSospechado, model.ClasifTransporteExterno,
		model.ClasifNoEncontrado, model.ClasifExcluido:
	default:
		return model.ErrValidation
	}
	if motivo == "" {
		motivo = "Ajuste manual"
	}
	return s.store.SetClasificacion(ctx, id, estado, motivo)
}
