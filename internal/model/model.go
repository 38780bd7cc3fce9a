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

// Package model declares the persistent entities of the remitero service and
// the state machines that govern them: the remito classification states, the
// monotonic lifecycle, and the route/stop execution states.
package model

import (
	"encoding/json"
	"time"
)

// Clasificacion is the terminal state a pipeline run assigns to a remito.
type Clasificacion string

const (
	ClasifPendiente         Clasificacion = "pendiente"
	ClasifEnviar            Clasificacion = "enviar"
	ClasifCorregir          Clasificacion = "corregir"
	ClasifRetiroSospechado  Clasificacion = "retiro_sospechado"
	ClasifTransporteExterno Clasificacion = "transporte_externo"
	ClasifNoEncontrado      Clasificacion = "no_encontrado"
	ClasifExcluido          Clasificacion = "excluido"
)

// Lifecycle is the operator-controlled progression of a remito. It is strictly
// monotonic: a remito never moves to an earlier stage.
type Lifecycle string

const (
	LifecycleIngresado  Lifecycle = "ingresado"
	LifecycleArmado     Lifecycle = "armado"
	LifecycleDespachado Lifecycle = "despachado"
	LifecycleEntregado  Lifecycle = "entregado"
	LifecycleHistorico  Lifecycle = "historico"
)

// lifecycleRank orders the lifecycle stages for monotonicity checks.
var lifecycleRank = map[Lifecycle]int{
	LifecycleIngresado:  0,
	LifecycleArmado:     1,
	LifecycleDespachado: 2,
	LifecycleEntregado:  3,
	LifecycleHistorico:  4,
}

// Rank returns the monotonic position of l, or -1 for an unknown stage.
func (l Lifecycle) Rank() int {
	r, ok := lifecycleRank[l]
	if !ok {
		return -1
	}
	return r
}

// CanAdvanceTo reports whether moving from l to next respects monotonicity.
// Equal stages are allowed so repeated operations stay idempotent.
func (l Lifecycle) CanAdvanceTo(next Lifecycle) bool {
	a, b := l.Rank(), next.Rank()
	return a >= 0 && b >= 0 && b >= a
}

// VentanaTipo is the coarse time-of-day bucket assigned from a parsed window.
type VentanaTipo string

const (
	VentanaAM  VentanaTipo = "AM"
	VentanaPM  VentanaTipo = "PM"
	VentanaSin VentanaTipo = "SIN_HORARIO"
)

// RutaEstado is the status of a generated route.
type RutaEstado string

const (
	RutaGenerando  RutaEstado = "generando"
	RutaGenerada   RutaEstado = "generada"
	RutaEnCurso    RutaEstado = "en_curso"
	RutaCompletada RutaEstado = "completada"
	RutaCancelada  RutaEstado = "cancelada"
)

// ParadaEstado is the execution state of a single stop on a route.
type ParadaEstado string

const (
	ParadaPendiente ParadaEstado = "pendiente"
	ParadaEnCamino  ParadaEstado = "en_camino"
	ParadaEntregada ParadaEstado = "entregada"
	ParadaFallida   ParadaEstado = "fallida"
	ParadaSaltada   ParadaEstado = "saltada"
)

// Remito is a delivery order. Numero is unique across the active set and the
// archive, stored normalized (trimmed, upper-cased).
type Remito struct {
	ID                   int64           `db:"id" json:"id"`
	Numero               string          `db:"numero" json:"numero"`
	Cliente              string          `db:"cliente" json:"cliente"`
	DireccionRaw         string          `db:"direccion_raw" json:"direccion_raw"`
	DireccionNormalizada string          `db:"direccion_normalizada" json:"direccion_normalizada"`
	Localidad            string          `db:"localidad" json:"localidad"`
	Provincia            string          `db:"provincia" json:"provincia"`
	Telefono             string          `db:"telefono" json:"telefono"`
	Observaciones        string          `db:"observaciones" json:"observaciones"`
	ObservacionesEntrega string          `db:"observaciones_entrega" json:"observaciones_entrega"`
	CarrierID            *int64          `db:"carrier_id" json:"carrier_id"`
	EstadoClasificacion  Clasificacion   `db:"estado_clasificacion" json:"estado_clasificacion"`
	MotivoClasificacion  string          `db:"motivo_clasificacion" json:"motivo_clasificacion"`
	EstadoLifecycle      Lifecycle       `db:"estado_lifecycle" json:"estado_lifecycle"`
	Lat                  *float64        `db:"lat" json:"lat"`
	Lng                  *float64        `db:"lng" json:"lng"`
	GeocodeFormatted     string          `db:"geocode_formatted" json:"geocode_formatted"`
	GeocodeProvider      string          `db:"geocode_provider" json:"geocode_provider"`
	GeocodeScore         *float64        `db:"geocode_score" json:"geocode_score"`
	GeocodeHasStreetNum  bool            `db:"geocode_has_street_num" json:"geocode_has_street_num"`
	VentanaTipo          VentanaTipo     `db:"ventana_tipo" json:"ventana_tipo"`
	VentanaDesdeMin      *int            `db:"ventana_desde_min" json:"ventana_desde_min"`
	VentanaHastaMin      *int            `db:"ventana_hasta_min" json:"ventana_hasta_min"`
	VentanaRaw           string          `db:"ventana_raw" json:"ventana_raw"`
	LlamarAntes          bool            `db:"llamar_antes" json:"llamar_antes"`
	EsUrgente            bool            `db:"es_urgente" json:"es_urgente"`
	EsPrioridad          bool            `db:"es_prioridad" json:"es_prioridad"`
	Source               string          `db:"source" json:"source"`
	MotivoExclusionRuta  string          `db:"motivo_exclusion_ruta" json:"motivo_exclusion_ruta"`
	TranspJSON           json.RawMessage `db:"transp_json" json:"transp_json"`
	FechaIngreso         time.Time       `db:"fecha_ingreso" json:"fecha_ingreso"`
	FechaArmado          *time.Time      `db:"fecha_armado" json:"fecha_armado"`
	FechaEntregado       *time.Time      `db:"fecha_entregado" json:"fecha_entregado"`
	FechaHistorico       *time.Time      `db:"fecha_historico" json:"fecha_historico"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// Transporte returns the carrier free text captured at ingest, kept inside
// TranspJSON under the "transporte" key.
func (r *Remito) Transporte() string {
	if len(r.TranspJSON) == 0 {
		return ""
	}
	var m struct {
		Transporte string `json:"transporte"`
	}
	if err := json.Unmarshal(r.TranspJSON, &m); err != nil {
		return ""
	}
	return m.Transporte
}

// SetTransporte stores the carrier free text, preserving any other keys the
// payload carries.
func (r *Remito) SetTransporte(t string) {
	m := map[string]interface{}{}
	if len(r.TranspJSON) > 0 {
		_ = json.Unmarshal(r.TranspJSON, &m)
	}
	m["transporte"] = t
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	r.TranspJSON = b
}

// Coordenadas reports whether the remito has a geocoded position.
func (r *Remito) Coordenadas() (lat, lng float64, ok bool) {
	if r.Lat == nil || r.Lng == nil {
		return 0, 0, false
	}
	return *r.Lat, *r.Lng, true
}

// Carrier is a delivery company the classifier can resolve. NombreCanonico is
// unique. PrioridadRegex orders the regex cascade: lower wins.
type Carrier struct {
	ID             int64     `db:"id" json:"id"`
	NombreCanonico string    `db:"nombre_canonico" json:"nombre_canonico"`
	Aliases        JSONList  `db:"aliases" json:"aliases"`
	RegexPattern   *string   `db:"regex_pattern" json:"regex_pattern"`
	EsExterno      bool      `db:"es_externo" json:"es_externo"`
	EsPickup       bool      `db:"es_pickup" json:"es_pickup"`
	Activo         bool      `db:"activo" json:"activo"`
	PrioridadRegex int       `db:"prioridad_regex" json:"prioridad_regex"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// PedidoListo is an externally ingested attribute bag keyed by remito number,
// merged into the remito during the pipeline.
type PedidoListo struct {
	ID            int64           `db:"id" json:"id"`
	RemitoID      *int64          `db:"remito_id" json:"remito_id"`
	NumeroRemito  string          `db:"numero_remito" json:"numero_remito"`
	Cliente       string          `db:"cliente" json:"cliente"`
	Domicilio     string          `db:"domicilio" json:"domicilio"`
	Localidad     string          `db:"localidad" json:"localidad"`
	Provincia     string          `db:"provincia" json:"provincia"`
	Observaciones string          `db:"observaciones" json:"observaciones"`
	Transporte    string          `db:"transporte" json:"transporte"`
	RawData       json.RawMessage `db:"raw_data" json:"raw_data"`
	SyncedAt      time.Time       `db:"synced_at" json:"synced_at"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Ruta is the daily route aggregate. Stops and exclusions are children and
// are deleted in cascade with the route.
type Ruta struct {
	ID                  int64           `db:"id" json:"id"`
	Fecha               time.Time       `db:"fecha" json:"fecha"`
	Estado              RutaEstado      `db:"estado" json:"estado"`
	ConfigSnapshot      json.RawMessage `db:"config_snapshot" json:"config_snapshot"`
	DepositoLat         float64         `db:"deposito_lat" json:"deposito_lat"`
	DepositoLng         float64         `db:"deposito_lng" json:"deposito_lng"`
	TotalParadas        int             `db:"total_paradas" json:"total_paradas"`
	TotalExcluidos      int             `db:"total_excluidos" json:"total_excluidos"`
	DuracionEstimadaMin *int            `db:"duracion_estimada_min" json:"duracion_estimada_min"`
	DistanciaTotalKm    *float64        `db:"distancia_total_km" json:"distancia_total_km"`
	GmapsLinks          JSONList        `db:"gmaps_links" json:"gmaps_links"`
	RutaGeom            json.RawMessage `db:"ruta_geom" json:"ruta_geom"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt         *time.Time      `db:"completed_at" json:"completed_at"`

	Paradas   []RutaParada   `db:"-" json:"paradas"`
	Excluidos []RutaExcluido `db:"-" json:"excluidos"`
}

// RutaParada is one sequenced stop. Snapshot fields are immutable once the
// route is committed; only Estado changes afterwards.
type RutaParada struct {
	ID                       int64        `db:"id" json:"id"`
	RutaID                   int64        `db:"ruta_id" json:"ruta_id"`
	RemitoID                 int64        `db:"remito_id" json:"remito_id"`
	RemitoNumero             string       `db:"remito_numero" json:"remito_numero"`
	Orden                    int          `db:"orden" json:"orden"`
	LatSnapshot              float64      `db:"lat_snapshot" json:"lat_snapshot"`
	LngSnapshot              float64      `db:"lng_snapshot" json:"lng_snapshot"`
	ClienteSnapshot          string       `db:"cliente_snapshot" json:"cliente_snapshot"`
	DireccionSnapshot        string       `db:"direccion_snapshot" json:"direccion_snapshot"`
	ObservacionesSnapshot    string       `db:"observaciones_snapshot" json:"observaciones_snapshot"`
	MinutosDesdeAnterior     float64      `db:"minutos_desde_anterior" json:"minutos_desde_anterior"`
	TiempoEsperaMin          float64      `db:"tiempo_espera_min" json:"tiempo_espera_min"`
	MinutosAcumulados        float64      `db:"minutos_acumulados" json:"minutos_acumulados"`
	DistanciaDesdeAnteriorKm float64      `db:"distancia_desde_anterior_km" json:"distancia_desde_anterior_km"`
	EsUrgente                bool         `db:"es_urgente" json:"es_urgente"`
	EsPrioridad              bool         `db:"es_prioridad" json:"es_prioridad"`
	VentanaTipo              VentanaTipo  `db:"ventana_tipo" json:"ventana_tipo"`
	Estado                   ParadaEstado `db:"estado" json:"estado"`
	CreatedAt                time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time    `db:"updated_at" json:"updated_at"`
}

// RutaExcluido records a candidate left out of a route and why.
type RutaExcluido struct {
	ID                    int64     `db:"id" json:"id"`
	RutaID                int64     `db:"ruta_id" json:"ruta_id"`
	RemitoID              int64     `db:"remito_id" json:"remito_id"`
	RemitoNumero          string    `db:"remito_numero" json:"remito_numero"`
	ClienteSnapshot       string    `db:"cliente_snapshot" json:"cliente_snapshot"`
	DireccionSnapshot     string    `db:"direccion_snapshot" json:"direccion_snapshot"`
	ObservacionesSnapshot string    `db:"observaciones_snapshot" json:"observaciones_snapshot"`
	Motivo                string    `db:"motivo" json:"motivo"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

// GeoCacheEntry is a persisted geocoding result keyed by the normalized cache
// key. Expired rows are treated as absent.
type GeoCacheEntry struct {
	ID               int64     `db:"id" json:"id"`
	KeyNormalizada   string    `db:"key_normalizada" json:"key_normalizada"`
	QueryOriginal    string    `db:"query_original" json:"query_original"`
	Lat              float64   `db:"lat" json:"lat"`
	Lng              float64   `db:"lng" json:"lng"`
	FormattedAddress string    `db:"formatted_address" json:"formatted_address"`
	HasStreetNumber  bool      `db:"has_street_number" json:"has_street_number"`
	Provider         string    `db:"provider" json:"provider"`
	Score            float64   `db:"score" json:"score"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	ExpiresAt        time.Time `db:"expires_at" json:"expires_at"`
}

// TravelCacheEntry is a persisted origin→destination duration. Reads match
// origin and destination within a small coordinate tolerance regardless of
// provider.
type TravelCacheEntry struct {
	ID          int64     `db:"id" json:"id"`
	OriginLat   float64   `db:"origin_lat" json:"origin_lat"`
	OriginLng   float64   `db:"origin_lng" json:"origin_lng"`
	DestLat     float64   `db:"dest_lat" json:"dest_lat"`
	DestLng     float64   `db:"dest_lng" json:"dest_lng"`
	DurationSec float64   `db:"duration_sec" json:"duration_sec"`
	Provider    string    `db:"provider" json:"provider"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
}

// HistoricoEntregado is the archive snapshot of a delivered remito. It carries
// the superset of snapshot columns so a restore loses nothing.
type HistoricoEntregado struct {
	ID                int64           `db:"id" json:"id"`
	RemitoID          *int64          `db:"remito_id" json:"remito_id"`
	Numero            string          `db:"numero" json:"numero"`
	Cliente           string          `db:"cliente" json:"cliente"`
	DireccionSnapshot string          `db:"direccion_snapshot" json:"direccion_snapshot"`
	Localidad         string          `db:"localidad" json:"localidad"`
	Provincia         string          `db:"provincia" json:"provincia"`
	Observaciones     string          `db:"observaciones" json:"observaciones"`
	ObsEntrega        string          `db:"obs_entrega" json:"obs_entrega"`
	Lat               *float64        `db:"lat" json:"lat"`
	Lng               *float64        `db:"lng" json:"lng"`
	CarrierNombre     string          `db:"carrier_nombre" json:"carrier_nombre"`
	EsUrgente         bool            `db:"es_urgente" json:"es_urgente"`
	EsPrioridad       bool            `db:"es_prioridad" json:"es_prioridad"`
	EstadoAlArchivar  string          `db:"estado_al_archivar" json:"estado_al_archivar"`
	TranspJSON        json.RawMessage `db:"transp_json" json:"transp_json"`
	FechaIngreso      *time.Time      `db:"fecha_ingreso" json:"fecha_ingreso"`
	FechaArmado       *time.Time      `db:"fecha_armado" json:"fecha_armado"`
	FechaEntregado    time.Time       `db:"fecha_entregado" json:"fecha_entregado"`
	FechaArchivado    time.Time       `db:"fecha_archivado" json:"fecha_archivado"`
	MesCierre         string          `db:"mes_cierre" json:"mes_cierre"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// ConfigEntry is one row of the typed key/value route configuration.
type ConfigEntry struct {
	ID          int64     `db:"id" json:"id"`
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	Tipo        string    `db:"tipo" json:"tipo"`
	Descripcion string    `db:"descripcion" json:"descripcion"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// BillingTrace is an append-only record of one chargeable external call.
type BillingTrace struct {
	ID            int64           `db:"id" json:"id"`
	RunID         string          `db:"run_id" json:"run_id"`
	Stage         string          `db:"stage" json:"stage"`
	Service       string          `db:"service" json:"service"`
	SKU           string          `db:"sku" json:"sku"`
	Units         int             `db:"units" json:"units"`
	ResponseCode  int             `db:"response_code" json:"response_code"`
	LatencyMs     int64           `db:"latency_ms" json:"latency_ms"`
	EstimatedCost float64         `db:"estimated_cost" json:"estimated_cost"`
	Metadata      json.RawMessage `db:"metadata" json:"metadata"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
