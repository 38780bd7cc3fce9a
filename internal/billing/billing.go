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

// Package billing records one trace per chargeable external call. Writes are
// best-effort on two sinks: the billing_trace table and an optional Kafka
// topic. A failed trace never fails the operation that produced it.
package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"remitero/internal/model"
)

// costPerUnit is the estimated USD cost per unit, keyed by service_sku.
// Unknown pairs cost zero.
var costPerUnit = map[string]float64{
	"google_geocode":         0.005,
	"google_distance_matrix": 0.005,
	"ors_geocode":            0.0,
	"ors_distance_matrix":    0.0,
	"mapbox_geocode":         0.00075,
	"mapbox_distance_matrix": 0.00075,
	"openai_classify":        0.00000015,
	"openai_normalize":       0.00000015,
}

// EstimateCost returns the estimated USD cost for units of a service/sku pair.
func EstimateCost(service, sku string, units int) float64 {
	return costPerUnit[service+"_"+sku] * float64(units)
}

// NewRunID mints the identifier shared by every trace of one pipeline run.
func NewRunID() string { return uuid.NewString() }

// TraceStore persists traces. Implemented by the Postgres store.
type TraceStore interface {
	InsertTrace(ctx context.Context, t *model.BillingTrace) error
}

// Producer publishes traces on a stream. Implemented over kafka-go, with a
// logging fallback when no broker is configured.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

// Recorder is the Trace entry point handed to the services that call out.
type Recorder interface {
	Trace(ctx context.Context, t model.BillingTrace)
}

// SinkRecorder fans each trace out to the store and the producer.
type SinkRecorder struct {
	store    TraceStore
	producer Producer // may be nil
	log      *logrus.Logger
}

// NewRecorder wires the recorder. producer may be nil.
func NewRecorder(store TraceStore, producer Producer, log *logrus.Logger) *SinkRecorder {
	return &SinkRecorder{store: store, producer: producer, log: log}
}

// Trace fills in the estimated cost and timestamp and writes the trace to
// both sinks. Failures are logged and swallowed.
func (r *SinkRecorder) Trace(ctx context.Context, t model.BillingTrace) {
	if t.Units == 0 {
		t.Units = 1
	}
	t.EstimatedCost = EstimateCost(t.Service, t.SKU, t.Units)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	if r.store != nil {
		if err := r.store.InsertTrace(ctx, &t); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"run_id":  t.RunID,
				"service": t.Service,
				"sku":     t.SKU,
			}).Warn("billing: no se pudo guardar la traza")
		}
	}

	if r.producer != nil {
		payload, err := json.Marshal(t)
		if err != nil {
			r.log.WithError(err).Warn("billing: traza no serializable")
			return
		}
		if err := r.producer.Publish(ctx, t.RunID, payload); err != nil {
			r.log.WithError(err).Warn("billing: no se pudo publicar la traza")
		}
	}
}
