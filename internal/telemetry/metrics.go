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

// Package telemetry exposes the Prometheus metrics of the service on an
// opt-in address. When no metrics address is configured nothing listens and
// the counters just accumulate in-process.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProviderCalls counts outbound calls per service (geocode, matrix, ai),
	// provider and outcome (ok, empty, error, rejected, breaker_open).
	ProviderCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remitero_provider_calls_total",
		Help: "Outbound provider calls by service, provider and outcome",
	}, []string{"service", "provider", "outcome"})

	// ProviderLatency observes outbound call latency per service/provider.
	ProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remitero_provider_latency_seconds",
		Help:    "Latency of outbound provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "provider"})

	// CacheLookups counts lookups per cache (geo_hot, geocode, matrix) and
	// result (hit, miss).
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remitero_cache_lookups_total",
		Help: "Cache lookups by cache name and result",
	}, []string{"cache", "result"})

	// PipelineRemitos counts pipeline outcomes per terminal classification.
	PipelineRemitos = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remitero_pipeline_remitos_total",
		Help: "Remitos processed by terminal classification",
	}, []string{"clasificacion"})

	// RouteGenerations counts route builds by outcome (ok, error, empty).
	RouteGenerations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remitero_route_generations_total",
		Help: "Route generation attempts by outcome",
	}, []string{"outcome"})

	// RouteStops observes how many stops each generated route carries.
	RouteStops = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "remitero_route_stops",
		Help:    "Stops per generated route",
		Buckets: []float64{1, 2, 4, 8, 16, 24, 32, 48, 64},
	})
)

func init() {
	prometheus.MustRegister(
		ProviderCalls, ProviderLatency, CacheLookups,
		PipelineRemitos, RouteGenerations, RouteStops,
	)
}

// StartMetricsEndpoint serves /metrics on addr in a background goroutine.
// Empty addr disables the endpoint.
func StartMetricsEndpoint(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
