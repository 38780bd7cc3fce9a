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

// Package main is the entry point of the remitero service: the remito
// classification pipeline and daily route builder for last-mile distribution
// around Mendoza.
//
// This file orchestrates the whole process:
//  1. Load configuration (YAML file, .env, environment).
//  2. Open Postgres and apply the embedded migrations.
//  3. Wire the optional infrastructure: Redis hot cache, Kafka billing
//     stream, geocoding providers, distance matrix provider, AI fallback.
//  4. Start the HTTP API and the optional metrics endpoint.
//  5. Shut everything down gracefully on SIGINT/SIGTERM.
//
// Every external dependency degrades: no Redis means SQL-only caching, no
// Kafka means billing traces go to the log, no provider credentials mean the
// haversine fallback. The service always boots.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"remitero/internal/ai"
	"remitero/internal/api"
	"remitero/internal/billing"
	"remitero/internal/cache"
	"remitero/internal/carrier"
	"remitero/internal/config"
	"remitero/internal/geocode"
	"remitero/internal/matrix"
	"remitero/internal/pipeline"
	"remitero/internal/routing"
	"remitero/internal/store"
	"remitero/internal/telemetry"
)

func main() {
	// 1. Flags override file and environment configuration.
	configPath := flag.String("config", "", "Path to the YAML config file (optional)")
	httpAddr := flag.String("http_addr", "", "HTTP listen address, overrides config (e.g., :8080)")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g., :9090)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("cargando configuración")
	}
	if *httpAddr != "" {
		cfg.ListenAddr = *httpAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	// 2. Postgres is the one hard dependency.
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL es obligatoria")
	}
	st, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("conectando a postgres")
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		log.WithError(err).Fatal("aplicando migraciones")
	}

	// 3. Optional infrastructure, each with its degradation path.
	var kv cache.KV
	if cfg.RedisAddr != "" {
		kv = cache.NewRedisKV(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		log.WithField("addr", cfg.RedisAddr).Info("caché caliente redis habilitado")
	}
	hot := cache.NewHotGeoCache(kv, st, log)

	var producer billing.Producer
	if len(cfg.KafkaBrokers) > 0 {
		sink := billing.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer sink.Close()
		producer = sink
		log.WithField("topic", cfg.KafkaTopic).Info("stream de billing kafka habilitado")
	} else {
		producer = billing.NewLogSink(log)
	}
	recorder := billing.NewRecorder(st, producer, log)

	rutaCfg := config.NewRutaConfigService(st)
	ctx := context.Background()
	routeCfg, err := rutaCfg.Get(ctx)
	if err != nil {
		log.WithError(err).Warn("leyendo config de ruta, usando defaults")
		routeCfg = config.DefaultRouteConfig()
	}

	geocoder := geocode.NewService(hot, buildGeoProviders(cfg), recorder, log)
	geocoder.CacheTTL = func() time.Duration {
		if c, err := rutaCfg.Get(context.Background()); err == nil && c.GeocodeCacheDays > 0 {
			return time.Duration(c.GeocodeCacheDays) * 24 * time.Hour
		}
		return geocode.DefaultCacheTTL
	}

	matrixSvc := matrix.NewService(st, buildMatrixProvider(cfg, routeCfg), recorder, log)
	matrixSvc.SpeedKmh = func() float64 {
		if c, err := rutaCfg.Get(context.Background()); err == nil && c.VelocidadUrbanaKmh > 0 {
			return c.VelocidadUrbanaKmh
		}
		return 40
	}
	matrixSvc.BlockSize = func() int {
		if c, err := rutaCfg.Get(context.Background()); err == nil && c.DMBlockSize > 0 {
			return c.DMBlockSize
		}
		return matrix.DefaultBlockSize
	}

	var aiClassifier carrier.AIClassifier
	if client := ai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, log); client.Enabled() {
		aiClassifier = client
		log.WithField("model", cfg.OpenAIModel).Info("clasificador AI habilitado")
	}
	classifier := carrier.NewClassifier(st, aiClassifier, log)

	// 4. Domain services and the HTTP surface.
	pipe := pipeline.NewService(st, geocoder, classifier, log)
	builder := routing.NewBuilder(st, rutaCfg, matrixSvc, log)
	server := api.NewServer(st, pipe, builder, geocoder, rutaCfg, log)

	// Expired cache rows are compacted in the background; both caches treat
	// expired rows as absent, so the deletes are purely for table size.
	compactionCtx, stopCompaction := context.WithCancel(context.Background())
	defer stopCompaction()
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-compactionCtx.Done():
				return
			case <-ticker.C:
				if n, err := st.PurgeExpiredGeo(compactionCtx); err == nil && n > 0 {
					log.WithField("filas", n).Info("cache de geocoding compactado")
				}
				if n, err := st.PurgeExpiredPairs(compactionCtx); err == nil && n > 0 {
					log.WithField("filas", n).Info("cache de matriz compactado")
				}
			}
		}
	}()

	telemetry.StartMetricsEndpoint(cfg.MetricsAddr)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("API remitero escuchando")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("servidor HTTP")
		}
	}()

	// 5. Graceful shutdown.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("apagando servidor")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("apagado del servidor HTTP")
	}
	log.Info("servidor detenido")
}

// buildGeoProviders assembles the cascade in the configured order. Providers
// without credentials stay in the list; the service skips them at call time.
func buildGeoProviders(cfg config.App) []geocode.Provider {
	providers := make([]geocode.Provider, 0, len(cfg.GeocodeProviders))
	for _, name := range cfg.GeocodeProviders {
		switch name {
		case "ors":
			providers = append(providers, geocode.NewORS("", cfg.ORSAPIKey))
		case "mapbox":
			providers = append(providers, geocode.NewMapbox("", cfg.MapboxToken))
		case "google":
			providers = append(providers, geocode.NewGoogle("", cfg.GoogleAPIKey))
		}
	}
	return providers
}

// buildMatrixProvider picks the matrix backend from the route config,
// falling back to ORS.
func buildMatrixProvider(cfg config.App, routeCfg config.RouteConfig) matrix.Provider {
	switch routeCfg.ProveedorMatrix {
	case "osrm":
		return matrix.NewOSRM(cfg.OSRMBaseURL, cfg.OSRMBaseURL != "")
	case "google":
		return matrix.NewGoogle("", cfg.GoogleAPIKey)
	case "mapbox":
		return matrix.NewMapbox("", cfg.MapboxToken)
	}
	return matrix.NewORS("", cfg.ORSAPIKey)
}
