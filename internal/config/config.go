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

// Package config loads the process configuration (listen addresses,
// connection strings, provider credentials) from an optional YAML file, a
// .env file and the environment, and serves the typed route configuration
// stored in the config_ruta table.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App is the process-level configuration. Route behavior lives in
// RouteConfig, not here.
type App struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	DatabaseURL string `yaml:"database_url"`
	RedisAddr   string `yaml:"redis_addr"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	ORSAPIKey    string `yaml:"ors_api_key"`
	MapboxToken  string `yaml:"mapbox_token"`
	GoogleAPIKey string `yaml:"google_api_key"`
	OSRMBaseURL  string `yaml:"osrm_base_url"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`

	// GeocodeProviders is the cascade order; entries without credentials
	// are skipped at call time.
	GeocodeProviders []string `yaml:"geocode_providers"`
}

func defaults() App {
	return App{
		ListenAddr:       ":8080",
		LogLevel:         "info",
		KafkaTopic:       "remitero.billing",
		GeocodeProviders: []string{"ors", "mapbox", "google"},
		OpenAIModel:      "gpt-4o-mini",
	}
}

// Load assembles the App config: defaults, then the YAML file (if given),
// then .env, then process environment. Later sources win.
func Load(yamlPath string) (App, error) {
	cfg := defaults()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("config: leyendo %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parseando %s: %w", yamlPath, err)
		}
	}

	// .env is optional; a missing file is the normal case in production.
	_ = godotenv.Load()

	overlayEnv(&cfg)
	return cfg, nil
}

func overlayEnv(cfg *App) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.ListenAddr, "LISTEN_ADDR")
	set(&cfg.MetricsAddr, "METRICS_ADDR")
	set(&cfg.LogLevel, "LOG_LEVEL")
	set(&cfg.DatabaseURL, "DATABASE_URL")
	set(&cfg.RedisAddr, "REDIS_ADDR")
	set(&cfg.KafkaTopic, "KAFKA_TOPIC")
	set(&cfg.ORSAPIKey, "ORS_API_KEY")
	set(&cfg.MapboxToken, "MAPBOX_TOKEN")
	set(&cfg.GoogleAPIKey, "GOOGLE_MAPS_API_KEY")
	set(&cfg.OSRMBaseURL, "OSRM_BASE_URL")
	set(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	set(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	set(&cfg.OpenAIModel, "OPENAI_MODEL")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("GEOCODE_PROVIDERS"); v != "" {
		cfg.GeocodeProviders = splitList(v)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
