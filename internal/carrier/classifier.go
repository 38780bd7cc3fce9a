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

// Package carrier resolves which delivery company handles a remito. The
// cascade runs: hardcoded pickup regex, database carrier regexes by priority,
// AI fallback above a confidence floor, then the locality rule.
package carrier

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"remitero/internal/address"
	"remitero/internal/model"
	"remitero/internal/window"
)

// Canonical carrier names the cascade falls back on. They must exist in the
// carriers table; the seed migration guarantees it.
const (
	PickupName   = "RETIRO EN GALPON"
	OwnFleetName = "ENVIO PROPIO"
	UnknownName  = "DESCONOCIDO"
)

// AIConfidenceFloor is the minimum confidence an AI classification needs to
// be trusted over the province rule.
const AIConfidenceFloor = 0.85

// Detection is the outcome of one classification.
type Detection struct {
	CarrierID      *int64
	NombreCanonico string
	Source         string // "regex", "ai", "rule", "default"
	Confidence     float64
}

// Catalog serves the carrier table. Implementations may cache; the cascade
// only needs a priority-ordered snapshot and name lookup.
type Catalog interface {
	// ActiveWithRegex returns active carriers carrying a regex pattern,
	// ordered by prioridad_regex ascending.
	ActiveWithRegex(ctx context.Context) ([]model.Carrier, error)
	// ByName returns the carrier with the exact canonical name, or
	// model.ErrNotFound.
	ByName(ctx context.Context, nombre string) (*model.Carrier, error)
}

// AIClassification is the parsed answer of the AI fallback.
type AIClassification struct {
	Transportista string
	Confianza     float64
}

// AIClassifier is the optional AI fallback. A nil result with a nil error
// means the classifier abstained.
type AIClassifier interface {
	ClassifyTransport(ctx context.Context, texto string) (*AIClassification, error)
}

// Classifier runs the detection cascade.
type Classifier struct {
	catalog Catalog
	ai      AIClassifier // may be nil
	log     *logrus.Logger
}

// NewClassifier wires the cascade. ai may be nil when no API key is
// configured; the cascade then skips straight to the province rule.
func NewClassifier(catalog Catalog, ai AIClassifier, log *logrus.Logger) *Classifier {
	return &Classifier{catalog: catalog, ai: ai, log: log}
}

// DetectPickup reports whether the text alone marks a warehouse pickup.
func DetectPickup(texto string) bool {
	return texto != "" && window.RePickup.MatchString(strings.ToUpper(texto))
}

// Detect resolves the carrier for the given observation text and locality.
// It never returns an error for provider trouble; every failure path falls
// through to the next cascade step.
func (c *Classifier) Detect(ctx context.Context, texto, localidad string) Detection {
	upper := strings.ToUpper(texto)

	if texto != "" && window.RePickup.MatchString(upper) {
		return c.named(ctx, PickupName, "regex", 1.0)
	}

	carriers, err := c.catalog.ActiveWithRegex(ctx)
	if err != nil {
		c.log.WithError(err).Warn("carrier: no se pudo leer el catalogo, aplicando regla final")
		return c.finalRule(ctx, localidad)
	}

	for _, ca := range carriers {
		if ca.RegexPattern == nil || *ca.RegexPattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + *ca.RegexPattern)
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"carrier": ca.NombreCanonico,
				"pattern": *ca.RegexPattern,
			}).Warn("carrier: regex invalida, se omite")
			continue
		}
		if re.MatchString(upper) {
			id := ca.ID
			return Detection{CarrierID: &id, NombreCanonico: ca.NombreCanonico, Source: "regex", Confidence: 1.0}
		}
	}

	if c.ai != nil {
		if res, err := c.ai.ClassifyTransport(ctx, texto); err != nil {
			c.log.WithError(err).Warn("carrier: fallback AI fallo")
		} else if res != nil && res.Confianza >= AIConfidenceFloor {
			for _, ca := range carriers {
				if strings.EqualFold(ca.NombreCanonico, res.Transportista) {
					id := ca.ID
					return Detection{CarrierID: &id, NombreCanonico: ca.NombreCanonico, Source: "ai", Confidence: res.Confianza}
				}
			}
			c.log.WithField("transportista", res.Transportista).
				Warn("carrier: la AI propuso un nombre fuera del catalogo")
		}
	}

	return c.finalRule(ctx, localidad)
}

// finalRule applies the locality fallback: anything outside the operating
// region resolves to the unknown sentinel, everything else goes on the own
// fleet. The sentinel is not terminal; the pipeline keeps walking with it.
func (c *Classifier) finalRule(ctx context.Context, localidad string) Detection {
	p := strings.TrimSpace(localidad)
	if p != "" && !address.HasLocalityToken(p) {
		return c.named(ctx, UnknownName, "rule", 0.5)
	}
	return c.named(ctx, OwnFleetName, "default", 0.5)
}

func (c *Classifier) named(ctx context.Context, nombre, source string, conf float64) Detection {
	d := Detection{NombreCanonico: nombre, Source: source, Confidence: conf}
	if ca, err := c.catalog.ByName(ctx, nombre); err == nil {
		id := ca.ID
		d.CarrierID = &id
	}
	return d
}
