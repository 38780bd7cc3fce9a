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

package carrier

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"remitero/internal/model"
)

func strPtr(s string) *string { return &s }

type fakeCatalog struct {
	carriers []model.Carrier
	byName   map[string]model.Carrier
}

func (f *fakeCatalog) ActiveWithRegex(context.Context) ([]model.Carrier, error) {
	return f.carriers, nil
}

func (f *fakeCatalog) ByName(_ context.Context, nombre string) (*model.Carrier, error) {
	if c, ok := f.byName[nombre]; ok {
		return &c, nil
	}
	return nil, model.ErrNotFound
}

type fakeAI struct {
	res *AIClassification
	err error
}

func (f *fakeAI) ClassifyTransport(context.Context, string) (*AIClassification, error) {
	return f.res, f.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testCatalog() *fakeCatalog {
	cs := []model.Carrier{
		{ID: 2, NombreCanonico: "ANDREANI", RegexPattern: strPtr(`\bANDREANI\b`), PrioridadRegex: 20, Activo: true},
		{ID: 3, NombreCanonico: "OCA", RegexPattern: strPtr(`\bOCA\b`), PrioridadRegex: 20, Activo: true},
		{ID: 4, NombreCanonico: "VIA CARGO", RegexPattern: strPtr(`VIA\s+CARGO`), PrioridadRegex: 20, Activo: true},
	}
	byName := map[string]model.Carrier{
		PickupName:   {ID: 1, NombreCanonico: PickupName},
		OwnFleetName: {ID: 14, NombreCanonico: OwnFleetName},
		UnknownName:  {ID: 15, NombreCanonico: UnknownName},
	}
	return &fakeCatalog{carriers: cs, byName: byName}
}

func TestDetectPickupWinsOverEverything(t *testing.T) {
	c := NewClassifier(testCatalog(), nil, quietLogger())
	d := c.Detect(context.Background(), "EL CLIENTE RETIRA EN DEPÓSITO. ENVIAR POR ANDREANI SI NO.", "MENDOZA")
	if d.NombreCanonico != PickupName || d.Source != "regex" {
		t.Fatalf("pickup must win: %+v", d)
	}
	if d.CarrierID == nil || *d.CarrierID != 1 {
		t.Fatalf("pickup carrier id: %+v", d)
	}
}

func TestDetectDBRegexByPriority(t *testing.T) {
	c := NewClassifier(testCatalog(), nil, quietLogger())
	d := c.Detect(context.Background(), "despachar por andreani sucursal centro", "MENDOZA")
	if d.NombreCanonico != "ANDREANI" || d.Source != "regex" || d.Confidence != 1.0 {
		t.Fatalf("unexpected: %+v", d)
	}
}

func TestDetectMalformedRegexSkipped(t *testing.T) {
	cat := testCatalog()
	// Malformed pattern ahead of a valid one: must be skipped, not abort.
	cat.carriers = append([]model.Carrier{
		{ID: 9, NombreCanonico: "ROTO", RegexPattern: strPtr(`(OCA`), PrioridadRegex: 5, Activo: true},
	}, cat.carriers...)
	c := NewClassifier(cat, nil, quietLogger())
	d := c.Detect(context.Background(), "enviar por OCA", "MENDOZA")
	if d.NombreCanonico != "OCA" {
		t.Fatalf("malformed regex must be skipped: %+v", d)
	}
}

func TestDetectAIFallback(t *testing.T) {
	ai := &fakeAI{res: &AIClassification{Transportista: "via cargo", Confianza: 0.92}}
	c := NewClassifier(testCatalog(), ai, quietLogger())
	d := c.Detect(context.Background(), "llevar al transporte de siempre", "MENDOZA")
	if d.NombreCanonico != "VIA CARGO" || d.Source != "ai" {
		t.Fatalf("ai fallback: %+v", d)
	}
}

func TestDetectAIBelowFloorIgnored(t *testing.T) {
	ai := &fakeAI{res: &AIClassification{Transportista: "ANDREANI", Confianza: 0.80}}
	c := NewClassifier(testCatalog(), ai, quietLogger())
	d := c.Detect(context.Background(), "llevar al transporte", "MENDOZA")
	if d.Source != "default" || d.NombreCanonico != OwnFleetName {
		t.Fatalf("low confidence must fall through: %+v", d)
	}
}

func TestDetectAIUnknownNameIgnored(t *testing.T) {
	ai := &fakeAI{res: &AIClassification{Transportista: "CORREO DE MARTE", Confianza: 0.99}}
	c := NewClassifier(testCatalog(), ai, quietLogger())
	d := c.Detect(context.Background(), "texto sin pistas", "MENDOZA")
	if d.Source != "default" {
		t.Fatalf("names outside the catalog must fall through: %+v", d)
	}
}

func TestDetectLocalityRule(t *testing.T) {
	c := NewClassifier(testCatalog(), nil, quietLogger())
	d := c.Detect(context.Background(), "sin observaciones utiles", "BUENOS AIRES")
	if d.NombreCanonico != UnknownName || d.Source != "rule" {
		t.Fatalf("out-of-region: %+v", d)
	}
	d = c.Detect(context.Background(), "sin observaciones utiles", "mendoza")
	if d.NombreCanonico != OwnFleetName || d.Source != "default" {
		t.Fatalf("in-region default: %+v", d)
	}
	// Any metro locality counts as in-region.
	d = c.Detect(context.Background(), "sin observaciones utiles", "Godoy Cruz")
	if d.NombreCanonico != OwnFleetName {
		t.Fatalf("metro locality: %+v", d)
	}
	// Empty locality counts as local.
	d = c.Detect(context.Background(), "", "")
	if d.NombreCanonico != OwnFleetName {
		t.Fatalf("empty locality: %+v", d)
	}
}
