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

package window

import (
	"testing"

	"remitero/internal/model"
)

func TestParsePickup(t *testing.T) {
	for _, s := range []string{
		"EL CLIENTE RETIRA EN DEPÓSITO",
		"se retira",
		"RETIRO CLIENTE",
		"PASA A RETIRAR",
		"RETIRA POR LOCAL",
	} {
		if got := Parse(s); got.Kind != KindPickup {
			t.Errorf("Parse(%q).Kind = %q, want PICKUP", s, got.Kind)
		}
	}
	// The bare infinitive in other contexts must not trigger pickup.
	if got := Parse("COORDINAR PARA RETIRAR MUESTRAS EN OBRA"); got.Kind == KindPickup {
		t.Errorf("RETIRAR outside the pickup phrasing must not classify as pickup")
	}
}

func TestParseExplicitRange(t *testing.T) {
	r := Parse("Entregar 9:00-12:30 por favor")
	if r.Kind != KindVentana || *r.DesdeMin != 540 || *r.HastaMin != 750 {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.VentanaTipo != model.VentanaAM {
		t.Fatalf("morning range must classify AM, got %s", r.VentanaTipo)
	}
	// En dash variant.
	r = Parse("14:00 – 17:00")
	if r.Kind != KindVentana || *r.DesdeMin != 840 || r.VentanaTipo != model.VentanaPM {
		t.Fatalf("en dash range: %+v", r)
	}
}

func TestParseOpenEnded(t *testing.T) {
	r := Parse("DESDE LAS 15:00")
	if *r.DesdeMin != 900 || *r.HastaMin != EndOfDay || r.VentanaTipo != model.VentanaPM {
		t.Fatalf("desde: %+v", r)
	}
	r = Parse("a partir de 10:30")
	if *r.DesdeMin != 630 || *r.HastaMin != EndOfDay {
		t.Fatalf("a partir de: %+v", r)
	}
	r = Parse("HASTA LAS 11:00")
	if *r.DesdeMin != 0 || *r.HastaMin != 660 || r.VentanaTipo != model.VentanaAM {
		t.Fatalf("hasta: %+v", r)
	}
}

func TestParseVagueWords(t *testing.T) {
	r := Parse("entregar por la mañana")
	if *r.DesdeMin != 480 || *r.HastaMin != 780 || r.VentanaTipo != model.VentanaAM {
		t.Fatalf("mañana: %+v", r)
	}
	// Unaccented spelling.
	r = Parse("MANANA TEMPRANO")
	if r.VentanaTipo != model.VentanaAM {
		t.Fatalf("manana: %+v", r)
	}
	r = Parse("solo de tarde")
	if *r.DesdeMin != 840 || *r.HastaMin != 1260 || r.VentanaTipo != model.VentanaPM {
		t.Fatalf("tarde: %+v", r)
	}
	r = Parse("HORARIO COMERCIAL")
	if *r.DesdeMin != 540 || *r.HastaMin != 1080 || r.VentanaTipo != model.VentanaSin {
		t.Fatalf("horario comercial: %+v", r)
	}
}

func TestParseLlamarAntes(t *testing.T) {
	r := Parse("LLAMAR ANTES DE IR")
	if r.Kind != KindSinHorario || !r.LlamarAntes {
		t.Fatalf("llamar antes: %+v", r)
	}
	r = Parse("avisar antes")
	if !r.LlamarAntes {
		t.Fatalf("avisar antes: %+v", r)
	}
}

func TestParseEmpty(t *testing.T) {
	r := Parse("   ")
	if r.Kind != KindSinHorario || r.VentanaTipo != model.VentanaSin || r.LlamarAntes {
		t.Fatalf("empty: %+v", r)
	}
}

func TestAssignAMPM(t *testing.T) {
	cases := []struct {
		desde, hasta int
		want         model.VentanaTipo
	}{
		{540, 720, model.VentanaAM},
		{900, 1020, model.VentanaPM},
		{540, 1080, model.VentanaSin}, // spans both
		{300, 420, model.VentanaSin},  // before either
		{780, 840, model.VentanaSin},  // exactly the gap between AM and PM
	}
	for _, c := range cases {
		if got := AssignAMPM(c.desde, c.hasta); got != c.want {
			t.Errorf("AssignAMPM(%d,%d) = %s, want %s", c.desde, c.hasta, got, c.want)
		}
	}
}

func TestWithinOperatingWindow(t *testing.T) {
	v := Parse("9:00-10:00")
	if !WithinOperatingWindow(v, "08:00", "18:00") {
		t.Fatal("overlapping window must pass")
	}
	if WithinOperatingWindow(v, "11:00", "18:00") {
		t.Fatal("disjoint window must fail")
	}
	// Unconstrained results always pass.
	if !WithinOperatingWindow(Parse("LLAMAR ANTES"), "11:00", "12:00") {
		t.Fatal("sin horario must pass")
	}
}
