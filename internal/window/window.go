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

// Package window interprets the free-text delivery observation into a time
// window: explicit HH:MM ranges, open-ended "desde"/"hasta" phrases, vague
// words and the pickup marker, in that priority order.
package window

import (
	"regexp"
	"strconv"
	"strings"

	"remitero/internal/model"
)

// Result kinds.
const (
	KindPickup     = "PICKUP"
	KindVentana    = "VENTANA"
	KindSinHorario = "SIN_HORARIO"
)

// Reference ranges for the AM/PM assignment, minutes from midnight.
const (
	AMFrom = 9 * 60  // 09:00
	AMTo   = 13 * 60 // 13:00
	PMFrom = 14 * 60 // 14:00
	PMTo   = 18 * 60 // 18:00
)

// EndOfDay closes open-ended "desde las HH:MM" windows.
const EndOfDay = 23 * 60

// RePickup matches the phrasings operators use when the client picks the
// order up at the warehouse. "PASA A RETIRAR" is spelled out so the trailing
// word boundary does not reject the bare infinitive.
var RePickup = regexp.MustCompile(`(?i)\b(?:SE\s+RETIRA|RETIRO\s+CLIENTE|PASA\s+A\s+RETIRAR|RETIRA(?:\s+(?:POR|EN))?(?:\s+(?:COMERCIAL|DEP[OÓ]SITO|LOCAL|TIENDA|SUCURSAL))?)\b`)

var (
	reRange     = regexp.MustCompile(`(\d{1,2}:\d{2})\s*[–\-]\s*(\d{1,2}:\d{2})`)
	reDesde     = regexp.MustCompile(`(?:DESDE|A PARTIR DE)\s+(?:LAS?\s+)?(\d{1,2}:\d{2})`)
	reHasta     = regexp.MustCompile(`HASTA\s+(?:LAS?\s+)?(\d{1,2}:\d{2})`)
	reManana    = regexp.MustCompile(`\bMA[ÑN]ANA\b`)
	reTarde     = regexp.MustCompile(`\bTARDE\b`)
	reComercial = regexp.MustCompile(`HORARIO COMERCIAL`)
	reLlamar    = regexp.MustCompile(`LLAMAR\s+ANTES|AVISAR\s+ANTES`)
)

// Result is the interpreted window of one observation.
type Result struct {
	Kind        string
	DesdeMin    *int
	HastaMin    *int
	VentanaTipo model.VentanaTipo
	LlamarAntes bool
	Raw         string
}

func parseHHMM(s string) int {
	parts := strings.SplitN(s, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}

func intersects(aFrom, aTo, bFrom, bTo int) bool {
	return aFrom < bTo && bFrom < aTo
}

func ventana(text string, desde, hasta int) Result {
	return Result{
		Kind:        KindVentana,
		DesdeMin:    &desde,
		HastaMin:    &hasta,
		VentanaTipo: AssignAMPM(desde, hasta),
		Raw:         text,
	}
}

// Parse runs the interpretation cascade over the observation text. Matching
// stops at the first rule that fires.
func Parse(observation string) Result {
	if strings.TrimSpace(observation) == "" {
		return Result{Kind: KindSinHorario, VentanaTipo: model.VentanaSin}
	}
	text := strings.ToUpper(strings.TrimSpace(observation))

	if RePickup.MatchString(text) {
		return Result{Kind: KindPickup, VentanaTipo: model.VentanaSin, Raw: text}
	}
	if m := reRange.FindStringSubmatch(text); m != nil {
		return ventana(text, parseHHMM(m[1]), parseHHMM(m[2]))
	}
	if m := reDesde.FindStringSubmatch(text); m != nil {
		return ventana(text, parseHHMM(m[1]), EndOfDay)
	}
	if m := reHasta.FindStringSubmatch(text); m != nil {
		return ventana(text, 0, parseHHMM(m[1]))
	}
	if reManana.MatchString(text) {
		r := ventana(text, 8*60, 13*60)
		r.VentanaTipo = model.VentanaAM
		return r
	}
	if reTarde.MatchString(text) {
		r := ventana(text, 14*60, 21*60)
		r.VentanaTipo = model.VentanaPM
		return r
	}
	if reComercial.MatchString(text) {
		r := ventana(text, 9*60, 18*60)
		r.VentanaTipo = model.VentanaSin
		return r
	}
	if reLlamar.MatchString(text) {
		return Result{Kind: KindSinHorario, VentanaTipo: model.VentanaSin, LlamarAntes: true, Raw: text}
	}
	return Result{Kind: KindSinHorario, VentanaTipo: model.VentanaSin, Raw: text}
}

// AssignAMPM classifies a minute range against the AM and PM reference
// ranges. A range overlapping both (or neither) carries no constraint.
func AssignAMPM(desde, hasta int) model.VentanaTipo {
	am := intersects(desde, hasta, AMFrom, AMTo)
	pm := intersects(desde, hasta, PMFrom, PMTo)
	switch {
	case am && pm:
		return model.VentanaSin
	case am:
		return model.VentanaAM
	case pm:
		return model.VentanaPM
	default:
		return model.VentanaSin
	}
}

// WithinOperatingWindow reports whether the remito window intersects the
// configured operating interval. Unconstrained windows always pass.
func WithinOperatingWindow(r Result, horaDesde, horaHasta string) bool {
	if r.Kind != KindVentana || r.DesdeMin == nil || r.HastaMin == nil {
		return true
	}
	return intersects(*r.DesdeMin, *r.HastaMin, parseHHMM(horaDesde), parseHHMM(horaHasta))
}
