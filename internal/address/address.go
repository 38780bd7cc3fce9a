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

// Package address normalizes free-text delivery addresses: diacritic
// stripping, abbreviation expansion, locality aliasing and the cache key
// derivation shared by the geocoder.
package address

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MinLength is the shortest trimmed address the pipeline accepts. Anything
// shorter is sent back to the operator for correction.
const MinLength = 5

// abbrev expands the street-name shorthand couriers type into the full word.
// Order matters only for readability; patterns are disjoint.
var abbrev = []struct {
	re   *regexp.Regexp
	full string
}{
	{regexp.MustCompile(`(?i)\bav\b\.?`), "avenida"},
	{regexp.MustCompile(`(?i)\bavda\b\.?`), "avenida"},
	{regexp.MustCompile(`(?i)\bdpto\b\.?`), "departamento"},
	{regexp.MustCompile(`(?i)\bdep\b\.?`), "departamento"},
	{regexp.MustCompile(`(?i)\bbv\b\.?`), "boulevard"},
	{regexp.MustCompile(`(?i)\bblvd\b\.?`), "boulevard"},
	{regexp.MustCompile(`(?i)\bcjal\b\.?`), "concejal"},
	{regexp.MustCompile(`(?i)\bgral\b\.?`), "general"},
	{regexp.MustCompile(`(?i)\bpje\b\.?`), "pasaje"},
	{regexp.MustCompile(`(?i)\bpas\b\.?`), "pasaje"},
	{regexp.MustCompile(`(?i)\bpte\b\.?`), "presidente"},
	{regexp.MustCompile(`(?i)\bdr\b\.?`), "doctor"},
	{regexp.MustCompile(`(?i)\bsam\b\.?`), "san martin"},
	{regexp.MustCompile(`(?i)\bprov\b\.?`), "provincia"},
	{regexp.MustCompile(`(?i)\bhdez\b\.?`), "hernandez"},
	{regexp.MustCompile(`(?i)\bfdez\b\.?`), "fernandez"},
	{regexp.MustCompile(`(?i)\bfco\b\.?`), "francisco"},
	{regexp.MustCompile(`(?i)\bjse\b\.?`), "jose"},
}

// cityAliases maps the shorthand operators use for metro localities onto the
// canonical locality name.
var cityAliases = []struct {
	re        *regexp.Regexp
	canonical string
}{
	{regexp.MustCompile(`\bCIUDAD DE MENDOZA\b`), "MENDOZA"},
	{regexp.MustCompile(`\bLUJAN DE CUYO\b`), "LUJÁN DE CUYO"},
	{regexp.MustCompile(`\bCIUDAD\b`), "MENDOZA"},
	{regexp.MustCompile(`\bCAPITAL\b`), "MENDOZA"},
	{regexp.MustCompile(`\bMZA\b`), "MENDOZA"},
	{regexp.MustCompile(`\bGCR\b`), "GODOY CRUZ"},
	{regexp.MustCompile(`\bGUAYMALLEN\b`), "GUAYMALLÉN"},
	{regexp.MustCompile(`\bMAIPU\b`), "MAIPÚ"},
	{regexp.MustCompile(`\bLUJAN\b`), "LUJÁN DE CUYO"},
}

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reNonWord    = regexp.MustCompile(`[^\p{L}\p{N}\s_]`)
	reStreetNum  = regexp.MustCompile(`\b\d+\b`)
	reStreetKind = regexp.MustCompile(`(?i)\b(calle|av|avenida|bv|boulevard|pasaje|pje)\b`)
)

// StripDiacritics removes combining marks after NFD decomposition, so that
// "Ñuñorco" and "Nunorco" compare equal downstream.
func StripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize lowercases, strips diacritics, expands abbreviations and
// collapses whitespace. It is the canonical form used for comparisons.
func Normalize(addr string) string {
	if addr == "" {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(StripDiacritics(addr)))
	for _, a := range abbrev {
		s = a.re.ReplaceAllString(s, a.full)
	}
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// CacheKey derives the geocode-cache key: normalized, upper-cased, stripped
// of punctuation, spaces replaced with underscores.
func CacheKey(addr string) string {
	k := strings.ToUpper(Normalize(addr))
	k = reNonWord.ReplaceAllString(k, "")
	return reSpaces.ReplaceAllString(strings.TrimSpace(k), "_")
}

// CanonicalizeLocality rewrites locality shorthand ("CIUDAD", "GCR", bare
// "LUJAN") into the canonical metro locality, upper-casing the input.
func CanonicalizeLocality(addr string) string {
	s := strings.ToUpper(addr)
	for _, a := range cityAliases {
		s = a.re.ReplaceAllString(s, a.canonical)
	}
	return s
}

// StreetBase returns the street name without numbers or street-kind
// prefixes, used for fuzzy duplicate detection.
func StreetBase(addr string) string {
	s := reStreetNum.ReplaceAllString(addr, "")
	s = reStreetKind.ReplaceAllString(s, "")
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// localities are the canonical metro localities of the operating region.
var localities = []string{
	"MENDOZA",
	"GODOY CRUZ",
	"GUAYMALLEN",
	"LAS HERAS",
	"LUJAN DE CUYO",
	"MAIPU",
}

// HasLocalityToken reports whether the text already names a metro locality,
// after alias folding and diacritic stripping.
func HasLocalityToken(s string) bool {
	u := StripDiacritics(CanonicalizeLocality(s))
	for _, l := range localities {
		if strings.Contains(u, l) {
			return true
		}
	}
	return false
}

// WithLocality appends the locality and the province when the address does
// not already carry a locality token. Addresses that name a metro locality
// anywhere, comma or not, pass through untouched.
func WithLocality(addr, localidad string) string {
	if HasLocalityToken(addr) {
		return addr
	}
	addr = strings.TrimSpace(addr)
	if localidad == "" || strings.EqualFold(StripDiacritics(localidad), "MENDOZA") {
		return addr + ", Mendoza"
	}
	return addr + ", " + strings.TrimSpace(localidad) + ", Mendoza"
}

// Sane reports whether the trimmed address is long enough to even attempt
// geocoding.
func Sane(addr string) bool {
	return len(strings.TrimSpace(addr)) >= MinLength
}
