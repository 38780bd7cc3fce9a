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

package model

import "errors"

// Sentinel errors shared by every layer. Handlers map them onto HTTP status
// codes; services wrap them with context via fmt.Errorf and %w.
var (
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("no encontrado")

	// ErrConflict means the operation collides with existing state, such as
	// a duplicate remito number or a carrier name already taken.
	ErrConflict = errors.New("conflicto")

	// ErrInvalidTransition means a lifecycle or route status change would
	// move backwards or between unrelated states.
	ErrInvalidTransition = errors.New("transicion invalida")

	// ErrValidation means the input itself is malformed.
	ErrValidation = errors.New("validacion")
)
