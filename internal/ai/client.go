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

// Package ai is a minimal chat-completions client used as the last-resort
// transport classifier. It speaks the OpenAI-compatible JSON protocol over
// plain net/http with a strict timeout; a missing API key disables it.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"remitero/internal/carrier"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 10 * time.Second
	maxInputChars  = 500
)

const systemPrompt = "Sos un clasificador de textos de logística en Argentina. " +
	"Dado un texto, identificás el transportista. " +
	`Respondé SOLO con JSON: {"transportista": "NOMBRE", "confianza": 0.95}. ` +
	"Si no podés identificarlo con certeza, usá 'DESCONOCIDO'. " +
	"Nombres válidos: VIA CARGO, ANDREANI, OCA, CORREO ARGENTINO, URBANO, LAAR, TUPUY, " +
	"SERVIENTREGA, MOOVA, RAPPI, PEDIDOS YA, MERCADO ENVIOS, ENVIO PROPIO, RETIRO EN GALPON, DESCONOCIDO."

// Client calls a chat-completions endpoint. The zero value is unusable;
// construct with NewClient.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	log     *logrus.Logger
}

// NewClient builds a classifier client. baseURL and model fall back to the
// OpenAI defaults when empty. An empty apiKey yields a disabled client: every
// call abstains with (nil, nil).
func NewClient(baseURL, apiKey, model string, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
}

// Enabled reports whether the client has credentials to call out.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ClassifyTransport asks the model for the carrier named in texto. It
// abstains (nil, nil) when disabled and returns an error for transport or
// protocol failures; callers treat both as "no answer".
func (c *Client) ClassifyTransport(ctx context.Context, texto string) (*carrier.AIClassification, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if len(texto) > maxInputChars {
		texto = texto[:maxInputChars]
	}
	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		MaxTokens: 100,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Texto: " + texto},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ai: armando request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: llamada: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("ai: status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("ai: decodificando respuesta: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("ai: respuesta sin choices")
	}

	var out struct {
		Transportista string  `json:"transportista"`
		Confianza     float64 `json:"confianza"`
	}
	content := strings.TrimSpace(cr.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("ai: contenido no es JSON: %w", err)
	}
	if out.Transportista == "" {
		out.Transportista = carrier.UnknownName
	}
	return &carrier.AIClassification{Transportista: out.Transportista, Confianza: out.Confianza}, nil
}
