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

package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestClassifyTransportDisabled(t *testing.T) {
	c := NewClient("", "", "", quietLogger())
	res, err := c.ClassifyTransport(context.Background(), "texto")
	if res != nil || err != nil {
		t.Fatalf("disabled client must abstain, got %v, %v", res, err)
	}
}

func TestClassifyTransportOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("missing auth header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"{\"transportista\": \"ANDREANI\", \"confianza\": 0.93}"}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m", quietLogger())
	res, err := c.ClassifyTransport(context.Background(), "mandar por andreani")
	if err != nil {
		t.Fatal(err)
	}
	if res.Transportista != "ANDREANI" || res.Confianza != 0.93 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClassifyTransportBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m", quietLogger())
	if _, err := c.ClassifyTransport(context.Background(), "x"); err == nil {
		t.Fatal("non-200 must error")
	}
}

func TestClassifyTransportNonJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"no tengo idea"}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m", quietLogger())
	if _, err := c.ClassifyTransport(context.Background(), "x"); err == nil {
		t.Fatal("non-JSON content must error")
	}
}
