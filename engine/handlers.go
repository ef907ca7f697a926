// Copyright 2025 Slidesmith
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

package engine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"slidesmith/platform/engine/cost"
	"slidesmith/platform/engine/credential"
	"slidesmith/platform/engine/stats"
	"slidesmith/platform/shared/logger"
)

// Server exposes the engine over HTTP.
type Server struct {
	orchestrator *Orchestrator
	repository   *stats.Repository
	credentials  *credential.Store
	log          *logger.Logger
}

// NewServer wires the HTTP layer over the engine's components.
func NewServer(orchestrator *Orchestrator, repository *stats.Repository, credentials *credential.Store) *Server {
	return &Server{
		orchestrator: orchestrator,
		repository:   repository,
		credentials:  credentials,
		log:          logger.New("http"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// generateHandler runs a generation request to its terminal outcome.
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	result, err := s.orchestrator.Generate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, ErrNoProviders):
			writeError(w, http.StatusServiceUnavailable, "no_providers", err.Error())
		case errors.Is(err, cost.ErrPricingUnavailable):
			writeError(w, http.StatusInternalServerError, "pricing_unavailable", err.Error())
		case errors.Is(err, ErrStorage):
			writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// cancelHandler aborts an in-flight request.
func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]

	if err := s.orchestrator.Cancel(requestID); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "no in-flight request with that id")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID, "status": "cancelling"})
}

// resultHandler returns one persisted result by request id.
func (s *Server) resultHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]

	result, err := s.repository.Get(r.Context(), requestID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "not_found", "no result with that id")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// statsHandler serves the aggregate view, filterable by provider and
// time window.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	filter := stats.Filter{Provider: r.URL.Query().Get("provider")}

	if from := r.URL.Query().Get("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "from must be RFC3339")
			return
		}
		filter.From = parsed
	}
	if to := r.URL.Query().Get("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "to must be RFC3339")
			return
		}
		filter.To = parsed
	}

	summary, err := s.repository.Aggregate(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// recentHandler lists the latest results, newest first.
func (s *Server) recentHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be 1-500")
			return
		}
		limit = parsed
	}

	results, err := s.repository.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if results == nil {
		results = []stats.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

type credentialRequest struct {
	Secret string `json:"secret"`
}

// setCredentialHandler stores or replaces a provider credential. The
// secret is encrypted before it touches disk and never echoed back.
func (s *Server) setCredentialHandler(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must carry a non-empty secret")
		return
	}

	if err := s.credentials.Set(r.Context(), providerName, req.Secret); err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to store credential")
		return
	}

	s.log.Info("", "credential stored", map[string]interface{}{"provider": providerName})
	writeJSON(w, http.StatusOK, map[string]string{"provider": providerName, "status": "stored"})
}

// rotateCredentialHandler replaces an existing credential.
func (s *Server) rotateCredentialHandler(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must carry a non-empty secret")
		return
	}

	err := s.credentials.Rotate(r.Context(), providerName, req.Secret)
	if errors.Is(err, credential.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "no credential for that provider")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to rotate credential")
		return
	}

	s.log.Info("", "credential rotated", map[string]interface{}{"provider": providerName})
	writeJSON(w, http.StatusOK, map[string]string{"provider": providerName, "status": "rotated"})
}

// listCredentialsHandler returns credential metadata, never secrets.
func (s *Server) listCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	infos, err := s.credentials.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to list credentials")
		return
	}
	if infos == nil {
		infos = []credential.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "slidesmith-engine",
	})
}
