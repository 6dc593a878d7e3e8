// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-repokey.
//
// go-repokey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"net/http"

	"github.com/jeremyhahn/go-repokey/pkg/health"
)

// HealthCheckResponse represents the response for health check endpoints.
type HealthCheckResponse struct {
	Status  health.Status        `json:"status"`
	Message string               `json:"message,omitempty"`
	Checks  []health.CheckResult `json:"checks,omitempty"`
}

// HealthHandler handles GET /health requests with the readiness result.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.ReadinessHandler(w, r)
}

// LivenessHandler handles GET /health/live requests.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	result := s.health.Live(r.Context())
	s.writeJSON(w, HealthCheckResponse{Status: result.Status, Message: result.Message}, http.StatusOK)
}

// ReadinessHandler handles GET /health/ready requests.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	results := s.health.Ready(r.Context())
	status := health.AggregateStatus(results)

	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, HealthCheckResponse{Status: status, Checks: results}, code)
}

// StartupHandler handles GET /health/startup requests.
func (s *Server) StartupHandler(w http.ResponseWriter, r *http.Request) {
	result := s.health.Startup(r.Context())

	code := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, HealthCheckResponse{Status: result.Status, Message: result.Message}, code)
}
