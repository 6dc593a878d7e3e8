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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeremyhahn/go-repokey/pkg/logging"
	"github.com/jeremyhahn/go-repokey/pkg/storage"
)

func newErrorTestServer() *Server {
	return &Server{logger: logging.Discard()}
}

func TestWriteError(t *testing.T) {
	s := newErrorTestServer()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/keys/", nil)

	s.writeError(w, r, errors.New("test error"), http.StatusBadRequest)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Error != "test error" {
		t.Errorf("Expected error message 'test error', got %s", resp.Error)
	}

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected code %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{
			name:           "NotFound",
			err:            storage.ErrNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "WrappedNotFound",
			err:            fmt.Errorf("keys/abc: %w", storage.ErrNotFound),
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "DigestMismatch",
			err:            ErrDigestMismatch,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Conflict",
			err:            storage.ErrAlreadyExists,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "ReadOnly",
			err:            storage.ErrReadOnly,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Closed",
			err:            storage.ErrClosed,
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "Unknown",
			err:            errors.New("disk on fire"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	s := newErrorTestServer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/keys/", nil)
			s.handleError(w, r, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}

			if resp.Code != tt.expectedStatus {
				t.Errorf("Expected code %d, got %d", tt.expectedStatus, resp.Code)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		s := newErrorTestServer()
		w := httptest.NewRecorder()
		data := map[string]string{"key": "value"}

		s.writeJSON(w, data, http.StatusOK)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
		}

		var result map[string]string
		if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}

		if result["key"] != "value" {
			t.Errorf("Expected key=value, got %s", result["key"])
		}
	})

	t.Run("Unencodable", func(t *testing.T) {
		s := newErrorTestServer()
		w := httptest.NewRecorder()

		s.writeJSON(w, map[string]any{"ch": make(chan int)}, http.StatusOK)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
		}
	})
}
