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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-repokey/pkg/metrics"
	"github.com/jeremyhahn/go-repokey/pkg/storage"
)

type fileTypeKey struct{}

// fileTypeMiddleware validates the {type} URL parameter.
func (s *Server) fileTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, err := storage.ParseFileType(chi.URLParam(r, "type"))
		if err != nil {
			s.writeError(w, r, err, http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), fileTypeKey{}, t)))
	})
}

func fileType(r *http.Request) storage.FileType {
	t, _ := r.Context().Value(fileTypeKey{}).(storage.FileType)
	return t
}

// filePath validates {name} and returns the backend key.
func filePath(r *http.Request) (storage.ID, string, error) {
	id, err := storage.ParseID(chi.URLParam(r, "name"))
	if err != nil {
		return storage.ID{}, "", err
	}
	return id, storage.Path(fileType(r), id), nil
}

// ListHandler handles GET /{type}/ requests.
func (s *Server) ListHandler(w http.ResponseWriter, r *http.Request) {
	t := fileType(r)
	prefix := string(t) + "/"

	keys, err := s.backend.List(prefix)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		if _, err := storage.ParseID(name); err != nil {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	metrics.SetStoredFiles(string(t), len(names))
	s.writeJSON(w, names, http.StatusOK)
}

// ExistsHandler handles HEAD /{type}/{name} requests.
func (s *Server) ExistsHandler(w http.ResponseWriter, r *http.Request) {
	_, path, err := filePath(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	exists, err := s.backend.Exists(path)
	if err != nil {
		w.WriteHeader(mapErrorToStatusCode(err))
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetHandler handles GET /{type}/{name} requests.
func (s *Server) GetHandler(w http.ResponseWriter, r *http.Request) {
	_, path, err := filePath(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	data, err := s.backend.Get(path)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debugf("failed to write %s: %v", path, err)
	}
}

// SaveHandler handles POST /{type}/{name} requests. The body must hash to name.
func (s *Server) SaveHandler(w http.ResponseWriter, r *http.Request) {
	id, path, err := filePath(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if s.readOnly {
		s.handleError(w, r, storage.ErrReadOnly)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidRequest, tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: %v", ErrInvalidRequest, err), http.StatusBadRequest)
		return
	}
	if storage.Hash(data) != id {
		s.handleError(w, r, fmt.Errorf("%w: %s", ErrDigestMismatch, id.Str()))
		return
	}

	if err := s.backend.Put(path, data, nil); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.logger.Debug("stored file", "path", path, "size", len(data))
	w.WriteHeader(http.StatusOK)
}

// DeleteHandler handles DELETE /{type}/{name} requests.
func (s *Server) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	_, path, err := filePath(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.backend.Delete(path); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.logger.Debug("removed file", "path", path)
	w.WriteHeader(http.StatusOK)
}
