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

// Package rest implements storage.Backend against a repository served by
// internal/rest, so key files can be resolved from a remote host.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-repokey/pkg/storage"
)

// ErrRequestFailed is returned for server replies that do not map to a
// storage error.
var ErrRequestFailed = errors.New("rest: request failed")

// Config configures the client.
type Config struct {
	// URL is the server base URL, e.g. https://backup.example.com:8000/
	URL string

	// Timeout bounds each request (default 60s)
	Timeout time.Duration

	// TLSConfig is used for https URLs
	TLSConfig *tls.Config

	// Headers are added to every request
	Headers map[string]string

	// HTTPClient overrides the client built from Timeout and TLSConfig
	HTTPClient *http.Client
}

// Backend is a storage.Backend backed by HTTP requests.
type Backend struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	closed  atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

// New creates a client for the server at cfg.URL.
func New(cfg *Config) (*Backend, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("rest: url is required")
	}

	baseURL := cfg.URL
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		if cfg.TLSConfig != nil {
			baseURL = "https://" + baseURL
		} else {
			baseURL = "http://" + baseURL
		}
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: cfg.TLSConfig},
		}
	}

	return &Backend{
		baseURL: baseURL,
		client:  client,
		headers: cfg.Headers,
	}, nil
}

// Get downloads the file stored under key.
func (b *Backend) Get(key string) ([]byte, error) {
	if err := b.checkKey(key); err != nil {
		return nil, err
	}
	return b.do(context.Background(), http.MethodGet, "/"+key, nil)
}

// Put uploads value under key. The server verifies that key names the
// SHA-256 of value.
func (b *Backend) Put(key string, value []byte, _ *storage.Options) error {
	if err := b.checkKey(key); err != nil {
		return err
	}
	_, err := b.do(context.Background(), http.MethodPost, "/"+key, value)
	return err
}

// Delete removes the file stored under key.
func (b *Backend) Delete(key string) error {
	if err := b.checkKey(key); err != nil {
		return err
	}
	_, err := b.do(context.Background(), http.MethodDelete, "/"+key, nil)
	return err
}

// Exists reports whether key is stored.
func (b *Backend) Exists(key string) (bool, error) {
	if err := b.checkKey(key); err != nil {
		return false, err
	}
	_, err := b.do(context.Background(), http.MethodHead, "/"+key, nil)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns every stored key with the given prefix. The server is asked
// once per file type the prefix can match.
func (b *Backend) List(prefix string) ([]string, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}

	var keys []string
	for _, t := range storage.FileTypes {
		typePrefix := string(t) + "/"
		if !strings.HasPrefix(typePrefix, prefix) && !strings.HasPrefix(prefix, typePrefix) {
			continue
		}

		body, err := b.do(context.Background(), http.MethodGet, "/"+typePrefix, nil)
		if err != nil {
			return nil, fmt.Errorf("rest: listing %s: %w", t, err)
		}
		var names []string
		if err := json.Unmarshal(body, &names); err != nil {
			return nil, fmt.Errorf("%w: listing %s: %v", ErrRequestFailed, t, err)
		}
		for _, name := range names {
			if key := typePrefix + name; strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// Close releases idle connections. Later calls fail with storage.ErrClosed.
func (b *Backend) Close() error {
	b.closed.Store(true)
	b.client.CloseIdleConnections()
	return nil
}

func (b *Backend) checkKey(key string) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	t, name, ok := strings.Cut(key, "/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", storage.ErrInvalidID, key)
	}
	if _, err := storage.ParseFileType(t); err != nil {
		return err
	}
	_, err := storage.ParseID(name)
	return err
}

func (b *Backend) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("rest: failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rest: failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// statusError maps an error reply back to the storage sentinel it came from.
func statusError(code int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(code)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", storage.ErrNotFound, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", storage.ErrReadOnly, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", storage.ErrClosed, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, code, msg)
	}
}
