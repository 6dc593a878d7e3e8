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

// Package rest serves a repository's storage backend over HTTP so that key
// files and the encrypted config can live on a remote host.
//
// # Server Setup
//
//	backend, _ := file.New("/srv/repo")
//	server, _ := rest.NewServer(&rest.Config{
//	    Addr:    ":8000",
//	    Backend: backend,
//	})
//
//	go server.Start()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	server.Stop(ctx)
//
// # API Endpoints
//
// Storage (type is one of keys, config, snapshots, index, data, locks):
//   - GET    /{type}/        - JSON array of stored names
//   - HEAD   /{type}/{name}  - 200 if stored, 404 otherwise
//   - GET    /{type}/{name}  - raw contents
//   - POST   /{type}/{name}  - store the request body; name must be its SHA-256
//   - DELETE /{type}/{name}  - remove
//
// Health and metrics:
//   - GET /health, /health/live, /health/ready, /health/startup
//   - GET /metrics - Prometheus exposition
//
// In read-only mode POST and DELETE return 403.
package rest
