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

package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-repokey/internal/rest"
	"github.com/jeremyhahn/go-repokey/pkg/metrics"
	"github.com/jeremyhahn/go-repokey/pkg/ratelimit"
	"github.com/jeremyhahn/go-repokey/pkg/storage/file"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = 15 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a repository directory over HTTP",
		Long: `Serve the files of a repository directory over HTTP so that clients
can use it as "rest:http://host:port/". The server stores opaque files
and never sees a password or master key.

Endpoints:
  GET    /{type}/            list files
  HEAD   /{type}/{name}      check a file
  GET    /{type}/{name}      read a file
  POST   /{type}/{name}      store a file (body must hash to name)
  DELETE /{type}/{name}      remove a file
  GET    /health, /health/live, /health/ready, /health/startup
  GET    /metrics            when metrics are enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.applyServeFlags()

			srv, err := a.newServer()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", serverAddr(a))
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", serverAddr(a), err)
			}
			return a.runServer(ctx, srv, ln)
		},
	}

	cmd.Flags().String("path", "", "repository directory to serve (default from config)")
	cmd.Flags().String("host", "", "listen host (default from config)")
	cmd.Flags().Int("port", 0, "listen port (default from config)")
	cmd.Flags().Bool("read-only", false, "reject writes and deletes")
	cmd.Flags().Bool("metrics", false, "expose Prometheus metrics on /metrics")
	return cmd
}

// applyServeFlags overrides the server settings with command flags.
func (a *app) applyServeFlags() {
	if path := a.flagString("path"); path != "" {
		a.settings.Server.Path = path
	}
	if host := a.flagString("host"); host != "" {
		a.settings.Server.Host = host
	}
	if a.viper == nil {
		return
	}
	if port := a.viper.GetInt("port"); port != 0 {
		a.settings.Server.Port = port
	}
	if a.viper.GetBool("read-only") {
		a.settings.Server.ReadOnly = true
	}
	if a.viper.GetBool("metrics") {
		a.settings.Metrics.Enabled = true
	}
}

// newServer builds the REST server for the configured repository directory.
func (a *app) newServer() (*rest.Server, error) {
	s := a.settings
	path := s.Server.Path
	if path == "" {
		path = s.Repository.Location
	}
	if path == "" || s.Repository.IsREST() && s.Server.Path == "" {
		return nil, fmt.Errorf("serve requires a local repository directory (use --path)")
	}

	be, err := file.New(path)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := s.TLS.LoadTLSConfig()
	if err != nil {
		return nil, err
	}

	if s.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	a.logger.Info("serving repository", "path", be.Root(), "read_only", s.Server.ReadOnly)
	return rest.NewServer(&rest.Config{
		Addr:         serverAddr(a),
		Backend:      be,
		ReadOnly:     s.Server.ReadOnly,
		MaxBodyBytes: s.Server.MaxBodyBytes,
		RateLimit: &ratelimit.Config{
			Enabled:           s.RateLimit.Enabled,
			RequestsPerMinute: s.RateLimit.RequestsPerMin,
			Burst:             s.RateLimit.Burst,
		},
		Metrics:   s.Metrics.Enabled,
		Logger:    a.logger,
		TLSConfig: tlsConfig,
	})
}

// runServer serves on ln until ctx is done, then shuts down gracefully.
func (a *app) runServer(ctx context.Context, srv *rest.Server, ln net.Listener) error {
	if a.settings.Metrics.Enabled {
		collector := metrics.StartResourceCollector(ctx, collectorInterval)
		defer collector.Stop()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errChan
}

func serverAddr(a *app) string {
	return net.JoinHostPort(a.settings.Server.Host, strconv.Itoa(a.settings.Server.Port))
}
