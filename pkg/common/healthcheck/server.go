/*
Copyright 2024 The WebGIS Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package healthcheck

import (
	"context"
	"net/http"
	"time"

	"github.com/webgis/webgis/pkg/webgisconfig"

	"github.com/heptiolabs/healthcheck"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

const (
	DefaultMaxGoroutines = 10000
	DefaultPingTimeout   = 5 * time.Second

	shutdownTimeout = 10 * time.Second
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves /live and /ready. readiness requires the database to answer a ping
type Server struct {
	Enabled       bool
	ListenAddress string
	Logger        logger.Logger
	Handler       healthcheck.Handler

	httpServer *http.Server
}

func NewServer(parentLogger logger.Logger,
	databasePinger Pinger,
	configuration *webgisconfig.WebServer,
	pingTimeout time.Duration) (*Server, error) {
	if configuration == nil || configuration.Enabled == nil {
		return nil, errors.New("Enabled must carry a value")
	}

	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}

	server := &Server{
		Enabled:       *configuration.Enabled,
		ListenAddress: configuration.ListenAddress,
		Logger:        parentLogger.GetChild("healthcheck.server"),
		Handler:       healthcheck.NewHandler(),
	}

	server.Handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(DefaultMaxGoroutines))

	if databasePinger != nil {
		server.Handler.AddReadinessCheck("database", healthcheck.Timeout(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()

			return databasePinger.Ping(ctx)
		}, pingTimeout))
	}

	return server, nil
}

// Serve listens until ctx is done
func (s *Server) Serve(ctx context.Context) error {
	if !s.Enabled {
		s.Logger.Debug("Health check server disabled, not listening")
		return nil
	}

	s.httpServer = &http.Server{
		Addr:              s.ListenAddress,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErrors := make(chan error, 1)

	go func() {
		serveErrors <- s.httpServer.ListenAndServe()
	}()

	s.Logger.InfoWith("Listening", "listenAddress", s.ListenAddress)

	select {
	case err := <-serveErrors:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrapf(err, "Failed to listen on %s", s.ListenAddress)
		}

		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return s.httpServer.Shutdown(shutdownCtx)
	}
}
