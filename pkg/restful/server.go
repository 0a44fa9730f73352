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

package restful

import (
	"context"
	"net/http"
	"time"

	"github.com/webgis/webgis/pkg/registry"
	restfulmiddleware "github.com/webgis/webgis/pkg/restful/middleware"
	"github.com/webgis/webgis/pkg/webgisconfig"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 30 * time.Second

// Server is implemented by concrete servers to add their own middleware
type Server interface {

	// InstallMiddleware installs middlewares on a router
	InstallMiddleware(router chi.Router) error
}

type AbstractServer struct {
	Logger          logger.Logger
	Enabled         bool
	ListenAddress   string
	Router          chi.Router
	MetricsRegistry *prometheus.Registry

	// response bodies of paths with these prefixes are not logged
	QuietPathPrefixes []string

	resourceRegistry *registry.Registry
	server           Server
	httpServer       *http.Server
}

func NewAbstractServer(parentLogger logger.Logger,
	resourceRegistry *registry.Registry,
	server Server,
	configuration *webgisconfig.WebServer,
	quietPathPrefixes []string) (*AbstractServer, error) {

	var err error

	newServer := &AbstractServer{
		Logger:            parentLogger.GetChild("server"),
		MetricsRegistry:   prometheus.NewRegistry(),
		QuietPathPrefixes: quietPathPrefixes,
		resourceRegistry:  resourceRegistry,
		server:            server,
	}

	if err := newServer.readConfiguration(configuration); err != nil {
		return nil, errors.Wrap(err, "Failed to read configuration")
	}

	newServer.Router, err = newServer.createRouter()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create router")
	}

	// install the concrete server's middleware
	if err := server.InstallMiddleware(newServer.Router); err != nil {
		return nil, errors.Wrap(err, "Failed to install middleware")
	}

	// create the resources registered
	for _, resourceName := range newServer.resourceRegistry.GetKinds() {
		resourceInstance, err := newServer.resourceRegistry.Get(resourceName)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to get resource %s", resourceName)
		}

		// create the resource router and add it
		resourceRouter, err := resourceInstance.(ResourceInitializer).Initialize(newServer.Logger, server)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to create resource router for %s", resourceName)
		}

		// register the router into the root router
		newServer.Router.Mount("/"+resourceName, resourceRouter)

		newServer.Logger.DebugWith("Registered resource", "name", resourceName)
	}

	return newServer, nil
}

// Serve listens until ctx is done, then shuts down gracefully
func (s *AbstractServer) Serve(ctx context.Context) error {

	// if we're not enabled, we're done here
	if !s.Enabled {
		s.Logger.Debug("Server disabled, not listening")
		return nil
	}

	s.httpServer = &http.Server{
		Addr:              s.ListenAddress,
		Handler:           s.Router,
		ReadHeaderTimeout: 30 * time.Second,
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
		s.Logger.InfoWith("Shutting down", "listenAddress", s.ListenAddress)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "Failed to shut down gracefully")
		}

		return nil
	}
}

func (s *AbstractServer) InstallMiddleware(router chi.Router) error {
	router.Use(middleware.RequestID)
	router.Use(restfulmiddleware.RequestResponseLogger(s.Logger, s.QuietPathPrefixes))
	router.Use(restfulmiddleware.NewRequestMetrics(s.MetricsRegistry).Handler)
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)

	return nil
}

func (s *AbstractServer) createRouter() (chi.Router, error) {
	router := chi.NewRouter()

	if err := s.InstallMiddleware(router); err != nil {
		return nil, errors.Wrap(err, "Failed to install middleware")
	}

	return router, nil
}

func (s *AbstractServer) readConfiguration(configuration *webgisconfig.WebServer) error {
	if configuration == nil || configuration.Enabled == nil {
		return errors.New("Enabled must carry a value")
	}

	// set configuration
	s.Enabled = *configuration.Enabled
	s.ListenAddress = configuration.ListenAddress

	return nil
}
