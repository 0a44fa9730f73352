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

package webgis

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/webgis/webgis/pkg/common"
	"github.com/webgis/webgis/pkg/gis/exporter"
	"github.com/webgis/webgis/pkg/gis/importer"
	"github.com/webgis/webgis/pkg/registry"
	"github.com/webgis/webgis/pkg/restful"
	"github.com/webgis/webgis/pkg/store"
	"github.com/webgis/webgis/pkg/webgisconfig"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ResourceRegistrySingleton = registry.NewRegistry("resource")

// response bodies under these prefixes are large and not worth logging
var quietPathPrefixes = []string{
	"/api/layers",
	"/api/export",
	"/metrics",
}

type Server struct {
	*restful.AbstractServer
	Store    store.Store
	Importer *importer.Importer
	Exporter *exporter.Exporter

	assetsDir        string
	metrics          webgisconfig.Metrics
	operationCounter *prometheus.CounterVec
}

func NewServer(parentLogger logger.Logger,
	configuration *webgisconfig.Config,
	layerStore store.Store,
	layerImporter *importer.Importer,
	layerExporter *exporter.Exporter) (*Server, error) {

	var err error

	newServer := &Server{
		Store:     layerStore,
		Importer:  layerImporter,
		Exporter:  layerExporter,
		assetsDir: configuration.AssetsDir,
		metrics:   configuration.Metrics,
	}

	newServer.AbstractServer, err = restful.NewAbstractServer(parentLogger,
		ResourceRegistrySingleton,
		newServer,
		&configuration.WebServer,
		quietPathPrefixes)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create restful server")
	}

	if err := newServer.registerMetrics(); err != nil {
		return nil, errors.Wrap(err, "Failed to register metrics")
	}

	// add static file patterns
	if err := newServer.addAssetRoutes(); err != nil {
		return nil, errors.Wrap(err, "Failed to add asset routes")
	}

	newServer.Logger.InfoWith("Initialized",
		"listenAddress", newServer.ListenAddress,
		"assetsDir", newServer.assetsDir,
		"metricsEnabled", newServer.metricsEnabled())

	return newServer, nil
}

// InstallMiddleware allows requests from any origin
func (s *Server) InstallMiddleware(router chi.Router) error {
	corsOptions := cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
		MaxAge:         300,
	}

	router.Use(cors.New(corsOptions).Handler)

	return nil
}

// RecordOperation counts the outcome of a layer operation
func (s *Server) RecordOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}

	s.operationCounter.WithLabelValues(operation, result).Inc()
}

func (s *Server) registerMetrics() error {
	s.operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webgis_layer_operations_total",
		Help: "Layer operations by outcome",
	}, []string{"operation", "result"})

	for _, collector := range []prometheus.Collector{
		s.operationCounter,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := s.MetricsRegistry.Register(collector); err != nil {
			return errors.Wrap(err, "Failed to register collector")
		}
	}

	if !s.metricsEnabled() {
		return nil
	}

	metricsPath := s.metrics.Path
	if metricsPath == "" {
		metricsPath = webgisconfig.DefaultMetricsPath
	}

	s.Router.Handle(metricsPath, promhttp.HandlerFor(s.MetricsRegistry, promhttp.HandlerOpts{}))

	return nil
}

func (s *Server) metricsEnabled() bool {
	return s.metrics.Enabled == nil || *s.metrics.Enabled
}

// addAssetRoutes serves the frontend, if the assets directory holds one
func (s *Server) addAssetRoutes() error {
	if s.assetsDir == "" || !common.IsFile(filepath.Join(s.assetsDir, "index.html")) {
		s.Logger.DebugWith("No frontend found, not serving assets", "assetsDir", s.assetsDir)
		return nil
	}

	fileServer := http.FileServer(http.Dir(s.assetsDir))
	s.Router.Get("/*", fileServer.ServeHTTP)

	// serve index.html
	for _, pattern := range []string{"/", "/index.htm", "/index.html"} {
		s.Router.Get(pattern, s.serveIndex)
	}

	return nil
}

func (s *Server) serveIndex(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.Header().Set("Cache-Control", "no-cache")

	indexHTMLContents, err := os.ReadFile(filepath.Join(s.assetsDir, "index.html"))
	if err != nil {
		s.Logger.WarnWith("Failed to read index", "err", err.Error())
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	writer.Write(indexHTMLContents) // nolint: errcheck
}
