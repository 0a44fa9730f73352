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

package command

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/webgis/webgis/pkg/common"
	"github.com/webgis/webgis/pkg/common/healthcheck"
	"github.com/webgis/webgis/pkg/errgroup"
	"github.com/webgis/webgis/pkg/gis/exporter"
	"github.com/webgis/webgis/pkg/gis/importer"
	"github.com/webgis/webgis/pkg/webgis"
	_ "github.com/webgis/webgis/pkg/webgis/resource"

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
	"github.com/v3io/version-go"
)

const databasePollInterval = 2 * time.Second

type serveCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	listenAddress  string
	assetsDir      string
}

func newServeCommandeer(rootCommandeer *RootCommandeer) *serveCommandeer {
	commandeer := &serveCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the frontend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootCommandeer.initializeWithStore(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			defer rootCommandeer.closeStore()

			if commandeer.listenAddress != "" {
				rootCommandeer.configuration.WebServer.ListenAddress = commandeer.listenAddress
			}

			if commandeer.assetsDir != "" {
				rootCommandeer.configuration.AssetsDir = commandeer.assetsDir
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return commandeer.serve(ctx)
		},
	}

	cmd.Flags().StringVarP(&commandeer.listenAddress, "listen-addr", "l", "", "IP/port on which the API listens (overrides configuration and PORT)")
	cmd.Flags().StringVar(&commandeer.assetsDir, "assets-dir", "", "Directory holding the frontend's index.html")

	commandeer.cmd = cmd

	return commandeer
}

func (s *serveCommandeer) serve(ctx context.Context) error {
	rootLogger := s.rootCommandeer.loggerInstance
	configuration := s.rootCommandeer.configuration

	rootLogger.InfoWith("Starting", "version", version.Get())

	s.waitForDatabase(ctx)

	layerImporter, err := importer.NewImporter(rootLogger, &configuration.Upload)
	if err != nil {
		return errors.Wrap(err, "Failed to create importer")
	}

	layerExporter, err := exporter.NewExporter(rootLogger, &configuration.Upload)
	if err != nil {
		return errors.Wrap(err, "Failed to create exporter")
	}

	webgisServer, err := webgis.NewServer(rootLogger,
		configuration,
		s.rootCommandeer.store,
		layerImporter,
		layerExporter)
	if err != nil {
		return errors.Wrap(err, "Failed to create server")
	}

	healthCheckServer, err := healthcheck.NewServer(rootLogger,
		s.rootCommandeer.store,
		&configuration.HealthCheck,
		healthcheck.DefaultPingTimeout)
	if err != nil {
		return errors.Wrap(err, "Failed to create health check server")
	}

	serveGroup, serveCtx := errgroup.WithContext(ctx, rootLogger, 2)

	serveGroup.Go("web server", func() error {
		return webgisServer.Serve(serveCtx)
	})

	serveGroup.Go("health check server", func() error {
		return healthCheckServer.Serve(serveCtx)
	})

	if err := serveGroup.Wait(); err != nil {
		return errors.Wrap(err, "Server failed")
	}

	rootLogger.Info("Stopped")

	return nil
}

// waitForDatabase blocks until the database answers or the connect timeout passes. the server
// starts either way, reporting the failure through /api/test-db and /ready
func (s *serveCommandeer) waitForDatabase(ctx context.Context) {
	connectTimeout := s.rootCommandeer.configuration.Database.GetConnectTimeout()

	err := common.RetryUntilSuccessful(ctx, connectTimeout, databasePollInterval, func() bool {
		if err := s.rootCommandeer.store.Ping(ctx); err != nil {
			s.rootCommandeer.loggerInstance.DebugWith("Database not reachable yet", "err", err.Error())
			return false
		}

		return true
	})

	if err != nil {
		s.rootCommandeer.loggerInstance.WarnWith("Database unreachable, serving anyway",
			"connectTimeout", connectTimeout,
			"err", err.Error())
	}
}
