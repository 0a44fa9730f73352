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
	"os"

	"github.com/webgis/webgis/pkg/loggersink"
	"github.com/webgis/webgis/pkg/store"
	"github.com/webgis/webgis/pkg/store/postgis"
	"github.com/webgis/webgis/pkg/webgisconfig"

	"github.com/mitchellh/go-homedir"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/spf13/cobra"
)

type storeCreator func(logger.Logger, *webgisconfig.Database) (store.Store, error)

type RootCommandeer struct {
	loggerInstance logger.Logger
	cmd            *cobra.Command
	verbose        bool
	configPath     string
	envFilePaths   []string
	configuration  *webgisconfig.Config
	store          store.Store

	createStore storeCreator
	lookupEnv   func(string) (string, bool)
}

func NewRootCommandeer() *RootCommandeer {
	commandeer := &RootCommandeer{
		createStore: func(parentLogger logger.Logger, configuration *webgisconfig.Database) (store.Store, error) {
			return postgis.NewStore(parentLogger, configuration)
		},
		lookupEnv: os.LookupEnv,
	}

	defaultConfigPath := os.Getenv("WEBGIS_CONFIG")
	if defaultConfigPath == "" {
		defaultConfigPath = "webgis.yaml"
	}

	cmd := &cobra.Command{
		Use:           "webgis [command]",
		Short:         "PostGIS backed WebGIS service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&commandeer.verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().StringVarP(&commandeer.configPath, "config", "c", defaultConfigPath, "Path to a configuration file (ignored if missing)")
	cmd.PersistentFlags().StringSliceVar(&commandeer.envFilePaths, "env-file", []string{".env"}, "Dotenv files to load into the environment")

	// add children
	cmd.AddCommand(
		newServeCommandeer(commandeer).cmd,
		newImportCommandeer(commandeer).cmd,
		newExportCommandeer(commandeer).cmd,
		newGetCommandeer(commandeer).cmd,
		newDeleteCommandeer(commandeer).cmd,
		newBufferCommandeer(commandeer).cmd,
		newVersionCommandeer(commandeer).cmd,
	)

	commandeer.cmd = cmd

	return commandeer
}

// Execute uses os.Args to execute the command
func (rc *RootCommandeer) Execute() error {
	return rc.cmd.Execute()
}

// GetCmd returns the underlying cobra command
func (rc *RootCommandeer) GetCmd() *cobra.Command {
	return rc.cmd
}

// initialize reads the configuration and creates the logger
func (rc *RootCommandeer) initialize() error {
	var err error

	if err := webgisconfig.LoadDotEnv(rc.envFilePaths...); err != nil {
		return errors.Wrap(err, "Failed to load environment")
	}

	configurationReader, err := webgisconfig.NewReader()
	if err != nil {
		return errors.Wrap(err, "Failed to create configuration reader")
	}

	configPath, err := homedir.Expand(rc.configPath)
	if err != nil {
		return errors.Wrapf(err, "Failed to expand configuration path %s", rc.configPath)
	}

	rc.configuration, err = configurationReader.ReadFileOrDefault(configPath)
	if err != nil {
		return errors.Wrap(err, "Failed to read configuration")
	}

	configurationReader.ApplyEnvironment(rc.configuration, rc.lookupEnv)

	if rc.verbose {
		rc.configuration.Logger.Level = "debug"
	}

	rc.loggerInstance, err = loggersink.CreateSystemLoggerWithWriter("webgis",
		&rc.configuration.Logger,
		rc.cmd.ErrOrStderr())
	if err != nil {
		return errors.Wrap(err, "Failed to create logger")
	}

	return nil
}

// initializeWithStore also connects to the layer store
func (rc *RootCommandeer) initializeWithStore() error {
	var err error

	if err := rc.initialize(); err != nil {
		return errors.Wrap(err, "Failed to initialize root")
	}

	rc.store, err = rc.createStore(rc.loggerInstance, &rc.configuration.Database)
	if err != nil {
		return errors.Wrap(err, "Failed to create store")
	}

	return nil
}

func (rc *RootCommandeer) closeStore() {
	if rc.store == nil {
		return
	}

	if err := rc.store.Close(); err != nil {
		rc.loggerInstance.WarnWith("Failed to close store", "err", err.Error())
	}
}
