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

package webgisconfig

import (
	"io"
	"os"
	"strings"

	"github.com/imdario/mergo"
	"github.com/joho/godotenv"
	"github.com/nuclio/errors"
	"sigs.k8s.io/yaml"
)

type Reader struct{}

func NewReader() (*Reader, error) {
	return &Reader{}, nil
}

func (r *Reader) Read(reader io.Reader, config *Config) error {
	configBytes, err := io.ReadAll(reader)
	if err != nil {
		return errors.Wrap(err, "Failed to read configuration")
	}

	if err := yaml.Unmarshal(configBytes, config); err != nil {
		return errors.Wrap(err, "Failed to unmarshal configuration")
	}

	return nil
}

// ReadFileOrDefault returns the default configuration if there's no file at configurationPath, otherwise
// the parsed file with its unset fields taken from the default configuration
func (r *Reader) ReadFileOrDefault(configurationPath string) (*Config, error) {
	var configuration Config

	if configurationPath == "" {
		return r.GetDefaultConfiguration(), nil
	}

	configurationFile, err := os.Open(configurationPath)
	if err != nil {
		if os.IsNotExist(err) {
			return r.GetDefaultConfiguration(), nil
		}

		return nil, errors.Wrapf(err, "Failed to open configuration file %s", configurationPath)
	}

	// close after
	defer configurationFile.Close() // nolint: errcheck

	if err := r.Read(configurationFile, &configuration); err != nil {
		return nil, errors.Wrap(err, "Failed to read configuration file")
	}

	if err := mergo.Merge(&configuration, *r.GetDefaultConfiguration()); err != nil {
		return nil, errors.Wrap(err, "Failed to merge default configuration")
	}

	return &configuration, nil
}

// ApplyEnvironment overrides configuration fields from the environment
func (r *Reader) ApplyEnvironment(configuration *Config, lookupEnv func(string) (string, bool)) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	if databaseURL, found := lookupEnv("DATABASE_URL"); found && databaseURL != "" {
		configuration.Database.URL = databaseURL
	}

	if port, found := lookupEnv("PORT"); found && port != "" {
		configuration.WebServer.ListenAddress = ":" + strings.TrimPrefix(port, ":")
	}

	if assetsDir, found := lookupEnv("WEBGIS_ASSETS_DIR"); found && assetsDir != "" {
		configuration.AssetsDir = assetsDir
	}

	if logLevel, found := lookupEnv("WEBGIS_LOG_LEVEL"); found && logLevel != "" {
		configuration.Logger.Level = logLevel
	}

	configuration.Database.URL = NormalizeDatabaseURL(configuration.Database.URL)
}

func (r *Reader) GetDefaultConfiguration() *Config {
	trueValue := true

	return &Config{
		WebServer: WebServer{
			Enabled:       &trueValue,
			ListenAddress: DefaultListenAddress,
		},
		HealthCheck: WebServer{
			Enabled:       &trueValue,
			ListenAddress: DefaultHealthCheckListenAddress,
		},
		Metrics: Metrics{
			Enabled: &trueValue,
			Path:    DefaultMetricsPath,
		},
		Database: Database{
			URL:                DefaultDatabaseURL,
			MaxOpenConnections: DefaultMaxOpenConnections,
			MaxIdleConnections: DefaultMaxIdleConnections,
		},
		Upload: Upload{
			MaxSizeBytes: DefaultUploadMaxSizeBytes,
			WorkDir:      os.TempDir(),
			DefaultSRID:  DefaultSRID,
		},
		Logger: Logger{
			Level:    DefaultLoggerLevel,
			Encoding: DefaultLoggerEncoding,
		},
		AssetsDir: ".",
	}
}

// NormalizeDatabaseURL rewrites the legacy postgres:// scheme (as handed out by some hosting providers)
// to postgresql://, defaulting to a local database when empty
func NormalizeDatabaseURL(databaseURL string) string {
	if databaseURL == "" {
		return DefaultDatabaseURL
	}

	if strings.HasPrefix(databaseURL, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(databaseURL, "postgres://")
	}

	return databaseURL
}

// LoadDotEnv loads the given .env files into the process environment, skipping ones that don't exist.
// variables already set in the environment are not overridden
func LoadDotEnv(paths ...string) error {
	var existingPaths []string

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existingPaths = append(existingPaths, path)
		}
	}

	if len(existingPaths) == 0 {
		return nil
	}

	if err := godotenv.Load(existingPaths...); err != nil {
		return errors.Wrap(err, "Failed to load dotenv files")
	}

	return nil
}
