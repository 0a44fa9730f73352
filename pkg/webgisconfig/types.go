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
	"time"
)

const (
	DefaultListenAddress            = ":3000"
	DefaultHealthCheckListenAddress = ":8082"
	DefaultMetricsPath              = "/metrics"
	DefaultDatabaseURL              = "postgresql://postgres@localhost:5432/webgis_db"
	DefaultMaxOpenConnections       = 10
	DefaultMaxIdleConnections       = 5
	DefaultConnectionMaxLifetime    = 30 * time.Minute
	DefaultQueryTimeout             = 60 * time.Second
	DefaultConnectTimeout           = 30 * time.Second
	DefaultUploadMaxSizeBytes       = 256 << 20
	DefaultSRID                     = 4326
	DefaultLoggerLevel              = "debug"
	DefaultLoggerEncoding           = "console"
)

type WebServer struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	ListenAddress string `json:"listenAddress,omitempty"`
}

type Metrics struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type Database struct {
	URL                   string `json:"url,omitempty"`
	MaxOpenConnections    int    `json:"maxOpenConnections,omitempty"`
	MaxIdleConnections    int    `json:"maxIdleConnections,omitempty"`
	ConnectionMaxLifetime string `json:"connectionMaxLifetime,omitempty"`
	QueryTimeout          string `json:"queryTimeout,omitempty"`

	// how long to wait for the database to become reachable on startup
	ConnectTimeout string `json:"connectTimeout,omitempty"`
}

type Upload struct {
	MaxSizeBytes int64  `json:"maxSizeBytes,omitempty"`
	WorkDir      string `json:"workDir,omitempty"`

	// SRID assumed for uploads that don't declare a projection
	DefaultSRID int `json:"defaultSRID,omitempty"`
}

type Logger struct {
	Level    string `json:"level,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	FilePath string `json:"filePath,omitempty"`
}

type Config struct {
	WebServer   WebServer `json:"webServer,omitempty"`
	HealthCheck WebServer `json:"healthCheck,omitempty"`
	Metrics     Metrics   `json:"metrics,omitempty"`
	Database    Database  `json:"database,omitempty"`
	Upload      Upload    `json:"upload,omitempty"`
	Logger      Logger    `json:"logger,omitempty"`
	AssetsDir   string    `json:"assetsDir,omitempty"`
}

func (d *Database) GetConnectionMaxLifetime() time.Duration {
	return parseDurationOrDefault(d.ConnectionMaxLifetime, DefaultConnectionMaxLifetime)
}

func (d *Database) GetQueryTimeout() time.Duration {
	return parseDurationOrDefault(d.QueryTimeout, DefaultQueryTimeout)
}

func (d *Database) GetConnectTimeout() time.Duration {
	return parseDurationOrDefault(d.ConnectTimeout, DefaultConnectTimeout)
}

func parseDurationOrDefault(durationString string, defaultDuration time.Duration) time.Duration {
	if durationString == "" {
		return defaultDuration
	}

	duration, err := time.ParseDuration(durationString)
	if err != nil || duration <= 0 {
		return defaultDuration
	}

	return duration
}
