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

package loggersink

import (
	"io"
	"os"
	"path/filepath"

	"github.com/webgis/webgis/pkg/webgisconfig"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
)

// CreateSystemLogger returns the root logger of a process. logs always go to stdout and, if a file
// path is configured, to that file as well
func CreateSystemLogger(name string, configuration *webgisconfig.Logger) (logger.Logger, error) {
	return CreateSystemLoggerWithWriter(name, configuration, os.Stdout)
}

// CreateSystemLoggerWithWriter is CreateSystemLogger with the console writer given explicitly
func CreateSystemLoggerWithWriter(name string,
	configuration *webgisconfig.Logger,
	consoleWriter io.Writer) (logger.Logger, error) {
	var systemLoggers []logger.Logger

	if configuration == nil {
		configuration = &webgisconfig.Logger{}
	}

	level := resolveLevel(configuration.Level)

	consoleLogger, err := createZapLogger(name, resolveEncoding(configuration.Encoding), consoleWriter, level)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create console logger")
	}

	systemLoggers = append(systemLoggers, consoleLogger)

	if configuration.FilePath != "" {
		fileLogger, err := createFileLogger(name, configuration.FilePath, level)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create file logger")
		}

		systemLoggers = append(systemLoggers, fileLogger)
	}

	// a mux logger carries some overhead, only use it if there's more than one sink
	if len(systemLoggers) > 1 {
		muxLogger, err := nucliozap.NewMuxLogger(systemLoggers...)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create system mux logger")
		}

		return muxLogger, nil
	}

	return systemLoggers[0], nil
}

func createFileLogger(name string, filePath string, level nucliozap.Level) (logger.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, errors.Wrapf(err, "Failed to create log directory for %s", filePath)
	}

	logFile, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open log file %s", filePath)
	}

	// files are always written as json, for shipping
	return createZapLogger(name, "json", logFile, level)
}

func createZapLogger(name string, encoding string, writer io.Writer, level nucliozap.Level) (logger.Logger, error) {

	// get the default encoding and override line ending to newline
	encoderConfig := nucliozap.NewEncoderConfig()
	encoderConfig.JSON.LineEnding = "\n"

	return nucliozap.NewNuclioZap(name,
		encoding,
		encoderConfig,
		writer,
		writer,
		level)
}

func resolveLevel(levelName string) nucliozap.Level {
	if levelName == "" {
		levelName = webgisconfig.DefaultLoggerLevel
	}

	return nucliozap.GetLevelByName(levelName)
}

func resolveEncoding(encoding string) string {
	switch encoding {
	case "json", "console":
		return encoding
	default:
		return webgisconfig.DefaultLoggerEncoding
	}
}
