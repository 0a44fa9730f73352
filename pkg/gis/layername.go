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

package gis

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nuclio/errors"
)

const (
	// MaxLayerNameLength is the PostgreSQL identifier limit
	MaxLayerNameLength = 63

	// MaxBufferDistanceMeters is the equatorial circumference, buffers beyond it cover the whole map
	MaxBufferDistanceMeters = 40075017
)

var invalidLayerNameCharacters = regexp.MustCompile(`[^a-z0-9_]`)

// SanitizeLayerName derives a table name from an uploaded file name
func SanitizeLayerName(fileName string) (string, error) {
	baseName := filepath.Base(strings.ReplaceAll(fileName, `\`, "/"))
	baseName = strings.TrimSuffix(baseName, filepath.Ext(baseName))

	layerName := strings.ToLower(baseName)
	layerName = strings.NewReplacer(" ", "_", "-", "_").Replace(layerName)
	layerName = invalidLayerNameCharacters.ReplaceAllString(layerName, "")

	if layerName == "" {
		return "", errors.Errorf("Cannot derive a layer name from %q", fileName)
	}

	if layerName[0] >= '0' && layerName[0] <= '9' {
		layerName = "_" + layerName
	}

	if len(layerName) > MaxLayerNameLength {
		layerName = layerName[:MaxLayerNameLength]
	}

	return layerName, nil
}

// BufferLayerName returns the name of the layer holding a buffer of sourceName. distanceMeters must be
// within (0, MaxBufferDistanceMeters]
func BufferLayerName(sourceName string, distanceMeters float64) string {
	suffix := "_buffer_" + formatInt(int64(distanceMeters)) + "m"

	// keep the suffix, trim the source name
	if len(sourceName)+len(suffix) > MaxLayerNameLength {
		sourceName = sourceName[:MaxLayerNameLength-len(suffix)]
	}

	return sourceName + suffix
}
