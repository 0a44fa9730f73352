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

package store

import (
	"context"

	"github.com/webgis/webgis/pkg/gis"
)

// DefaultAttributesLimit is the number of rows returned in an attribute table
const DefaultAttributesLimit = 100

// LayerInfo describes a registered geometry column
type LayerInfo struct {
	Name         string `json:"name"`
	GeometryType string `json:"geom_type"`
	SRID         int    `json:"srid"`
}

// AttributeTable holds the non-geometry columns of a layer and the first rows of data
type AttributeTable struct {
	Headers []string                 `json:"headers"`
	Data    []map[string]interface{} `json:"data"`
}

// Store persists layers
type Store interface {

	// Ping verifies the database is reachable
	Ping(ctx context.Context) error

	// PostGISVersion returns the full PostGIS version string
	PostGISVersion(ctx context.Context) (string, error)

	// ListLayers returns the layers of the public schema, ordered by name
	ListLayers(ctx context.Context) ([]LayerInfo, error)

	// GetLayerGeoJSON returns an encoded GeoJSON FeatureCollection of the layer
	GetLayerGeoJSON(ctx context.Context, name string) ([]byte, error)

	// GetLayerAttributes returns the first limit rows of the layer's attributes
	GetLayerAttributes(ctx context.Context, name string, limit int) (*AttributeTable, error)

	// WriteLayer replaces the layer's table with the given features, returning how many were written
	WriteLayer(ctx context.Context, layer *gis.Layer) (int, error)

	// ReadLayer loads every feature of the layer
	ReadLayer(ctx context.Context, name string) (*gis.Layer, error)

	// CreateBuffer creates a layer holding the buffer of every feature of the named layer, returning its name
	CreateBuffer(ctx context.Context, name string, distanceMeters float64) (string, error)

	// DeleteLayer drops the layer's table
	DeleteLayer(ctx context.Context, name string) error

	// Close releases the connections
	Close() error
}
