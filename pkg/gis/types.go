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
	"github.com/paulmach/orb/geojson"
)

// DefaultSRID is the SRID every stored geometry is transformed to
const DefaultSRID = 4326

type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeFloat   FieldType = "float"
	FieldTypeBoolean FieldType = "boolean"
)

// Field is a non-geometry column of a layer
type Field struct {
	Name string
	Type FieldType

	// the property key the field is read from, when it differs from Name
	SourceKey string
}

// Key returns the feature property key holding the field value
func (f Field) Key() string {
	if f.SourceKey != "" {
		return f.SourceKey
	}

	return f.Name
}

// Layer is a named set of features sharing a spatial reference
type Layer struct {
	Name string

	// spatial reference of the feature geometries. 0 means unknown
	SRID     int
	Features []*geojson.Feature
	Fields   []Field
}

// NumFeatures returns the number of features in the layer
func (l *Layer) NumFeatures() int {
	return len(l.Features)
}

// IsEmpty returns true if the layer has no features with a geometry
func (l *Layer) IsEmpty() bool {
	for _, feature := range l.Features {
		if feature != nil && feature.Geometry != nil {
			return false
		}
	}

	return true
}
