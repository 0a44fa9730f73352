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

package geojsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/webgis/webgis/pkg/gis"

	"github.com/nuclio/errors"
	"github.com/nuclio/nuclio-sdk-go"
	"github.com/paulmach/orb/geojson"
)

var epsgCodePattern = regexp.MustCompile(`(?i)EPSG:(?:[0-9.]*:)?(\d+)$`)

type document struct {
	Type string          `json:"type"`
	CRS  json.RawMessage `json:"crs,omitempty"`
}

type namedCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string          `json:"name"`
		Code json.RawMessage `json:"code"`
	} `json:"properties"`
}

// Read loads a GeoJSON FeatureCollection, Feature or bare Geometry from path
func Read(path string) (*gis.Layer, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %s", path)
	}

	layer, err := Decode(contents)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode %s", filepath.Base(path))
	}

	layer.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return layer, nil
}

// Decode parses GeoJSON contents. Without a crs member the SRID is 4326, with an unrecognized one it's 0
func Decode(contents []byte) (*gis.Layer, error) {
	var header document
	if err := json.Unmarshal(contents, &header); err != nil {
		return nil, nuclio.NewErrBadRequest("Invalid GeoJSON: " + err.Error())
	}

	layer := &gis.Layer{
		SRID: gis.DefaultSRID,
	}

	switch header.Type {
	case "FeatureCollection":
		featureCollection, err := geojson.UnmarshalFeatureCollection(contents)
		if err != nil {
			return nil, nuclio.NewErrBadRequest("Invalid GeoJSON feature collection: " + err.Error())
		}

		layer.Features = featureCollection.Features

	case "Feature":
		feature, err := geojson.UnmarshalFeature(contents)
		if err != nil {
			return nil, nuclio.NewErrBadRequest("Invalid GeoJSON feature: " + err.Error())
		}

		layer.Features = []*geojson.Feature{feature}

	case "":
		return nil, nuclio.NewErrBadRequest("Invalid GeoJSON: missing type")

	default:
		geometry, err := geojson.UnmarshalGeometry(contents)
		if err != nil {
			return nil, nuclio.NewErrBadRequest("Invalid GeoJSON geometry: " + err.Error())
		}

		layer.Features = []*geojson.Feature{geojson.NewFeature(geometry.Geometry())}
	}

	for _, feature := range layer.Features {
		if feature.Properties == nil {
			feature.Properties = geojson.Properties{}
		}
	}

	if len(header.CRS) > 0 && string(header.CRS) != "null" {
		srid, err := sridFromCRS(header.CRS)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to resolve crs")
		}

		layer.SRID = srid
	}

	layer.Fields = gis.InferFields(layer.Features)

	return layer, nil
}

// sridFromCRS handles the named ("EPSG:n", "urn:ogc:def:crs:EPSG::n", CRS84) and legacy EPSG forms
func sridFromCRS(encodedCRS json.RawMessage) (int, error) {
	var crs namedCRS
	if err := json.Unmarshal(encodedCRS, &crs); err != nil {
		return 0, nuclio.NewErrBadRequest("Invalid crs member: " + err.Error())
	}

	switch strings.ToLower(crs.Type) {
	case "name":
		name := strings.TrimSpace(crs.Properties.Name)
		if strings.HasSuffix(strings.ToUpper(name), "CRS84") {
			return gis.DefaultSRID, nil
		}

		if match := epsgCodePattern.FindStringSubmatch(name); match != nil {
			return strconv.Atoi(match[1])
		}

	case "epsg":
		code := strings.Trim(string(crs.Properties.Code), `"`)
		if srid, err := strconv.Atoi(code); err == nil {
			return srid, nil
		}
	}

	// unknown, left to the caller's default
	return 0, nil
}
