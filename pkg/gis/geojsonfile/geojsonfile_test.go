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
	"os"
	"path/filepath"
	"testing"

	"github.com/webgis/webgis/pkg/common"
	"github.com/webgis/webgis/pkg/gis"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"
)

type GeoJSONFileTestSuite struct {
	suite.Suite
}

func (suite *GeoJSONFileTestSuite) TestDecodeFeatureCollection() {
	layer, err := Decode([]byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [100.5, 13.7]}, "properties": {"name": "Bangkok", "rank": 1}},
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [98.9, 18.8]}, "properties": {"name": "Chiang Mai", "rank": 2.5}},
			{"type": "Feature", "geometry": null, "properties": null}
		]
	}`))
	suite.Require().NoError(err)
	suite.Require().Equal(gis.DefaultSRID, layer.SRID)
	suite.Require().Len(layer.Features, 3)

	if diff := cmp.Diff(orb.Point{100.5, 13.7}, layer.Features[0].Geometry); diff != "" {
		suite.Failf("Unexpected geometry", "diff: %s", diff)
	}

	if diff := cmp.Diff([]gis.Field{
		{Name: "name", Type: gis.FieldTypeString},
		{Name: "rank", Type: gis.FieldTypeFloat},
	}, layer.Fields); diff != "" {
		suite.Failf("Unexpected fields", "diff: %s", diff)
	}

	suite.Require().Nil(layer.Features[2].Geometry)
	suite.Require().NotNil(layer.Features[2].Properties)
}

func (suite *GeoJSONFileTestSuite) TestDecodeSingleFeature() {
	layer, err := Decode([]byte(`{
		"type": "Feature",
		"geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]},
		"properties": {"lanes": 4}
	}`))
	suite.Require().NoError(err)
	suite.Require().Len(layer.Features, 1)
	suite.Require().Equal(orb.LineString{{0, 0}, {1, 1}}, layer.Features[0].Geometry)
	suite.Require().Equal([]gis.Field{{Name: "lanes", Type: gis.FieldTypeInteger}}, layer.Fields)
}

func (suite *GeoJSONFileTestSuite) TestDecodeBareGeometry() {
	layer, err := Decode([]byte(`{"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 0]]]}`))
	suite.Require().NoError(err)
	suite.Require().Len(layer.Features, 1)
	suite.Require().Equal(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, layer.Features[0].Geometry)
	suite.Require().Empty(layer.Fields)
}

func (suite *GeoJSONFileTestSuite) TestDecodeCRS() {
	for _, testCase := range []struct {
		name         string
		crs          string
		expectedSRID int
	}{
		{name: "short name", crs: `{"type": "name", "properties": {"name": "EPSG:32647"}}`, expectedSRID: 32647},
		{name: "urn", crs: `{"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::3857"}}`, expectedSRID: 3857},
		{name: "crs84", crs: `{"type": "name", "properties": {"name": "urn:ogc:def:crs:OGC:1.3:CRS84"}}`, expectedSRID: 4326},
		{name: "legacy epsg", crs: `{"type": "EPSG", "properties": {"code": 4269}}`, expectedSRID: 4269},
		{name: "unknown", crs: `{"type": "link", "properties": {"href": "http://example.com/crs"}}`, expectedSRID: 0},
		{name: "null", crs: `null`, expectedSRID: 4326},
	} {
		suite.Run(testCase.name, func() {
			layer, err := Decode([]byte(`{"type": "FeatureCollection", "crs": ` + testCase.crs + `, "features": []}`))
			suite.Require().NoError(err)
			suite.Require().Equal(testCase.expectedSRID, layer.SRID)
		})
	}
}

func (suite *GeoJSONFileTestSuite) TestDecodeInvalid() {
	for _, contents := range []string{
		`not json`,
		`{"features": []}`,
		`{"type": "FeatureCollection", "features": {}}`,
		`{"type": "Hexagon", "coordinates": []}`,
	} {
		_, err := Decode([]byte(contents))
		suite.Require().Error(err, contents)
		suite.Require().Equal(400, common.ResolveErrorStatusCodeOrDefault(err, 500), contents)
	}
}

func (suite *GeoJSONFileTestSuite) TestRead() {
	path := filepath.Join(suite.T().TempDir(), "rivers.geojson")
	err := os.WriteFile(path, []byte(`{"type": "Point", "coordinates": [1, 2]}`), 0644)
	suite.Require().NoError(err)

	layer, err := Read(path)
	suite.Require().NoError(err)
	suite.Require().Equal("rivers", layer.Name)

	_, err = Read(filepath.Join(suite.T().TempDir(), "missing.geojson"))
	suite.Require().Error(err)
}

func TestGeoJSONFileTestSuite(t *testing.T) {
	suite.Run(t, new(GeoJSONFileTestSuite))
}
