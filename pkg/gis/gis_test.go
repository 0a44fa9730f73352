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
	"strings"
	"testing"

	"github.com/nuclio/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/suite"
)

type LayerNameTestSuite struct {
	suite.Suite
}

func (suite *LayerNameTestSuite) TestSanitizeLayerName() {
	for _, testCase := range []struct {
		name         string
		fileName     string
		expectedName string
		expectError  bool
	}{
		{name: "simple", fileName: "roads.zip", expectedName: "roads"},
		{name: "spaces and hyphens", fileName: "Bangkok Roads-2024.geojson", expectedName: "bangkok_roads_2024"},
		{name: "other characters dropped", fileName: "parcels (v2).shp", expectedName: "parcels_v2"},
		{name: "leading digit", fileName: "2024_floods.json", expectedName: "_2024_floods"},
		{name: "directories stripped", fileName: "../../etc/passwd.json", expectedName: "passwd"},
		{name: "windows path", fileName: `C:\data\Rivers.zip`, expectedName: "rivers"},
		{name: "only dots", fileName: "....zip", expectError: true},
		{name: "non latin", fileName: "ถนน.zip", expectError: true},
	} {
		suite.Run(testCase.name, func() {
			layerName, err := SanitizeLayerName(testCase.fileName)
			if testCase.expectError {
				suite.Require().Error(err)
				return
			}

			suite.Require().NoError(err)
			suite.Require().Equal(testCase.expectedName, layerName)
		})
	}
}

func (suite *LayerNameTestSuite) TestSanitizeLayerNameTruncates() {
	layerName, err := SanitizeLayerName(strings.Repeat("a", 100) + ".zip")
	suite.Require().NoError(err)
	suite.Require().Len(layerName, MaxLayerNameLength)
}

func (suite *LayerNameTestSuite) TestBufferLayerName() {
	suite.Require().Equal("roads_buffer_100m", BufferLayerName("roads", 100.7))
	suite.Require().Equal("roads_buffer_0m", BufferLayerName("roads", 0.5))

	longName := BufferLayerName(strings.Repeat("r", MaxLayerNameLength), 2500)
	suite.Require().Len(longName, MaxLayerNameLength)
	suite.Require().True(strings.HasSuffix(longName, "_buffer_2500m"))
}

type FieldsTestSuite struct {
	suite.Suite
}

func (suite *FieldsTestSuite) TestInferFields() {
	features := []*geojson.Feature{
		suite.newFeature(map[string]interface{}{
			"name":    "a",
			"lanes":   float64(2),
			"width":   float64(3),
			"paved":   true,
			"comment": nil,
			"code":    float64(7),
		}),
		suite.newFeature(map[string]interface{}{
			"name":  "b",
			"lanes": float64(4),
			"width": 3.5,
			"paved": false,
			"code":  "x7",
		}),
		nil,
	}

	suite.Require().Equal([]Field{
		{Name: "code", Type: FieldTypeString},
		{Name: "comment", Type: FieldTypeString},
		{Name: "lanes", Type: FieldTypeInteger},
		{Name: "name", Type: FieldTypeString},
		{Name: "paved", Type: FieldTypeBoolean},
		{Name: "width", Type: FieldTypeFloat},
	}, InferFields(features))
}

func (suite *FieldsTestSuite) TestInferFieldsRenamesGeometryColumn() {
	fields := InferFields([]*geojson.Feature{
		suite.newFeature(map[string]interface{}{
			"geom":   "POINT(1 2)",
			"geom_1": "taken",
		}),
	})

	suite.Require().Equal([]Field{
		{Name: "geom_2", Type: FieldTypeString, SourceKey: "geom"},
		{Name: "geom_1", Type: FieldTypeString},
	}, fields)
	suite.Require().Equal("geom", fields[0].Key())
	suite.Require().Equal("geom_1", fields[1].Key())
}

func (suite *FieldsTestSuite) TestCoerceValue() {
	suite.Require().Equal(int64(3), CoerceValue(FieldTypeInteger, float64(3)))
	suite.Require().Equal(int64(3), CoerceValue(FieldTypeInteger, int32(3)))
	suite.Require().Equal(float64(3), CoerceValue(FieldTypeFloat, int64(3)))
	suite.Require().Equal(2.5, CoerceValue(FieldTypeFloat, 2.5))
	suite.Require().Equal(true, CoerceValue(FieldTypeBoolean, true))
	suite.Require().Equal("2.5", CoerceValue(FieldTypeString, 2.5))
	suite.Require().Equal("12", CoerceValue(FieldTypeString, 12))
	suite.Require().Equal("true", CoerceValue(FieldTypeString, true))
	suite.Require().Equal(`{"a":1}`, CoerceValue(FieldTypeString, map[string]interface{}{"a": 1}))
	suite.Require().Nil(CoerceValue(FieldTypeInteger, nil))
}

func (suite *FieldsTestSuite) TestLayerIsEmpty() {
	layer := &Layer{Features: []*geojson.Feature{{Properties: geojson.Properties{}}}}
	suite.Require().True(layer.IsEmpty())

	layer.Features = append(layer.Features, geojson.NewFeature(orb.Point{1, 2}))
	suite.Require().False(layer.IsEmpty())
	suite.Require().Equal(2, layer.NumFeatures())
}

func (suite *FieldsTestSuite) newFeature(properties map[string]interface{}) *geojson.Feature {
	feature := geojson.NewFeature(orb.Point{100.5, 13.7})
	feature.Properties = properties

	return feature
}

type ProjectionTestSuite struct {
	suite.Suite
}

func (suite *ProjectionTestSuite) TestSRIDFromPRJ() {
	for _, testCase := range []struct {
		name         string
		wkt          string
		expectedSRID int
	}{
		{
			name:         "esri wgs84",
			wkt:          WGS84PRJ,
			expectedSRID: 4326,
		},
		{
			name: "esri utm 47n",
			wkt: `PROJCS["WGS_1984_UTM_Zone_47N",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",` +
				`SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],` +
				`UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],` +
				`PARAMETER["False_Easting",500000.0],UNIT["Meter",1.0]]`,
			expectedSRID: 32647,
		},
		{
			name:         "esri utm south",
			wkt:          `PROJCS["WGS_1984_UTM_Zone_33S",GEOGCS["GCS_WGS_1984"],UNIT["Meter",1.0]]`,
			expectedSRID: 32733,
		},
		{
			name:         "indian 1975",
			wkt:          `PROJCS["Indian_1975_UTM_Zone_48N",GEOGCS["GCS_Indian_1975"],UNIT["Meter",1.0]]`,
			expectedSRID: 24048,
		},
		{
			name:         "nad83 utm",
			wkt:          `PROJCS["NAD83 / UTM zone 10N",GEOGCS["NAD83"],UNIT["metre",1]]`,
			expectedSRID: 26910,
		},
		{
			name:         "web mercator",
			wkt:          `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984"]]`,
			expectedSRID: 3857,
		},
		{
			name: "root authority wins",
			wkt: `PROJCS["Some local grid",GEOGCS["WGS 84",AUTHORITY["EPSG","4326"]],` +
				`UNIT["metre",1,AUTHORITY["EPSG","9001"]],AUTHORITY["EPSG","2000"]]`,
			expectedSRID: 2000,
		},
		{
			name:         "wkt2 id",
			wkt:          `GEOGCRS["Custom",DATUM["x"],ID["EPSG",4269]]`,
			expectedSRID: 4269,
		},
		{
			name:         "byte order mark",
			wkt:          "\ufeff" + `GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983"]]`,
			expectedSRID: 4269,
		},
	} {
		suite.Run(testCase.name, func() {
			srid, err := SRIDFromPRJ(testCase.wkt)
			suite.Require().NoError(err)
			suite.Require().Equal(testCase.expectedSRID, srid)
		})
	}
}

func (suite *ProjectionTestSuite) TestSRIDFromPRJUnknown() {
	for _, wkt := range []string{
		"",
		"not a wkt",
		`PROJCS["Bangkok_Local_Grid",GEOGCS["GCS_WGS_1984"],UNIT["Meter",1.0]]`,
		`PROJCS["WGS_1984_UTM_Zone_61N",GEOGCS["GCS_WGS_1984"]]`,
		`GEOGCS["GCS_Mars_2000"]`,
	} {
		_, err := SRIDFromPRJ(wkt)
		suite.Require().Error(err, wkt)
		suite.Require().Equal(ErrUnknownProjection, errors.RootCause(err), wkt)
	}
}

func TestGISTestSuite(t *testing.T) {
	suite.Run(t, new(LayerNameTestSuite))
	suite.Run(t, new(FieldsTestSuite))
	suite.Run(t, new(ProjectionTestSuite))
}
