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

package shapefile

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/webgis/webgis/pkg/gis"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/suite"
)

type ShapefileTestSuite struct {
	suite.Suite
	tempDir string
}

func (suite *ShapefileTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *ShapefileTestSuite) TestWriteReadPolygons() {
	outer := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	hole := orb.Ring{{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}}

	layer := &gis.Layer{
		Name: "parcels",
		SRID: gis.DefaultSRID,
		Fields: []gis.Field{
			{Name: "name", Type: gis.FieldTypeString},
			{Name: "lanes", Type: gis.FieldTypeInteger},
			{Name: "width", Type: gis.FieldTypeFloat},
			{Name: "paved", Type: gis.FieldTypeBoolean},
		},
		Features: []*geojson.Feature{
			suite.newFeature(orb.Polygon{outer, hole}, geojson.Properties{
				"name":  "with hole",
				"lanes": float64(2),
				"width": 3.5,
				"paved": true,
			}),
			suite.newFeature(orb.MultiPolygon{
				{{{20, 20}, {21, 20}, {21, 21}, {20, 20}}},
				{{{30, 30}, {31, 30}, {31, 31}, {30, 30}}},
			}, geojson.Properties{
				"name": "two parts",
			}),
			suite.newFeature(orb.Point{1, 1}, geojson.Properties{"name": "skipped"}),
		},
	}

	result, err := Write(suite.tempDir, layer)
	suite.Require().NoError(err)
	suite.Require().Equal(shp.POLYGON, result.ShapeType)
	suite.Require().Equal(2, result.NumWritten)
	suite.Require().Equal(1, result.NumSkipped)
	suite.Require().Len(result.Paths, 5)

	for _, path := range result.Paths {
		suite.Require().FileExists(path)
	}

	readLayer, err := Read(filepath.Join(suite.tempDir, "parcels.shp"))
	suite.Require().NoError(err)
	suite.Require().Equal("parcels", readLayer.Name)
	suite.Require().Equal(gis.DefaultSRID, readLayer.SRID)

	// booleans are written as text
	suite.Require().Equal([]gis.Field{
		{Name: "name", Type: gis.FieldTypeString},
		{Name: "lanes", Type: gis.FieldTypeInteger},
		{Name: "width", Type: gis.FieldTypeFloat},
		{Name: "paved", Type: gis.FieldTypeString},
	}, readLayer.Fields)
	suite.Require().Len(readLayer.Features, 2)

	// the hole survives and the outer ring is clockwise
	polygon, isPolygon := readLayer.Features[0].Geometry.(orb.Polygon)
	suite.Require().True(isPolygon)
	suite.Require().Len(polygon, 2)
	suite.Require().Equal(orb.CW, polygon[0].Orientation())
	suite.Require().Equal(orb.CCW, polygon[1].Orientation())
	suite.Require().Equal(outer.Bound(), polygon[0].Bound())

	suite.Require().Equal(geojson.Properties{
		"name":  "with hole",
		"lanes": int64(2),
		"width": 3.5,
		"paved": "true",
	}, readLayer.Features[0].Properties)

	multiPolygon, isMultiPolygon := readLayer.Features[1].Geometry.(orb.MultiPolygon)
	suite.Require().True(isMultiPolygon)
	suite.Require().Len(multiPolygon, 2)
	suite.Require().Nil(readLayer.Features[1].Properties["lanes"])
}

func (suite *ShapefileTestSuite) TestWriteLines() {
	layer := &gis.Layer{
		Name: "roads",
		Features: []*geojson.Feature{
			suite.newFeature(orb.LineString{{0, 0}, {1, 1}}, nil),
			suite.newFeature(orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}, nil),
			suite.newFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, nil),
			nil,
		},
	}

	result, err := Write(suite.tempDir, layer)
	suite.Require().NoError(err)
	suite.Require().Equal(shp.POLYLINE, result.ShapeType)
	suite.Require().Equal(2, result.NumWritten)
	suite.Require().Equal(2, result.NumSkipped)

	// unknown SRID, no .prj
	suite.Require().Len(result.Paths, 4)
	suite.Require().NotContains(result.Paths, filepath.Join(suite.tempDir, "roads.prj"))

	readLayer, err := Read(filepath.Join(suite.tempDir, "roads.shp"))
	suite.Require().NoError(err)
	suite.Require().Equal(0, readLayer.SRID)
	suite.Require().Equal([]gis.Field{{Name: "id", Type: gis.FieldTypeInteger}}, readLayer.Fields)
	suite.Require().IsType(orb.LineString{}, readLayer.Features[0].Geometry)
	suite.Require().IsType(orb.MultiLineString{}, readLayer.Features[1].Geometry)
	suite.Require().Equal(int64(1), readLayer.Features[1].Properties["id"])
}

func (suite *ShapefileTestSuite) TestWriteMultiPointAcceptsPoints() {
	layer := &gis.Layer{
		Name: "wells",
		Features: []*geojson.Feature{
			suite.newFeature(orb.MultiPoint{{0, 0}, {1, 1}}, nil),
			suite.newFeature(orb.Point{2, 2}, nil),
		},
	}

	result, err := Write(suite.tempDir, layer)
	suite.Require().NoError(err)
	suite.Require().Equal(shp.MULTIPOINT, result.ShapeType)
	suite.Require().Equal(2, result.NumWritten)

	readLayer, err := Read(filepath.Join(suite.tempDir, "wells.shp"))
	suite.Require().NoError(err)
	suite.Require().Equal(orb.MultiPoint{{2, 2}}, readLayer.Features[1].Geometry)
}

func (suite *ShapefileTestSuite) TestWriteTruncatesFieldNames() {
	layer := &gis.Layer{
		Name: "census",
		Fields: []gis.Field{
			{Name: "population_2020", Type: gis.FieldTypeInteger},
			{Name: "population_2021", Type: gis.FieldTypeInteger},
			{Name: "geom_1", Type: gis.FieldTypeString, SourceKey: "geom"},
		},
		Features: []*geojson.Feature{
			suite.newFeature(orb.Point{0, 0}, geojson.Properties{
				"population_2020": float64(10),
				"population_2021": float64(11),
				"geom":            "original",
			}),
		},
	}

	result, err := Write(suite.tempDir, layer)
	suite.Require().NoError(err)
	suite.Require().Equal(map[string]string{
		"population_2020": "population",
		"population_2021": "populati_1",
		"geom":            "geom_1",
	}, result.FieldNameByKey)

	readLayer, err := Read(filepath.Join(suite.tempDir, "census.shp"))
	suite.Require().NoError(err)
	suite.Require().Equal(geojson.Properties{
		"population": int64(10),
		"populati_1": int64(11),
		"geom_1":     "original",
	}, readLayer.Features[0].Properties)
}

func (suite *ShapefileTestSuite) TestWriteWithoutGeometries() {
	_, err := Write(suite.tempDir, &gis.Layer{
		Name:     "empty",
		Features: []*geojson.Feature{{Properties: geojson.Properties{}}},
	})
	suite.Require().Error(err)
}

func (suite *ShapefileTestSuite) TestReadWithoutDBF() {
	_, err := Write(suite.tempDir, &gis.Layer{
		Name:     "bare",
		Features: []*geojson.Feature{suite.newFeature(orb.Point{5, 6}, nil)},
	})
	suite.Require().NoError(err)
	suite.Require().NoError(os.Remove(filepath.Join(suite.tempDir, "bare.dbf")))

	readLayer, err := Read(filepath.Join(suite.tempDir, "bare.shp"))
	suite.Require().NoError(err)
	suite.Require().Empty(readLayer.Fields)
	suite.Require().Equal(orb.Point{5, 6}, readLayer.Features[0].Geometry)
}

func (suite *ShapefileTestSuite) TestReadUnknownProjection() {
	_, err := Write(suite.tempDir, &gis.Layer{
		Name:     "local",
		SRID:     gis.DefaultSRID,
		Features: []*geojson.Feature{suite.newFeature(orb.Point{5, 6}, nil)},
	})
	suite.Require().NoError(err)

	err = os.WriteFile(filepath.Join(suite.tempDir, "local.prj"), []byte(`PROJCS["Local_Grid"]`), 0644)
	suite.Require().NoError(err)

	readLayer, err := Read(filepath.Join(suite.tempDir, "local.shp"))
	suite.Require().NoError(err)
	suite.Require().Equal(0, readLayer.SRID)
}

func (suite *ShapefileTestSuite) TestReadUppercaseExtensions() {
	_, err := Write(suite.tempDir, &gis.Layer{
		Name:   "roads",
		SRID:   gis.DefaultSRID,
		Fields: []gis.Field{{Name: "name", Type: gis.FieldTypeString}},
		Features: []*geojson.Feature{
			suite.newFeature(orb.LineString{{0, 0}, {1, 1}}, geojson.Properties{"name": "main"}),
		},
	})
	suite.Require().NoError(err)

	for _, extension := range []string{"shp", "shx", "dbf", "prj", "cpg"} {
		err := os.Rename(filepath.Join(suite.tempDir, "roads."+extension),
			filepath.Join(suite.tempDir, "ROADS."+strings.ToUpper(extension)))
		suite.Require().NoError(err)
	}

	readLayer, err := Read(filepath.Join(suite.tempDir, "ROADS.SHP"))
	suite.Require().NoError(err)
	suite.Require().Equal("ROADS", readLayer.Name)
	suite.Require().Equal(gis.DefaultSRID, readLayer.SRID)
	suite.Require().Equal([]gis.Field{{Name: "name", Type: gis.FieldTypeString}}, readLayer.Fields)
	suite.Require().Equal(geojson.Properties{"name": "main"}, readLayer.Features[0].Properties)

	// the set is left as it was
	entries, err := os.ReadDir(suite.tempDir)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 5)
}

func (suite *ShapefileTestSuite) TestWriteLargeNumbers() {
	layer := &gis.Layer{
		Name: "parcels",
		Fields: []gis.Field{
			{Name: "area", Type: gis.FieldTypeFloat},
			{Name: "big", Type: gis.FieldTypeInteger},
		},
		Features: []*geojson.Feature{
			suite.newFeature(orb.Point{0, 0}, geojson.Properties{
				"area": 1.5e16,
				"big":  int64(1234567890123456789),
			}),
			suite.newFeature(orb.Point{1, 1}, geojson.Properties{
				"area": 1e300,
				"big":  int64(math.MinInt64),
			}),
			suite.newFeature(orb.Point{2, 2}, geojson.Properties{
				"area": math.NaN(),
				"big":  float64(7),
			}),
		},
	}

	result, err := Write(suite.tempDir, layer)
	suite.Require().NoError(err)
	suite.Require().Equal(3, result.NumWritten)

	readLayer, err := Read(filepath.Join(suite.tempDir, "parcels.shp"))
	suite.Require().NoError(err)
	suite.Require().Equal(geojson.Properties{
		"area": 1.5e16,
		"big":  int64(1234567890123456789),
	}, readLayer.Features[0].Properties)
	suite.Require().Equal(geojson.Properties{
		"area": 1e300,
		"big":  int64(math.MinInt64),
	}, readLayer.Features[1].Properties)
	suite.Require().Equal(geojson.Properties{
		"area": nil,
		"big":  int64(7),
	}, readLayer.Features[2].Properties)
}

func (suite *ShapefileTestSuite) TestWriteTruncatesMultibyteText() {
	longValue := strings.Repeat("ถ", 100)

	result, err := Write(suite.tempDir, &gis.Layer{
		Name:   "roads",
		Fields: []gis.Field{{Name: "ชื่อถนน", Type: gis.FieldTypeString}},
		Features: []*geojson.Feature{
			suite.newFeature(orb.Point{0, 0}, geojson.Properties{"ชื่อถนน": longValue}),
		},
	})
	suite.Require().NoError(err)
	suite.Require().Equal(map[string]string{"ชื่อถนน": "ชื่"}, result.FieldNameByKey)

	codePage, err := os.ReadFile(filepath.Join(suite.tempDir, "roads.cpg"))
	suite.Require().NoError(err)
	suite.Require().Equal("UTF-8", string(codePage))

	readLayer, err := Read(filepath.Join(suite.tempDir, "roads.shp"))
	suite.Require().NoError(err)

	value, isString := readLayer.Features[0].Properties["ชื่"].(string)
	suite.Require().True(isString)
	suite.Require().True(utf8.ValidString(value))
	suite.Require().Equal(strings.Repeat("ถ", 84), value)
}

func (suite *ShapefileTestSuite) TestReadMissingFile() {
	_, err := Read(filepath.Join(suite.tempDir, "missing.shp"))
	suite.Require().Error(err)
}

func (suite *ShapefileTestSuite) newFeature(geometry orb.Geometry, properties geojson.Properties) *geojson.Feature {
	feature := geojson.NewFeature(geometry)
	if properties != nil {
		feature.Properties = properties
	}

	return feature
}

func TestShapefileTestSuite(t *testing.T) {
	suite.Run(t, new(ShapefileTestSuite))
}
