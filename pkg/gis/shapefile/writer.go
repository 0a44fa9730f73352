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
	"strconv"
	"unicode/utf8"

	"github.com/webgis/webgis/pkg/gis"

	"github.com/jonas-p/go-shp"
	"github.com/nuclio/errors"
	"github.com/paulmach/orb"
)

const (
	maxFieldNameLength = 10
	stringFieldLength  = 254
	numberFieldLength  = 20
	floatFieldLength   = 24
	floatPrecision     = 8
	booleanFieldLength = 5

	// codePage is what the .cpg declares, dbf text is written as is
	codePage = "UTF-8"
)

// WriteResult describes the files written for a layer
type WriteResult struct {
	Paths          []string
	ShapeType      shp.ShapeType
	NumWritten     int
	NumSkipped     int
	FieldNameByKey map[string]string
}

type geometryFamily int

const (
	geometryFamilyNone geometryFamily = iota
	geometryFamilyPoint
	geometryFamilyMultiPoint
	geometryFamilyLine
	geometryFamilyPolygon
)

// Write writes <name>.shp, .shx, .dbf, .cpg and .prj of layer into dir
func Write(dir string, layer *gis.Layer) (*WriteResult, error) {
	family := resolveLayerFamily(layer)
	if family == geometryFamilyNone {
		return nil, errors.Errorf("Layer %s has no geometries to write", layer.Name)
	}

	basePath := filepath.Join(dir, layer.Name)

	result := &WriteResult{
		ShapeType: shapeTypeByFamily(family),
	}

	writer, err := shp.Create(basePath+".shp", result.ShapeType)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create shapefile %s", basePath)
	}

	dbfFields, fieldNames := toDBFFields(layer.Fields)
	result.FieldNameByKey = fieldNames

	if err := writer.SetFields(dbfFields); err != nil {
		writer.Close()
		return nil, errors.Wrap(err, "Failed to set fields")
	}

	for featureIndex, feature := range layer.Features {
		if feature == nil || feature.Geometry == nil {
			result.NumSkipped++
			continue
		}

		shape := geometryToShape(feature.Geometry, family)
		if shape == nil {
			result.NumSkipped++
			continue
		}

		row := int(writer.Write(shape))

		if len(layer.Fields) == 0 {
			if err := writer.WriteAttribute(row, 0, featureIndex); err != nil {
				writer.Close()
				return nil, errors.Wrapf(err, "Failed to write id of feature %d", featureIndex)
			}
		}

		for fieldIndex, field := range layer.Fields {
			value := toDBFValue(dbfFields[fieldIndex], field.Type, feature.Properties[field.Key()])

			if err := writer.WriteAttribute(row, fieldIndex, value); err != nil {
				writer.Close()
				return nil, errors.Wrapf(err, "Failed to write attribute %s of feature %d", field.Name, featureIndex)
			}
		}

		result.NumWritten++
	}

	writer.Close()

	result.Paths = []string{basePath + ".shp", basePath + ".shx", basePath + ".dbf"}

	if err := os.WriteFile(basePath+".cpg", []byte(codePage), 0644); err != nil {
		return nil, errors.Wrap(err, "Failed to write code page")
	}

	result.Paths = append(result.Paths, basePath+".cpg")

	// only reprojected layers have a known WKT
	if layer.SRID == gis.DefaultSRID {
		if err := os.WriteFile(basePath+".prj", []byte(gis.WGS84PRJ), 0644); err != nil {
			return nil, errors.Wrap(err, "Failed to write projection")
		}

		result.Paths = append(result.Paths, basePath+".prj")
	}

	return result, nil
}

// toDBFFields returns the dbf fields and the dbf name of every layer field key. Without any fields
// an "id" field is written, dbf files must have at least one
func toDBFFields(fields []gis.Field) ([]shp.Field, map[string]string) {
	if len(fields) == 0 {
		return []shp.Field{shp.NumberField("id", numberFieldLength)}, map[string]string{}
	}

	dbfFields := make([]shp.Field, 0, len(fields))
	fieldNames := map[string]string{}
	usedNames := map[string]bool{}

	for _, field := range fields {
		name := uniqueFieldName(field.Name, usedNames)
		usedNames[name] = true
		fieldNames[field.Key()] = name

		switch field.Type {
		case gis.FieldTypeInteger:
			dbfFields = append(dbfFields, shp.NumberField(name, numberFieldLength))
		case gis.FieldTypeFloat:
			dbfFields = append(dbfFields, shp.FloatField(name, floatFieldLength, floatPrecision))
		case gis.FieldTypeBoolean:
			dbfFields = append(dbfFields, shp.StringField(name, booleanFieldLength))
		default:
			dbfFields = append(dbfFields, shp.StringField(name, stringFieldLength))
		}
	}

	return dbfFields, fieldNames
}

// uniqueFieldName truncates name to the dbf limit, replacing its tail with a counter on collision
func uniqueFieldName(name string, usedNames map[string]bool) string {
	if name == "" {
		name = "field"
	}

	truncatedName := truncate(name, maxFieldNameLength)
	if !usedNames[truncatedName] {
		return truncatedName
	}

	for index := 1; ; index++ {
		suffix := "_" + strconv.Itoa(index)
		candidate := truncate(name, maxFieldNameLength-len(suffix)) + suffix

		if !usedNames[candidate] {
			return candidate
		}
	}
}

// truncate cuts value to at most length bytes without splitting a character
func truncate(value string, length int) string {
	if len(value) <= length {
		return value
	}

	for length > 0 && !utf8.RuneStart(value[length]) {
		length--
	}

	return value[:length]
}

// toDBFValue returns a value of the types the dbf writer accepts that fits dbfField
func toDBFValue(dbfField shp.Field, fieldType gis.FieldType, value interface{}) interface{} {
	if value == nil {
		return ""
	}

	switch coercedValue := gis.CoerceValue(fieldType, value).(type) {
	case int64:
		return strconv.FormatInt(coercedValue, 10)
	case float64:
		return formatFloat(coercedValue, int(dbfField.Size), int(dbfField.Precision))
	case bool:
		if coercedValue {
			return "true"
		}

		return "false"
	case string:
		return truncate(coercedValue, int(dbfField.Size))
	}

	return ""
}

// formatFloat formats value in at most width characters, giving up decimals first and falling back
// to exponent notation. Non-finite values are written as null
func formatFloat(value float64, width int, precision int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ""
	}

	for decimals := precision; decimals >= 0; decimals-- {
		if formattedValue := strconv.FormatFloat(value, 'f', decimals, 64); len(formattedValue) <= width {
			return formattedValue
		}
	}

	for decimals := precision; decimals >= 0; decimals-- {
		if formattedValue := strconv.FormatFloat(value, 'e', decimals, 64); len(formattedValue) <= width {
			return formattedValue
		}
	}

	return ""
}

func resolveLayerFamily(layer *gis.Layer) geometryFamily {
	for _, feature := range layer.Features {
		if feature == nil || feature.Geometry == nil {
			continue
		}

		if family := familyOf(feature.Geometry); family != geometryFamilyNone {
			return family
		}
	}

	return geometryFamilyNone
}

func familyOf(geometry orb.Geometry) geometryFamily {
	switch typedGeometry := geometry.(type) {
	case orb.Point:
		return geometryFamilyPoint
	case orb.MultiPoint:
		if len(typedGeometry) > 0 {
			return geometryFamilyMultiPoint
		}
	case orb.LineString:
		if len(typedGeometry) > 1 {
			return geometryFamilyLine
		}
	case orb.MultiLineString:
		if len(typedGeometry) > 0 {
			return geometryFamilyLine
		}
	case orb.Polygon:
		if len(typedGeometry) > 0 {
			return geometryFamilyPolygon
		}
	case orb.MultiPolygon:
		if len(typedGeometry) > 0 {
			return geometryFamilyPolygon
		}
	}

	return geometryFamilyNone
}

func shapeTypeByFamily(family geometryFamily) shp.ShapeType {
	switch family {
	case geometryFamilyPoint:
		return shp.POINT
	case geometryFamilyMultiPoint:
		return shp.MULTIPOINT
	case geometryFamilyLine:
		return shp.POLYLINE
	default:
		return shp.POLYGON
	}
}

// geometryToShape returns nil for geometries that don't belong to family
func geometryToShape(geometry orb.Geometry, family geometryFamily) shp.Shape {
	actualFamily := familyOf(geometry)

	switch {
	case actualFamily == family:
	case family == geometryFamilyMultiPoint && actualFamily == geometryFamilyPoint:
	default:
		return nil
	}

	switch typedGeometry := geometry.(type) {
	case orb.Point:
		if family == geometryFamilyMultiPoint {
			return newMultiPoint(orb.MultiPoint{typedGeometry})
		}

		return &shp.Point{X: typedGeometry[0], Y: typedGeometry[1]}

	case orb.MultiPoint:
		return newMultiPoint(typedGeometry)

	case orb.LineString:
		return shp.NewPolyLine([][]shp.Point{toShapePoints(typedGeometry)})

	case orb.MultiLineString:
		var parts [][]shp.Point
		for _, lineString := range typedGeometry {
			parts = append(parts, toShapePoints(lineString))
		}

		return shp.NewPolyLine(parts)

	case orb.Polygon:
		return newPolygon(orb.MultiPolygon{typedGeometry})

	case orb.MultiPolygon:
		return newPolygon(typedGeometry)
	}

	return nil
}

func newMultiPoint(multiPoint orb.MultiPoint) *shp.MultiPoint {
	points := toShapePoints(multiPoint)

	return &shp.MultiPoint{
		Box:       shp.BBoxFromPoints(points),
		NumPoints: int32(len(points)),
		Points:    points,
	}
}

// newPolygon writes outer rings clockwise and holes counter-clockwise
func newPolygon(multiPolygon orb.MultiPolygon) *shp.Polygon {
	var parts [][]shp.Point

	for _, polygon := range multiPolygon {
		for ringIndex, ring := range polygon {
			orientedRing := closeRing(ring.Clone())

			wantedOrientation := orb.CW
			if ringIndex > 0 {
				wantedOrientation = orb.CCW
			}

			if orientedRing.Orientation() != wantedOrientation {
				orientedRing.Reverse()
			}

			parts = append(parts, toShapePoints(orientedRing))
		}
	}

	polygon := shp.Polygon(*shp.NewPolyLine(parts))

	return &polygon
}

func toShapePoints[T ~[]orb.Point](orbPoints T) []shp.Point {
	points := make([]shp.Point, 0, len(orbPoints))
	for _, orbPoint := range orbPoints {
		points = append(points, shp.Point{X: orbPoint[0], Y: orbPoint[1]})
	}

	return points
}
