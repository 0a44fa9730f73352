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
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/webgis/webgis/pkg/common"
	"github.com/webgis/webgis/pkg/gis"

	"github.com/jonas-p/go-shp"
	"github.com/nuclio/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/samber/lo"
)

var memberExtensions = []string{".shp", ".shx", ".dbf", ".prj", ".cpg"}

// Read loads the features of a .shp file, with attributes from its .dbf and SRID from its .prj. Member
// extensions are matched case-insensitively
func Read(shpPath string) (*gis.Layer, error) {
	siblingPaths, err := findSiblings(shpPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open shapefile %s", shpPath)
	}

	openPath, cleanup, err := linkLowercaseSet(siblingPaths)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open shapefile %s", shpPath)
	}

	defer cleanup()

	reader, err := shp.Open(openPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open shapefile %s", shpPath)
	}

	defer reader.Close() // nolint: errcheck

	layer := &gis.Layer{
		Name: strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath)),
	}

	// reading attributes without a .dbf panics
	var dbfFields []shp.Field
	if _, hasDBF := siblingPaths[".dbf"]; hasDBF {
		dbfFields = reader.Fields()
	}

	layer.Fields = gis.ReserveGeometryColumn(fieldsFromDBF(dbfFields))

	for reader.Next() {
		row, shape := reader.Shape()

		geometry, err := shapeToGeometry(shape)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to convert shape %d", row)
		}

		// null shapes carry no geometry
		if geometry == nil {
			continue
		}

		feature := geojson.NewFeature(geometry)
		for fieldIndex, field := range layer.Fields {
			feature.Properties[field.Key()] = parseAttribute(dbfFields[fieldIndex],
				reader.ReadAttribute(row, fieldIndex))
		}

		layer.Features = append(layer.Features, feature)
	}

	if err := reader.Err(); err != nil {
		return nil, errors.Wrap(err, "Failed to read shapes")
	}

	layer.SRID, err = readSRID(siblingPaths[".prj"])
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read projection")
	}

	return layer, nil
}

// findSiblings returns the path of every set member by lowercase extension
func findSiblings(shpPath string) (map[string]string, error) {
	if !common.IsFile(shpPath) {
		return nil, errors.Errorf("%s is not a file", shpPath)
	}

	dir := filepath.Dir(shpPath)
	baseName := strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to list %s", dir)
	}

	siblingPaths := map[string]string{}

	for _, entry := range entries {
		extension := filepath.Ext(entry.Name())
		lowercaseExtension := strings.ToLower(extension)

		if entry.IsDir() ||
			strings.TrimSuffix(entry.Name(), extension) != baseName ||
			!lo.Contains(memberExtensions, lowercaseExtension) {
			continue
		}

		// an exact lowercase match wins over other casings
		if _, found := siblingPaths[lowercaseExtension]; found && extension != lowercaseExtension {
			continue
		}

		siblingPaths[lowercaseExtension] = filepath.Join(dir, entry.Name())
	}

	siblingPaths[".shp"] = shpPath

	return siblingPaths, nil
}

// linkLowercaseSet returns a .shp path whose members carry lowercase extensions, which is the only
// casing the shapefile reader opens. Sets that don't have them are symlinked into a temporary directory
func linkLowercaseSet(siblingPaths map[string]string) (string, func(), error) {
	shpPath := siblingPaths[".shp"]
	basePath := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))

	if lo.EveryBy(lo.Keys(siblingPaths), func(extension string) bool {
		return siblingPaths[extension] == basePath+extension
	}) {
		return shpPath, func() {}, nil
	}

	linkDir, err := os.MkdirTemp("", "webgis-shapefile-")
	if err != nil {
		return "", nil, errors.Wrap(err, "Failed to create link directory")
	}

	cleanup := func() {
		os.RemoveAll(linkDir) // nolint: errcheck
	}

	baseName := filepath.Base(basePath)

	for extension, siblingPath := range siblingPaths {
		absolutePath, err := filepath.Abs(siblingPath)
		if err != nil {
			cleanup()
			return "", nil, errors.Wrapf(err, "Failed to resolve %s", siblingPath)
		}

		if err := os.Symlink(absolutePath, filepath.Join(linkDir, baseName+extension)); err != nil {
			cleanup()
			return "", nil, errors.Wrapf(err, "Failed to link %s", siblingPath)
		}
	}

	return filepath.Join(linkDir, baseName+".shp"), cleanup, nil
}

// readSRID returns 0 when there's no .prj or it can't be resolved
func readSRID(prjPath string) (int, error) {
	if prjPath == "" {
		return 0, nil
	}

	prjContents, err := os.ReadFile(prjPath)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to read %s", prjPath)
	}

	srid, err := gis.SRIDFromPRJ(string(prjContents))
	if err != nil {
		return 0, nil
	}

	return srid, nil
}

func fieldsFromDBF(dbfFields []shp.Field) []gis.Field {
	fields := make([]gis.Field, 0, len(dbfFields))

	for _, dbfField := range dbfFields {
		field := gis.Field{
			Name: strings.TrimSpace(dbfField.String()),
			Type: gis.FieldTypeString,
		}

		switch dbfField.Fieldtype {
		case 'N':
			if dbfField.Precision == 0 {
				field.Type = gis.FieldTypeInteger
			} else {
				field.Type = gis.FieldTypeFloat
			}
		case 'F':
			field.Type = gis.FieldTypeFloat
		case 'L':
			field.Type = gis.FieldTypeBoolean
		}

		fields = append(fields, field)
	}

	return fields
}

func parseAttribute(dbfField shp.Field, value string) interface{} {
	value = strings.TrimSpace(strings.TrimRight(value, "\x00"))

	switch fieldsFromDBF([]shp.Field{dbfField})[0].Type {
	case gis.FieldTypeInteger:
		if integerValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return integerValue
		}

		// some writers declare integers wider than int64, or write decimals anyway
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}

		return nil

	case gis.FieldTypeFloat:
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}

		return nil

	case gis.FieldTypeBoolean:
		switch strings.ToUpper(value) {
		case "T", "Y":
			return true
		case "F", "N":
			return false
		}

		return nil
	}

	return value
}

func shapeToGeometry(shape shp.Shape) (orb.Geometry, error) {
	switch typedShape := shape.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return orb.Point{typedShape.X, typedShape.Y}, nil
	case *shp.PointZ:
		return orb.Point{typedShape.X, typedShape.Y}, nil
	case *shp.PointM:
		return orb.Point{typedShape.X, typedShape.Y}, nil
	case *shp.MultiPoint:
		return toMultiPoint(typedShape.Points), nil
	case *shp.MultiPointZ:
		return toMultiPoint(typedShape.Points), nil
	case *shp.MultiPointM:
		return toMultiPoint(typedShape.Points), nil
	case *shp.PolyLine:
		return toLineGeometry(typedShape.Parts, typedShape.Points), nil
	case *shp.PolyLineZ:
		return toLineGeometry(typedShape.Parts, typedShape.Points), nil
	case *shp.PolyLineM:
		return toLineGeometry(typedShape.Parts, typedShape.Points), nil
	case *shp.Polygon:
		return toPolygonGeometry(typedShape.Parts, typedShape.Points), nil
	case *shp.PolygonZ:
		return toPolygonGeometry(typedShape.Parts, typedShape.Points), nil
	case *shp.PolygonM:
		return toPolygonGeometry(typedShape.Parts, typedShape.Points), nil
	}

	return nil, errors.Errorf("Unsupported shape type %T", shape)
}

func toMultiPoint(points []shp.Point) orb.Geometry {
	if len(points) == 0 {
		return nil
	}

	multiPoint := make(orb.MultiPoint, 0, len(points))
	for _, point := range points {
		multiPoint = append(multiPoint, orb.Point{point.X, point.Y})
	}

	return multiPoint
}

// splitParts returns the point sequences delimited by the part offsets
func splitParts(parts []int32, points []shp.Point) [][]orb.Point {
	var splitPoints [][]orb.Point

	for partIndex, start := range parts {
		end := int32(len(points))
		if partIndex+1 < len(parts) {
			end = parts[partIndex+1]
		}

		if start < 0 || start >= end || end > int32(len(points)) {
			continue
		}

		partPoints := make([]orb.Point, 0, end-start)
		for _, point := range points[start:end] {
			partPoints = append(partPoints, orb.Point{point.X, point.Y})
		}

		splitPoints = append(splitPoints, partPoints)
	}

	return splitPoints
}

func toLineGeometry(parts []int32, points []shp.Point) orb.Geometry {
	var multiLineString orb.MultiLineString

	for _, partPoints := range splitParts(parts, points) {
		if len(partPoints) < 2 {
			continue
		}

		multiLineString = append(multiLineString, orb.LineString(partPoints))
	}

	switch len(multiLineString) {
	case 0:
		return nil
	case 1:
		return multiLineString[0]
	}

	return multiLineString
}

// toPolygonGeometry groups rings: clockwise rings are outer boundaries, counter-clockwise ones are holes
// of the preceding outer ring
func toPolygonGeometry(parts []int32, points []shp.Point) orb.Geometry {
	var multiPolygon orb.MultiPolygon

	for _, partPoints := range splitParts(parts, points) {
		ring := closeRing(orb.Ring(partPoints))
		if len(ring) < 4 {
			continue
		}

		if ring.Orientation() == orb.CCW && len(multiPolygon) > 0 {
			lastPolygon := &multiPolygon[len(multiPolygon)-1]
			*lastPolygon = append(*lastPolygon, ring)
			continue
		}

		multiPolygon = append(multiPolygon, orb.Polygon{ring})
	}

	switch len(multiPolygon) {
	case 0:
		return nil
	case 1:
		return multiPolygon[0]
	}

	return multiPolygon
}

func closeRing(ring orb.Ring) orb.Ring {
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}

	return ring
}
