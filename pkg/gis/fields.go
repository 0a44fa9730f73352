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
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/paulmach/orb/geojson"
	"github.com/samber/lo"
)

// GeometryColumnName is the name of the geometry column of every stored layer
const GeometryColumnName = "geom"

// InferFields derives an ordered column set from the properties of features
func InferFields(features []*geojson.Feature) []Field {
	fieldTypes := map[string]FieldType{}

	for _, feature := range features {
		if feature == nil {
			continue
		}

		for key, value := range feature.Properties {
			if key == "" {
				continue
			}

			valueType, ok := resolveValueType(value)
			if !ok {

				// null values don't vote, but the column still exists
				if _, found := fieldTypes[key]; !found {
					fieldTypes[key] = ""
				}

				continue
			}

			fieldTypes[key] = widenFieldType(fieldTypes[key], valueType)
		}
	}

	keys := lo.Keys(fieldTypes)
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		fieldType := fieldTypes[key]
		if fieldType == "" {
			fieldType = FieldTypeString
		}

		fields = append(fields, Field{Name: key, Type: fieldType})
	}

	return ReserveGeometryColumn(fields)
}

// ReserveGeometryColumn renames a field named like the geometry column, keeping its source key
func ReserveGeometryColumn(fields []Field) []Field {
	takenNames := map[string]bool{}
	for _, field := range fields {
		takenNames[field.Name] = true
	}

	reservedFields := make([]Field, 0, len(fields))
	for _, field := range fields {
		if field.Name == GeometryColumnName {
			field.SourceKey = field.Key()
			field.Name = uniqueName(GeometryColumnName, takenNames)
			takenNames[field.Name] = true
		}

		reservedFields = append(reservedFields, field)
	}

	return reservedFields
}

// CoerceValue converts a property value to the Go type matching fieldType. nil stays nil
func CoerceValue(fieldType FieldType, value interface{}) interface{} {
	if value == nil {
		return nil
	}

	switch fieldType {
	case FieldTypeInteger:
		switch typedValue := value.(type) {
		case float64:
			return int64(typedValue)
		case float32:
			return int64(typedValue)
		}

		if integerValue, ok := toInt64(value); ok {
			return integerValue
		}

	case FieldTypeFloat:
		switch typedValue := value.(type) {
		case float64:
			return typedValue
		case float32:
			return float64(typedValue)
		}

		if integerValue, ok := toInt64(value); ok {
			return float64(integerValue)
		}

	case FieldTypeBoolean:
		if booleanValue, ok := value.(bool); ok {
			return booleanValue
		}

	case FieldTypeString:
		return stringify(value)
	}

	return stringify(value)
}

func resolveValueType(value interface{}) (FieldType, bool) {
	switch typedValue := value.(type) {
	case nil:
		return "", false
	case bool:
		return FieldTypeBoolean, true
	case float64:

		// JSON numbers are all float64, integral ones are treated as integers
		if typedValue == math.Trunc(typedValue) && math.Abs(typedValue) < 1<<53 {
			return FieldTypeInteger, true
		}

		return FieldTypeFloat, true
	case float32:
		return FieldTypeFloat, true
	case string:
		return FieldTypeString, true
	}

	if _, ok := toInt64(value); ok {
		return FieldTypeInteger, true
	}

	return FieldTypeString, true
}

func widenFieldType(current FieldType, next FieldType) FieldType {
	switch {
	case current == "" || current == next:
		return next
	case isNumeric(current) && isNumeric(next):
		return FieldTypeFloat
	default:
		return FieldTypeString
	}
}

func isNumeric(fieldType FieldType) bool {
	return fieldType == FieldTypeInteger || fieldType == FieldTypeFloat
}

func toInt64(value interface{}) (int64, bool) {
	switch typedValue := value.(type) {
	case int:
		return int64(typedValue), true
	case int8:
		return int64(typedValue), true
	case int16:
		return int64(typedValue), true
	case int32:
		return int64(typedValue), true
	case int64:
		return typedValue, true
	case uint8:
		return int64(typedValue), true
	case uint16:
		return int64(typedValue), true
	case uint32:
		return int64(typedValue), true
	}

	return 0, false
}

func stringify(value interface{}) string {
	switch typedValue := value.(type) {
	case string:
		return typedValue
	case float64:
		return strconv.FormatFloat(typedValue, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typedValue)
	}

	if integerValue, ok := toInt64(value); ok {
		return formatInt(integerValue)
	}

	return jsonString(value)
}

func uniqueName(base string, takenNames map[string]bool) string {
	for index := 1; ; index++ {
		candidate := base + "_" + strconv.Itoa(index)
		if !takenNames[candidate] {
			return candidate
		}
	}
}

func jsonString(value interface{}) string {
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}

	return string(encodedValue)
}

func formatInt(value int64) string {
	return strconv.FormatInt(value, 10)
}
