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

package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/webgis/webgis/pkg/common"
	"github.com/webgis/webgis/pkg/gis"
	"github.com/webgis/webgis/pkg/store"
	"github.com/webgis/webgis/pkg/webgisconfig"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/nuclio-sdk-go"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"github.com/samber/lo"
)

const (
	schemaName   = "public"
	bufferSRID   = 3857
	driverName   = "pgx"
	emptyGeoJSON = `{"type":"FeatureCollection","features":[]}`
)

type Store struct {
	logger       logger.Logger
	db           *sql.DB
	queryTimeout time.Duration
}

// layerColumns are the catalogue entries of a registered layer
type layerColumns struct {
	geometryColumn string
	srid           int
	columns        []column
}

type column struct {
	name     string
	dataType string
}

// NewStore opens a connection pool to the configured database
func NewStore(parentLogger logger.Logger, configuration *webgisconfig.Database) (*Store, error) {
	db, err := sql.Open(driverName, configuration.URL)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to open database")
	}

	db.SetMaxOpenConns(configuration.MaxOpenConnections)
	db.SetMaxIdleConns(configuration.MaxIdleConnections)
	db.SetConnMaxLifetime(configuration.GetConnectionMaxLifetime())

	newStore := NewStoreWithDB(parentLogger, db, configuration.GetQueryTimeout())

	newStore.logger.DebugWith("Opened database",
		"url", common.RedactURLPassword(configuration.URL),
		"maxOpenConnections", configuration.MaxOpenConnections)

	return newStore, nil
}

// NewStoreWithDB wraps an open database
func NewStoreWithDB(parentLogger logger.Logger, db *sql.DB, queryTimeout time.Duration) *Store {
	return &Store{
		logger:       parentLogger.GetChild("postgis"),
		db:           db,
		queryTimeout: queryTimeout,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "Failed to ping database")
	}

	return nil
}

func (s *Store) PostGISVersion(ctx context.Context) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT PostGIS_Full_Version()").Scan(&version); err != nil {
		return "", errors.Wrap(err, "Failed to query PostGIS version")
	}

	return version, nil
}

func (s *Store) ListLayers(ctx context.Context) ([]store.LayerInfo, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT f_table_name, type, srid
		FROM geometry_columns
		WHERE f_table_schema = $1
		ORDER BY f_table_name`, schemaName)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to query layers")
	}

	defer rows.Close() // nolint: errcheck

	layers := []store.LayerInfo{}
	for rows.Next() {
		var layer store.LayerInfo
		if err := rows.Scan(&layer.Name, &layer.GeometryType, &layer.SRID); err != nil {
			return nil, errors.Wrap(err, "Failed to scan layer")
		}

		layers = append(layers, layer)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "Failed to iterate layers")
	}

	return layers, nil
}

func (s *Store) GetLayerGeoJSON(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.resolveLayer(ctx, s.db, name); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT json_build_object(
			'type', 'FeatureCollection',
			'features', COALESCE(json_agg(ST_AsGeoJSON(t.*)::json), '[]'::json)
		)::text
		FROM %s AS t`, quoteIdentifier(name))

	var encodedFeatureCollection sql.NullString
	if err := s.db.QueryRowContext(ctx, query).Scan(&encodedFeatureCollection); err != nil {
		return nil, errors.Wrapf(err, "Failed to query features of %s", name)
	}

	if !encodedFeatureCollection.Valid || encodedFeatureCollection.String == "" {
		return []byte(emptyGeoJSON), nil
	}

	return []byte(encodedFeatureCollection.String), nil
}

func (s *Store) GetLayerAttributes(ctx context.Context, name string, limit int) (*store.AttributeTable, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = store.DefaultAttributesLimit
	}

	layer, err := s.resolveLayer(ctx, s.db, name)
	if err != nil {
		return nil, err
	}

	attributeTable := &store.AttributeTable{
		Headers: lo.Map(layer.columns, func(column column, _ int) string {
			return column.name
		}),
		Data: []map[string]interface{}{},
	}

	// with no attribute columns, every column is returned
	selectList := "*"
	if len(layer.columns) > 0 {
		selectList = strings.Join(lo.Map(attributeTable.Headers, func(header string, _ int) string {
			return quoteIdentifier(header)
		}), ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d", selectList, quoteIdentifier(name), limit)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to query attributes of %s", name)
	}

	defer rows.Close() // nolint: errcheck

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get columns")
	}

	for rows.Next() {
		values := make([]interface{}, len(columnNames))
		valuePointers := make([]interface{}, len(columnNames))
		for valueIndex := range values {
			valuePointers[valueIndex] = &values[valueIndex]
		}

		if err := rows.Scan(valuePointers...); err != nil {
			return nil, errors.Wrap(err, "Failed to scan attributes")
		}

		record := map[string]interface{}{}
		for columnIndex, columnName := range columnNames {
			record[columnName] = toJSONValue(values[columnIndex])
		}

		attributeTable.Data = append(attributeTable.Data, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "Failed to iterate attributes")
	}

	return attributeTable, nil
}

func (s *Store) WriteLayer(ctx context.Context, layer *gis.Layer) (int, error) {
	if _, err := gis.SanitizeLayerName(layer.Name); err != nil || len(layer.Name) > gis.MaxLayerNameLength {
		return 0, nuclio.NewErrBadRequest(fmt.Sprintf("Invalid layer name: %s", layer.Name))
	}

	fields := layer.Fields
	if fields == nil {
		fields = gis.InferFields(layer.Features)
	}

	fields = gis.ReserveGeometryColumn(fields)

	srid := layer.SRID
	if srid <= 0 {
		srid = gis.DefaultSRID
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "Failed to begin transaction")
	}

	defer tx.Rollback() // nolint: errcheck

	tableName := quoteIdentifier(layer.Name)

	for _, statement := range []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName),
		createTableStatement(tableName, fields),
	} {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return 0, errors.Wrapf(err, "Failed to create table %s", layer.Name)
		}
	}

	insertStatement := insertStatement(tableName, fields, srid)
	numWritten := 0

	for featureIndex, feature := range layer.Features {
		if feature == nil {
			continue
		}

		arguments, err := insertArguments(fields, feature)
		if err != nil {
			return 0, errors.Wrapf(err, "Failed to encode feature %d", featureIndex)
		}

		if _, err := tx.ExecContext(ctx, insertStatement, arguments...); err != nil {
			return 0, errors.Wrapf(err, "Failed to insert feature %d", featureIndex)
		}

		numWritten++
	}

	indexStatement := fmt.Sprintf("CREATE INDEX ON %s USING GIST (%s)",
		tableName,
		quoteIdentifier(gis.GeometryColumnName))
	if _, err := tx.ExecContext(ctx, indexStatement); err != nil {
		return 0, errors.Wrapf(err, "Failed to index table %s", layer.Name)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "Failed to commit layer")
	}

	s.logger.DebugWith("Wrote layer",
		"name", layer.Name,
		"sourceSRID", srid,
		"features", numWritten,
		"fields", len(fields))

	return numWritten, nil
}

func (s *Store) ReadLayer(ctx context.Context, name string) (*gis.Layer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	layerColumns, err := s.resolveLayer(ctx, s.db, name)
	if err != nil {
		return nil, err
	}

	layer := &gis.Layer{
		Name: name,
		SRID: gis.DefaultSRID,
	}

	geometryExpression := quoteIdentifier(layerColumns.geometryColumn)
	switch layerColumns.srid {
	case gis.DefaultSRID:
	case 0:
		layer.SRID = 0
	default:
		geometryExpression = fmt.Sprintf("ST_Transform(%s, %d)", geometryExpression, gis.DefaultSRID)
	}

	selectList := []string{fmt.Sprintf("ST_AsBinary(ST_Force2D(%s))", geometryExpression)}
	for _, column := range layerColumns.columns {
		field := gis.Field{Name: column.name, Type: fieldTypeByDataType(column.dataType)}
		layer.Fields = append(layer.Fields, field)
		selectList = append(selectList, selectExpression(field))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectList, ", "), quoteIdentifier(name))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to query features of %s", name)
	}

	defer rows.Close() // nolint: errcheck

	for rows.Next() {
		var encodedGeometry []byte
		values := make([]interface{}, len(layer.Fields))

		scanTargets := []interface{}{&encodedGeometry}
		for valueIndex := range values {
			scanTargets = append(scanTargets, &values[valueIndex])
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, errors.Wrap(err, "Failed to scan feature")
		}

		feature := &geojson.Feature{
			Type:       "Feature",
			Properties: geojson.Properties{},
		}

		if len(encodedGeometry) > 0 {
			if feature.Geometry, err = wkb.Unmarshal(encodedGeometry); err != nil {
				return nil, errors.Wrap(err, "Failed to decode geometry")
			}
		}

		for fieldIndex, field := range layer.Fields {
			feature.Properties[field.Name] = gis.CoerceValue(field.Type, toJSONValue(values[fieldIndex]))
		}

		layer.Features = append(layer.Features, feature)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "Failed to iterate features")
	}

	return layer, nil
}

func (s *Store) CreateBuffer(ctx context.Context, name string, distanceMeters float64) (string, error) {
	if math.IsNaN(distanceMeters) || math.IsInf(distanceMeters, 0) || distanceMeters <= 0 {
		return "", nuclio.NewErrBadRequest("Distance must be a positive number of meters")
	}

	if distanceMeters > gis.MaxBufferDistanceMeters {
		return "", nuclio.NewErrBadRequest(fmt.Sprintf("Distance must not exceed %d meters",
			gis.MaxBufferDistanceMeters))
	}

	bufferName := gis.BufferLayerName(name, distanceMeters)
	if bufferName == name {
		return "", nuclio.NewErrBadRequest(fmt.Sprintf("Buffer of %s would replace it", name))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "Failed to begin transaction")
	}

	defer tx.Rollback() // nolint: errcheck

	layerColumns, err := s.resolveLayer(ctx, tx, name)
	if err != nil {
		return "", err
	}

	sourceGeometry := quoteIdentifier(layerColumns.geometryColumn)
	if layerColumns.srid == 0 {
		sourceGeometry = fmt.Sprintf("ST_SetSRID(%s, %d)", sourceGeometry, gis.DefaultSRID)
	}

	selectList := []string{
		fmt.Sprintf("ST_Transform(ST_Buffer(ST_Transform(%s, %d), %s), %d)::geometry(Geometry, %d) AS %s",
			sourceGeometry,
			bufferSRID,
			strconv.FormatFloat(distanceMeters, 'f', -1, 64),
			gis.DefaultSRID,
			gis.DefaultSRID,
			quoteIdentifier(gis.GeometryColumnName)),
	}

	for _, column := range layerColumns.columns {

		// the buffer geometry takes this name
		if column.name == gis.GeometryColumnName {
			continue
		}

		selectList = append(selectList, quoteIdentifier(column.name))
	}

	bufferTableName := quoteIdentifier(bufferName)

	for _, statement := range []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", bufferTableName),
		fmt.Sprintf("CREATE TABLE %s AS SELECT %s FROM %s",
			bufferTableName,
			strings.Join(selectList, ", "),
			quoteIdentifier(name)),
		fmt.Sprintf("CREATE INDEX ON %s USING GIST (%s)", bufferTableName, quoteIdentifier(gis.GeometryColumnName)),
	} {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return "", errors.Wrapf(err, "Failed to create buffer of %s", name)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "Failed to commit buffer")
	}

	s.logger.DebugWith("Created buffer",
		"source", name,
		"distanceMeters", distanceMeters,
		"name", bufferName)

	return bufferName, nil
}

func (s *Store) DeleteLayer(ctx context.Context, name string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.resolveLayer(ctx, s.db, name); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", quoteIdentifier(name))); err != nil {
		return errors.Wrapf(err, "Failed to drop %s", name)
	}

	s.logger.DebugWith("Deleted layer", "name", name)

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// resolveLayer looks the layer up in the catalogue. Names that aren't registered are never used in SQL
func (s *Store) resolveLayer(ctx context.Context, queryer queryer, name string) (*layerColumns, error) {
	resolvedLayer := &layerColumns{}

	err := queryer.QueryRowContext(ctx, `SELECT f_geometry_column, srid
		FROM geometry_columns
		WHERE f_table_schema = $1 AND f_table_name = $2
		LIMIT 1`, schemaName, name).Scan(&resolvedLayer.geometryColumn, &resolvedLayer.srid)

	switch {
	case err == sql.ErrNoRows:
		return nil, nuclio.NewErrNotFound("Table or geometry column not found.")
	case err != nil:
		return nil, errors.Wrapf(err, "Failed to resolve layer %s", name)
	}

	rows, err := queryer.QueryContext(ctx, `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 AND column_name <> $3
		ORDER BY ordinal_position`, schemaName, name, resolvedLayer.geometryColumn)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to query columns of %s", name)
	}

	defer rows.Close() // nolint: errcheck

	for rows.Next() {
		var resolvedColumn column
		if err := rows.Scan(&resolvedColumn.name, &resolvedColumn.dataType); err != nil {
			return nil, errors.Wrap(err, "Failed to scan column")
		}

		resolvedLayer.columns = append(resolvedLayer.columns, resolvedColumn)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "Failed to iterate columns")
	}

	return resolvedLayer, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.queryTimeout)
}

func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func createTableStatement(tableName string, fields []gis.Field) string {
	columnDefinitions := lo.Map(fields, func(field gis.Field, _ int) string {
		return quoteIdentifier(field.Name) + " " + columnTypeByFieldType(field.Type)
	})

	columnDefinitions = append(columnDefinitions, fmt.Sprintf("%s geometry(Geometry, %d)",
		quoteIdentifier(gis.GeometryColumnName),
		gis.DefaultSRID))

	return fmt.Sprintf("CREATE TABLE %s (%s)", tableName, strings.Join(columnDefinitions, ", "))
}

func insertStatement(tableName string, fields []gis.Field, srid int) string {
	columnNames := lo.Map(fields, func(field gis.Field, _ int) string {
		return quoteIdentifier(field.Name)
	})

	placeholders := lo.Map(fields, func(_ gis.Field, index int) string {
		return "$" + strconv.Itoa(index+1)
	})

	columnNames = append(columnNames, quoteIdentifier(gis.GeometryColumnName))
	placeholders = append(placeholders, fmt.Sprintf("ST_Transform(ST_SetSRID(ST_GeomFromWKB($%d), %d), %d)",
		len(fields)+1,
		srid,
		gis.DefaultSRID))

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName,
		strings.Join(columnNames, ", "),
		strings.Join(placeholders, ", "))
}

func insertArguments(fields []gis.Field, feature *geojson.Feature) ([]interface{}, error) {
	arguments := make([]interface{}, 0, len(fields)+1)
	for _, field := range fields {
		arguments = append(arguments, gis.CoerceValue(field.Type, feature.Properties[field.Key()]))
	}

	if feature.Geometry == nil {
		return append(arguments, nil), nil
	}

	encodedGeometry, err := wkb.Marshal(feature.Geometry)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to encode geometry")
	}

	return append(arguments, encodedGeometry), nil
}

func columnTypeByFieldType(fieldType gis.FieldType) string {
	switch fieldType {
	case gis.FieldTypeInteger:
		return "bigint"
	case gis.FieldTypeFloat:
		return "double precision"
	case gis.FieldTypeBoolean:
		return "boolean"
	default:
		return "text"
	}
}

func fieldTypeByDataType(dataType string) gis.FieldType {
	switch dataType {
	case "smallint", "integer", "bigint":
		return gis.FieldTypeInteger
	case "real", "double precision", "numeric":
		return gis.FieldTypeFloat
	case "boolean":
		return gis.FieldTypeBoolean
	default:
		return gis.FieldTypeString
	}
}

// selectExpression casts a column to the type its field is decoded as
func selectExpression(field gis.Field) string {
	switch field.Type {
	case gis.FieldTypeInteger:
		return quoteIdentifier(field.Name) + "::bigint"
	case gis.FieldTypeFloat:
		return quoteIdentifier(field.Name) + "::double precision"
	case gis.FieldTypeBoolean:
		return quoteIdentifier(field.Name)
	default:
		return quoteIdentifier(field.Name) + "::text"
	}
}

func toJSONValue(value interface{}) interface{} {
	switch typedValue := value.(type) {
	case []byte:
		return string(typedValue)
	case time.Time:
		return typedValue.Format(time.RFC3339Nano)
	}

	return value
}
