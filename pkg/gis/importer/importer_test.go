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

package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/webgis/webgis/pkg/common"
	"github.com/webgis/webgis/pkg/gis"
	"github.com/webgis/webgis/pkg/gis/shapefile"
	"github.com/webgis/webgis/pkg/webgisconfig"

	"github.com/mholt/archiver/v3"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/suite"
)

const pointGeoJSON = `{"type": "FeatureCollection", "features": [
	{"type": "Feature", "geometry": {"type": "Point", "coordinates": [100.5, 13.7]}, "properties": {"name": "a"}}
]}`

type ImporterTestSuite struct {
	suite.Suite
	logger   logger.Logger
	workDir  string
	importer *Importer
	ctx      context.Context
}

func (suite *ImporterTestSuite) SetupTest() {
	var err error

	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.workDir = suite.T().TempDir()
	suite.ctx = context.Background()

	suite.importer, err = NewImporter(suite.logger, &webgisconfig.Upload{
		WorkDir:      suite.workDir,
		MaxSizeBytes: 1 << 20,
		DefaultSRID:  gis.DefaultSRID,
	})
	suite.Require().NoError(err)
}

func (suite *ImporterTestSuite) TearDownTest() {

	// every import cleans up after itself
	entries, err := os.ReadDir(suite.workDir)
	suite.Require().NoError(err)
	suite.Require().Empty(entries)
}

func (suite *ImporterTestSuite) TestImportGeoJSON() {
	layer, err := suite.importer.Import(suite.ctx, "Bangkok Points.geojson", strings.NewReader(pointGeoJSON))
	suite.Require().NoError(err)
	suite.Require().Equal("bangkok_points", layer.Name)
	suite.Require().Equal(gis.DefaultSRID, layer.SRID)
	suite.Require().Len(layer.Features, 1)
	suite.Require().Equal([]gis.Field{{Name: "name", Type: gis.FieldTypeString}}, layer.Fields)
}

func (suite *ImporterTestSuite) TestImportGeoJSONUnknownCRSFallsBack() {
	contents := `{"type": "FeatureCollection",
		"crs": {"type": "name", "properties": {"name": "urn:x-custom:grid"}},
		"features": [{"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {}}]}`

	layer, err := suite.importer.Import(suite.ctx, "grid.json", strings.NewReader(contents))
	suite.Require().NoError(err)
	suite.Require().Equal(gis.DefaultSRID, layer.SRID)
}

func (suite *ImporterTestSuite) TestImportZippedShapefile() {
	archivePath := suite.createShapefileArchive("rivers", true)

	archiveFile, err := os.Open(archivePath)
	suite.Require().NoError(err)

	defer archiveFile.Close() // nolint: errcheck

	layer, err := suite.importer.Import(suite.ctx, "Rivers-2024.zip", archiveFile)
	suite.Require().NoError(err)
	suite.Require().Equal("rivers_2024", layer.Name)
	suite.Require().Equal(32647, layer.SRID)
	suite.Require().Len(layer.Features, 2)
	suite.Require().Equal("chao phraya", layer.Features[0].Properties["name"])
}

func (suite *ImporterTestSuite) TestImportZippedShapefileWithoutProjection() {
	archivePath := suite.createShapefileArchive("wells", false)

	archiveFile, err := os.Open(archivePath)
	suite.Require().NoError(err)

	defer archiveFile.Close() // nolint: errcheck

	layer, err := suite.importer.Import(suite.ctx, "wells.zip", archiveFile)
	suite.Require().NoError(err)
	suite.Require().Equal(gis.DefaultSRID, layer.SRID)
}

func (suite *ImporterTestSuite) TestImportFile() {
	path := filepath.Join(suite.T().TempDir(), "source.geojson")
	suite.Require().NoError(os.WriteFile(path, []byte(pointGeoJSON), 0644))

	layer, err := suite.importer.ImportFile(suite.ctx, path, "Custom Name")
	suite.Require().NoError(err)
	suite.Require().Equal("custom_name", layer.Name)

	layer, err = suite.importer.ImportFile(suite.ctx, path, "")
	suite.Require().NoError(err)
	suite.Require().Equal("source", layer.Name)
}

func (suite *ImporterTestSuite) TestImportShapefileInPlace() {
	sourceDir := suite.T().TempDir()

	_, err := shapefile.Write(sourceDir, &gis.Layer{
		Name:   "Canals",
		Fields: []gis.Field{{Name: "name", Type: gis.FieldTypeString}},
		Features: []*geojson.Feature{
			suite.newFeature(orb.LineString{{100.5, 13.7}, {100.6, 13.8}}, "saen saep"),
		},
	})
	suite.Require().NoError(err)

	// the attributes come from the sibling .dbf
	layer, err := suite.importer.ImportFile(suite.ctx, filepath.Join(sourceDir, "Canals.shp"), "")
	suite.Require().NoError(err)
	suite.Require().Equal("canals", layer.Name)
	suite.Require().Equal(gis.DefaultSRID, layer.SRID)
	suite.Require().Equal("saen saep", layer.Features[0].Properties["name"])

	_, err = suite.importer.ImportFile(suite.ctx, filepath.Join(sourceDir, "missing.shp"), "")
	suite.Require().Error(err)
}

func (suite *ImporterTestSuite) TestImportErrors() {
	emptyArchivePath := suite.createArchive(map[string]string{"readme.txt": "no shapes here"})
	emptyArchive, err := os.ReadFile(emptyArchivePath)
	suite.Require().NoError(err)

	for _, testCase := range []struct {
		name               string
		uploadName         string
		contents           string
		expectedStatusCode int
		expectedMessage    string
	}{
		{
			name:               "no file name",
			uploadName:         "",
			contents:           pointGeoJSON,
			expectedStatusCode: http.StatusBadRequest,
			expectedMessage:    "No file provided",
		},
		{
			name:               "unsupported type",
			uploadName:         "roads.kml",
			contents:           "<kml/>",
			expectedStatusCode: http.StatusBadRequest,
			expectedMessage:    "Unsupported file type",
		},
		{
			name:               "empty",
			uploadName:         "roads.geojson",
			contents:           "",
			expectedStatusCode: http.StatusBadRequest,
			expectedMessage:    "Uploaded file is empty",
		},
		{
			name:               "too large",
			uploadName:         "roads.geojson",
			contents:           strings.Repeat(" ", 1<<20+1),
			expectedStatusCode: http.StatusRequestEntityTooLarge,
			expectedMessage:    "exceeds",
		},
		{
			name:               "zip without shapefile",
			uploadName:         "roads.zip",
			contents:           string(emptyArchive),
			expectedStatusCode: http.StatusBadRequest,
			expectedMessage:    "Zip file must contain a .shp file",
		},
		{
			name:               "corrupt zip",
			uploadName:         "roads.zip",
			contents:           "not a zip",
			expectedStatusCode: http.StatusBadRequest,
			expectedMessage:    "Invalid zip archive",
		},
		{
			name:               "invalid geojson",
			uploadName:         "roads.json",
			contents:           "{",
			expectedStatusCode: http.StatusBadRequest,
			expectedMessage:    "File processing failed",
		},
		{
			name:               "no features",
			uploadName:         "roads.json",
			contents:           `{"type": "FeatureCollection", "features": []}`,
			expectedStatusCode: http.StatusBadRequest,
			expectedMessage:    "File contains no features",
		},
	} {
		suite.Run(testCase.name, func() {
			_, err := suite.importer.Import(suite.ctx, testCase.uploadName, strings.NewReader(testCase.contents))
			suite.Require().Error(err)
			suite.Require().Equal(testCase.expectedStatusCode,
				common.ResolveErrorStatusCodeOrDefault(err, http.StatusInternalServerError))
			suite.Require().Contains(err.Error()+common.ResolveErrorMessage(err), testCase.expectedMessage)
		})
	}
}

func (suite *ImporterTestSuite) TestImportUppercaseShapefile() {
	sourceDir := suite.T().TempDir()

	_, err := shapefile.Write(sourceDir, &gis.Layer{
		Name:   "roads",
		SRID:   gis.DefaultSRID,
		Fields: []gis.Field{{Name: "name", Type: gis.FieldTypeString}},
		Features: []*geojson.Feature{
			suite.newFeature(orb.LineString{{100.5, 13.7}, {100.6, 13.8}}, "rama iv"),
		},
	})
	suite.Require().NoError(err)

	var paths []string
	for _, extension := range []string{"shp", "shx", "dbf", "prj"} {
		path := filepath.Join(sourceDir, "ROADS."+strings.ToUpper(extension))
		suite.Require().NoError(os.Rename(filepath.Join(sourceDir, "roads."+extension), path))
		paths = append(paths, path)
	}

	archivePath := filepath.Join(suite.T().TempDir(), "ROADS.ZIP")
	suite.Require().NoError(archiver.NewZip().Archive(paths, archivePath))

	archiveFile, err := os.Open(archivePath)
	suite.Require().NoError(err)

	defer archiveFile.Close() // nolint: errcheck

	layer, err := suite.importer.Import(suite.ctx, "ROADS.ZIP", archiveFile)
	suite.Require().NoError(err)
	suite.Require().Equal("roads", layer.Name)
	suite.Require().Equal(gis.DefaultSRID, layer.SRID)
	suite.Require().Equal([]gis.Field{{Name: "name", Type: gis.FieldTypeString}}, layer.Fields)
	suite.Require().Equal("rama iv", layer.Features[0].Properties["name"])

	// a bare .shp upload carries no attributes
	shpFile, err := os.Open(paths[0])
	suite.Require().NoError(err)

	defer shpFile.Close() // nolint: errcheck

	layer, err = suite.importer.Import(suite.ctx, "ROADS.SHP", shpFile)
	suite.Require().NoError(err)
	suite.Require().Equal("roads", layer.Name)
	suite.Require().Len(layer.Features, 1)
}

func (suite *ImporterTestSuite) TestImportZipEntriesStayInWorkDir() {
	rootDir := suite.T().TempDir()
	workDir := filepath.Join(rootDir, "nested", "work")

	nestedImporter, err := NewImporter(suite.logger, &webgisconfig.Upload{
		WorkDir:      workDir,
		MaxSizeBytes: 1 << 20,
		DefaultSRID:  gis.DefaultSRID,
	})
	suite.Require().NoError(err)

	archiveBuffer := bytes.Buffer{}
	zipWriter := zip.NewWriter(&archiveBuffer)

	for _, name := range []string{"../evil.shp", "../../evil.shp", "../../../evil.shp", "../../../../evil.shp"} {
		entryWriter, err := zipWriter.Create(name)
		suite.Require().NoError(err)

		_, err = entryWriter.Write([]byte("escaped"))
		suite.Require().NoError(err)
	}

	suite.Require().NoError(zipWriter.Close())

	_, err = nestedImporter.Import(suite.ctx, "roads.zip", &archiveBuffer)
	suite.Require().Error(err)
	suite.Require().Equal(http.StatusBadRequest, common.ResolveErrorStatusCodeOrDefault(err, 0))
	suite.Require().Contains(common.ResolveErrorMessage(err), "Zip file must contain a .shp file")

	escapedPaths, err := common.FindFilesByExtension(rootDir, ".shp")
	suite.Require().NoError(err)
	suite.Require().Empty(escapedPaths)

	entries, err := os.ReadDir(workDir)
	suite.Require().NoError(err)
	suite.Require().Empty(entries)
}

func (suite *ImporterTestSuite) TestImportCanceled() {
	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	_, err := suite.importer.Import(ctx, "roads.geojson", strings.NewReader(pointGeoJSON))
	suite.Require().Error(err)
}

// createShapefileArchive zips a line shapefile set nested in directories, optionally in UTM zone 47N
func (suite *ImporterTestSuite) createShapefileArchive(name string, withProjection bool) string {
	sourceDir := filepath.Join(suite.T().TempDir(), "nested", "dir")
	suite.Require().NoError(os.MkdirAll(sourceDir, 0755))

	_, err := shapefile.Write(sourceDir, &gis.Layer{
		Name:   name,
		Fields: []gis.Field{{Name: "name", Type: gis.FieldTypeString}},
		Features: []*geojson.Feature{
			suite.newFeature(orb.LineString{{660000, 1520000}, {661000, 1521000}}, "chao phraya"),
			suite.newFeature(orb.LineString{{662000, 1522000}, {663000, 1523000}}, "tha chin"),
		},
	})
	suite.Require().NoError(err)

	if withProjection {
		prjPath := filepath.Join(sourceDir, name+".prj")
		prj := `PROJCS["WGS_1984_UTM_Zone_47N",GEOGCS["GCS_WGS_1984"],UNIT["Meter",1.0]]`
		suite.Require().NoError(os.WriteFile(prjPath, []byte(prj), 0644))
	}

	archivePath := filepath.Join(suite.T().TempDir(), name+".zip")
	suite.Require().NoError(archiver.NewZip().Archive([]string{filepath.Dir(sourceDir)}, archivePath))

	return archivePath
}

func (suite *ImporterTestSuite) createArchive(files map[string]string) string {
	sourceDir := suite.T().TempDir()

	var paths []string
	for name, contents := range files {
		path := filepath.Join(sourceDir, name)
		suite.Require().NoError(os.WriteFile(path, []byte(contents), 0644))
		paths = append(paths, path)
	}

	archivePath := filepath.Join(suite.T().TempDir(), "archive.zip")
	suite.Require().NoError(archiver.NewZip().Archive(paths, archivePath))

	return archivePath
}

func (suite *ImporterTestSuite) newFeature(geometry orb.Geometry, name string) *geojson.Feature {
	feature := geojson.NewFeature(geometry)
	feature.Properties["name"] = name

	return feature
}

func TestImporterTestSuite(t *testing.T) {
	suite.Run(t, new(ImporterTestSuite))
}
