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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/webgis/webgis/pkg/common"
	"github.com/webgis/webgis/pkg/gis"
	"github.com/webgis/webgis/pkg/gis/geojsonfile"
	"github.com/webgis/webgis/pkg/gis/shapefile"
	"github.com/webgis/webgis/pkg/webgisconfig"

	"github.com/mholt/archiver/v3"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/nuclio-sdk-go"
	"github.com/rs/xid"
	"github.com/samber/lo"
)

var supportedExtensions = []string{".zip", ".shp", ".geojson", ".json"}

// Importer turns uploaded vector files into layers
type Importer struct {
	logger       logger.Logger
	workDir      string
	defaultSRID  int
	maxSizeBytes int64
}

func NewImporter(parentLogger logger.Logger, configuration *webgisconfig.Upload) (*Importer, error) {
	newImporter := &Importer{
		logger:       parentLogger.GetChild("importer"),
		workDir:      configuration.WorkDir,
		defaultSRID:  configuration.DefaultSRID,
		maxSizeBytes: configuration.MaxSizeBytes,
	}

	if newImporter.workDir == "" {
		newImporter.workDir = os.TempDir()
	}

	if newImporter.defaultSRID <= 0 {
		newImporter.defaultSRID = gis.DefaultSRID
	}

	if err := os.MkdirAll(newImporter.workDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "Failed to create work directory %s", newImporter.workDir)
	}

	return newImporter, nil
}

// Import reads an uploaded .zip (shapefile set), .shp, .geojson or .json into a layer named after uploadName
func (i *Importer) Import(ctx context.Context, uploadName string, reader io.Reader) (*gis.Layer, error) {
	if uploadName == "" {
		return nil, nuclio.NewErrBadRequest("No file provided")
	}

	fileName := filepath.Base(strings.ReplaceAll(uploadName, `\`, "/"))
	extension := strings.ToLower(filepath.Ext(fileName))

	if !lo.Contains(supportedExtensions, extension) {
		return nil, nuclio.NewErrBadRequest("Unsupported file type. Please upload .zip (Shapefile) or .geojson/.json")
	}

	layerName, err := gis.SanitizeLayerName(fileName)
	if err != nil {
		return nil, nuclio.NewErrBadRequest(fmt.Sprintf("Invalid file name: %s", uploadName))
	}

	workDir := filepath.Join(i.workDir, "upload-"+xid.New().String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, errors.Wrap(err, "Failed to create upload directory")
	}

	defer os.RemoveAll(workDir) // nolint: errcheck

	uploadPath := filepath.Join(workDir, fileName)
	if err := i.storeUpload(uploadPath, reader); err != nil {
		return nil, errors.Wrap(err, "Failed to store upload")
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "Import canceled")
	}

	layer, err := i.readLayer(workDir, uploadPath, extension)
	if err != nil {
		return nil, err
	}

	layer.Name = layerName

	return i.completeLayer(layer, uploadName)
}

// ImportFile imports a local file, optionally under a different layer name. a .shp is read in place
// so its .dbf and .prj siblings are picked up
func (i *Importer) ImportFile(ctx context.Context, path string, layerName string) (*gis.Layer, error) {
	var layer *gis.Layer
	var err error

	if strings.ToLower(filepath.Ext(path)) == ".shp" {
		layer, err = i.importShapefileInPlace(path)
	} else {
		layer, err = i.importCopy(ctx, path)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "Failed to import %s", path)
	}

	if layerName != "" {
		if layer.Name, err = gis.SanitizeLayerName(layerName); err != nil {
			return nil, nuclio.NewErrBadRequest(fmt.Sprintf("Invalid layer name: %s", layerName))
		}
	}

	return layer, nil
}

func (i *Importer) importCopy(ctx context.Context, path string) (*gis.Layer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %s", path)
	}

	defer file.Close() // nolint: errcheck

	return i.Import(ctx, filepath.Base(path), file)
}

func (i *Importer) importShapefileInPlace(path string) (*gis.Layer, error) {
	layerName, err := gis.SanitizeLayerName(path)
	if err != nil {
		return nil, nuclio.NewErrBadRequest(fmt.Sprintf("Invalid file name: %s", path))
	}

	layer, err := i.readShapefile(path)
	if err != nil {
		return nil, err
	}

	layer.Name = layerName

	return i.completeLayer(layer, path)
}

// completeLayer rejects empty layers and assigns the default SRID to layers of unknown projection
func (i *Importer) completeLayer(layer *gis.Layer, source string) (*gis.Layer, error) {
	if len(layer.Features) == 0 {
		return nil, nuclio.NewErrBadRequest("File contains no features")
	}

	if layer.SRID <= 0 {
		i.logger.WarnWith("Projection unknown, assuming default",
			"source", source,
			"srid", i.defaultSRID)

		layer.SRID = i.defaultSRID
	}

	i.logger.DebugWith("Imported layer",
		"name", layer.Name,
		"srid", layer.SRID,
		"features", len(layer.Features),
		"fields", len(layer.Fields))

	return layer, nil
}

func (i *Importer) storeUpload(uploadPath string, reader io.Reader) error {
	file, err := os.Create(uploadPath)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %s", uploadPath)
	}

	defer file.Close() // nolint: errcheck

	// read one byte past the limit to detect oversized uploads
	if i.maxSizeBytes > 0 {
		reader = io.LimitReader(reader, i.maxSizeBytes+1)
	}

	written, err := io.Copy(file, reader)
	if err != nil {
		return errors.Wrap(err, "Failed to write upload")
	}

	if written == 0 {
		return nuclio.NewErrBadRequest("Uploaded file is empty")
	}

	if i.maxSizeBytes > 0 && written > i.maxSizeBytes {
		return nuclio.NewErrRequestEntityTooLarge(fmt.Sprintf("Uploaded file exceeds %d bytes", i.maxSizeBytes))
	}

	return nil
}

func (i *Importer) readLayer(workDir string, uploadPath string, extension string) (*gis.Layer, error) {
	switch extension {
	case ".zip":
		shpPath, err := i.extractShapefile(workDir, uploadPath)
		if err != nil {
			return nil, err
		}

		return i.readShapefile(shpPath)

	case ".shp":
		return i.readShapefile(uploadPath)

	default:
		layer, err := geojsonfile.Read(uploadPath)
		if err != nil {
			return nil, wrapAsBadRequest(err, "File processing failed")
		}

		return layer, nil
	}
}

func (i *Importer) readShapefile(shpPath string) (*gis.Layer, error) {
	layer, err := shapefile.Read(shpPath)
	if err != nil {
		return nil, wrapAsBadRequest(err, "File processing failed")
	}

	return layer, nil
}

// extractShapefile extracts the archive and returns the first .shp in it
func (i *Importer) extractShapefile(workDir string, archivePath string) (string, error) {
	extractDir := filepath.Join(workDir, "extracted")

	zipArchiver := archiver.NewZip()
	zipArchiver.MkdirAll = true
	zipArchiver.OverwriteExisting = true

	// rejects entries escaping the target directory
	if err := zipArchiver.Unarchive(archivePath, extractDir); err != nil {
		return "", wrapAsBadRequest(err, "Invalid zip archive")
	}

	shpPaths, err := common.FindFilesByExtension(extractDir, ".shp")
	if err != nil {
		return "", errors.Wrap(err, "Failed to search for shapefiles")
	}

	// skip resource forks added by macOS archivers
	shpPaths = lo.Reject(shpPaths, func(path string, _ int) bool {
		return strings.Contains(filepath.ToSlash(path), "__MACOSX/")
	})

	if len(shpPaths) == 0 {
		return "", nuclio.NewErrBadRequest("Zip file must contain a .shp file")
	}

	if len(shpPaths) > 1 {
		i.logger.DebugWith("Archive holds more than one shapefile, using the first",
			"shapefiles", shpPaths)
	}

	return shpPaths[0], nil
}

func wrapAsBadRequest(err error, message string) error {
	return nuclio.NewErrBadRequest(fmt.Sprintf("%s: %s", message, common.ResolveErrorMessage(err)))
}
