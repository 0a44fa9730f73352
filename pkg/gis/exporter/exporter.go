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

package exporter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/webgis/webgis/pkg/gis"
	"github.com/webgis/webgis/pkg/gis/shapefile"
	"github.com/webgis/webgis/pkg/webgisconfig"

	"github.com/mholt/archiver/v3"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/nuclio-sdk-go"
	"github.com/rs/xid"
)

// Archive is a zipped shapefile set on disk. Close removes it
type Archive struct {
	Path        string
	FileName    string
	NumFeatures int
	NumSkipped  int

	workDir string
}

func (a *Archive) Close() error {
	return os.RemoveAll(a.workDir)
}

type Exporter struct {
	logger  logger.Logger
	workDir string
}

func NewExporter(parentLogger logger.Logger, configuration *webgisconfig.Upload) (*Exporter, error) {
	newExporter := &Exporter{
		logger:  parentLogger.GetChild("exporter"),
		workDir: configuration.WorkDir,
	}

	if newExporter.workDir == "" {
		newExporter.workDir = os.TempDir()
	}

	if err := os.MkdirAll(newExporter.workDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "Failed to create work directory %s", newExporter.workDir)
	}

	return newExporter, nil
}

// ArchiveFileName returns the name of the archive a layer is exported as
func ArchiveFileName(layerName string) string {
	return layerName + "_export.zip"
}

// Export writes layer as a shapefile set and zips every file named after the layer
func (e *Exporter) Export(ctx context.Context, layer *gis.Layer) (*Archive, error) {
	if layer == nil || layer.IsEmpty() {
		return nil, nuclio.NewErrNotFound("Layer not found or empty.")
	}

	// the name becomes a file name
	if filepath.Base(layer.Name) != layer.Name || strings.HasPrefix(layer.Name, ".") {
		return nil, nuclio.NewErrBadRequest("Invalid layer name: " + layer.Name)
	}

	archive := &Archive{
		FileName: ArchiveFileName(layer.Name),
		workDir:  filepath.Join(e.workDir, "export-"+xid.New().String()),
	}

	layerDir := filepath.Join(archive.workDir, "layer")
	if err := os.MkdirAll(layerDir, 0755); err != nil {
		return nil, errors.Wrap(err, "Failed to create export directory")
	}

	if err := e.writeArchive(ctx, layer, layerDir, archive); err != nil {
		archive.Close() // nolint: errcheck
		return nil, err
	}

	e.logger.DebugWith("Exported layer",
		"name", layer.Name,
		"features", archive.NumFeatures,
		"skipped", archive.NumSkipped)

	return archive, nil
}

// ExportShapefile streams the zipped shapefile set of layer to writer
func (e *Exporter) ExportShapefile(ctx context.Context, layer *gis.Layer, writer io.Writer) (*Archive, error) {
	archive, err := e.Export(ctx, layer)
	if err != nil {
		return nil, err
	}

	defer archive.Close() // nolint: errcheck

	archiveFile, err := os.Open(archive.Path)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to open archive")
	}

	defer archiveFile.Close() // nolint: errcheck

	if _, err := io.Copy(writer, archiveFile); err != nil {
		return nil, errors.Wrap(err, "Failed to write archive")
	}

	return archive, nil
}

func (e *Exporter) writeArchive(ctx context.Context, layer *gis.Layer, layerDir string, archive *Archive) error {
	writeResult, err := shapefile.Write(layerDir, layer)
	if err != nil {
		return errors.Wrap(err, "Failed to write shapefile")
	}

	archive.NumFeatures = writeResult.NumWritten
	archive.NumSkipped = writeResult.NumSkipped

	if archive.NumSkipped > 0 {
		e.logger.WarnWith("Skipped features the shapefile type can't hold",
			"name", layer.Name,
			"shapeType", writeResult.ShapeType,
			"skipped", archive.NumSkipped)
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Export canceled")
	}

	sourcePaths, err := layerFiles(layerDir, layer.Name)
	if err != nil {
		return errors.Wrap(err, "Failed to list shapefile components")
	}

	archive.Path = filepath.Join(archive.workDir, archive.FileName)

	zipArchiver := archiver.NewZip()
	zipArchiver.OverwriteExisting = true

	if err := zipArchiver.Archive(sourcePaths, archive.Path); err != nil {
		return errors.Wrap(err, "Failed to create archive")
	}

	return nil
}

func layerFiles(dir string, layerName string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %s", dir)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), layerName) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}

	sort.Strings(paths)

	return paths, nil
}
