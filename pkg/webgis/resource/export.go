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

package resource

import (
	"net/http"
	"os"

	"github.com/webgis/webgis/pkg/common"
	"github.com/webgis/webgis/pkg/gis/exporter"
	"github.com/webgis/webgis/pkg/restful"
	"github.com/webgis/webgis/pkg/webgis"

	"github.com/go-chi/chi/v5"
	"github.com/nuclio/errors"
	"github.com/nuclio/nuclio-sdk-go"
)

type exportResource struct {
	*resource
}

// OnAfterInitialize adds the download route, which streams a file rather than returning attributes
func (er *exportResource) OnAfterInitialize() error {
	er.GetRouter().Get("/{id}/shapefile", er.exportShapefile)

	return nil
}

func (er *exportResource) exportShapefile(responseWriter http.ResponseWriter, request *http.Request) {
	layerName := chi.URLParam(request, "id")

	archive, err := er.createArchive(request, layerName)
	er.getServer().RecordOperation("export", err)

	if err != nil {
		er.WriteErrorResponse(responseWriter, err)
		return
	}

	defer archive.Close() // nolint: errcheck

	archiveFile, err := os.Open(archive.Path)
	if err != nil {
		er.WriteErrorResponse(responseWriter, errors.Wrap(err, "Failed to export shapefile"))
		return
	}

	defer archiveFile.Close() // nolint: errcheck

	archiveFileInfo, err := archiveFile.Stat()
	if err != nil {
		er.WriteErrorResponse(responseWriter, errors.Wrap(err, "Failed to export shapefile"))
		return
	}

	responseWriter.Header().Set("Content-Type", "application/zip")
	responseWriter.Header().Set("Content-Disposition", `attachment; filename="`+archive.FileName+`"`)

	http.ServeContent(responseWriter, request, archive.FileName, archiveFileInfo.ModTime(), archiveFile)
}

func (er *exportResource) createArchive(request *http.Request, layerName string) (*exporter.Archive, error) {
	layer, err := er.getStore().ReadLayer(request.Context(), layerName)
	if err != nil {
		if common.ResolveErrorStatusCodeOrDefault(err, http.StatusInternalServerError) == http.StatusNotFound {
			return nil, nuclio.NewErrNotFound("Layer not found or empty.")
		}

		return nil, errors.Wrap(err, "Failed to export shapefile")
	}

	archive, err := er.getServer().Exporter.Export(request.Context(), layer)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to export shapefile")
	}

	return archive, nil
}

// register the resource
var exportResourceInstance = &exportResource{
	resource: newResource("api/export", []restful.ResourceMethod{}),
}

func init() {
	exportResourceInstance.Resource = exportResourceInstance
	exportResourceInstance.Register(webgis.ResourceRegistrySingleton)
}
