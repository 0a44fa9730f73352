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
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/webgis/webgis/pkg/restful"
	"github.com/webgis/webgis/pkg/webgis"

	"github.com/nuclio/errors"
	"github.com/nuclio/nuclio-sdk-go"
)

const uploadFormField = "file"

type uploadResource struct {
	*resource
}

func (ur *uploadResource) GetCustomRoutes() ([]restful.CustomRoute, error) {
	return []restful.CustomRoute{
		{
			Pattern:   "/",
			Method:    http.MethodPost,
			RouteFunc: ur.upload,
		},
	}, nil
}

// upload imports the multipart "file" field as a layer, replacing any layer of the same name
func (ur *uploadResource) upload(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	if !strings.HasPrefix(request.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, nuclio.NewErrBadRequest("No file provided")
	}

	multipartReader, err := request.MultipartReader()
	if err != nil {
		return nil, nuclio.NewErrBadRequest(fmt.Sprintf("Invalid multipart body: %s", err.Error()))
	}

	filePart, err := ur.findFilePart(multipartReader)
	if err != nil {
		return nil, err
	}

	defer filePart.Close() // nolint: errcheck

	layer, err := ur.getServer().Importer.Import(request.Context(), filePart.FileName(), filePart)
	if err != nil {
		ur.getServer().RecordOperation("import", err)
		return nil, errors.Wrap(err, "File processing failed")
	}

	numWritten, err := ur.getStore().WriteLayer(request.Context(), layer)
	ur.getServer().RecordOperation("import", err)

	if err != nil {
		return nil, errors.Wrap(err, "File processing failed")
	}

	ur.Logger.InfoWith("Layer uploaded",
		"layer", layer.Name,
		"srid", layer.SRID,
		"features", numWritten)

	return &restful.CustomRouteFuncResponse{
		Resources: map[string]restful.Attributes{
			layer.Name: {
				"message":  fmt.Sprintf("Layer '%s' uploaded successfully.", layer.Name),
				"layer":    layer.Name,
				"features": numWritten,
			},
		},
		Single: true,
	}, nil
}

// findFilePart streams the body up to the file part, skipping any other field
func (ur *uploadResource) findFilePart(multipartReader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := multipartReader.NextPart()
		if err == io.EOF {
			return nil, nuclio.NewErrBadRequest("No file provided")
		}

		if err != nil {
			return nil, nuclio.NewErrBadRequest(fmt.Sprintf("Invalid multipart body: %s", err.Error()))
		}

		if part.FormName() == uploadFormField {
			return part, nil
		}

		part.Close() // nolint: errcheck
	}
}

// register the resource
var uploadResourceInstance = &uploadResource{
	resource: newResource("api/upload", []restful.ResourceMethod{}),
}

func init() {
	uploadResourceInstance.Resource = uploadResourceInstance
	uploadResourceInstance.Register(webgis.ResourceRegistrySingleton)
}
