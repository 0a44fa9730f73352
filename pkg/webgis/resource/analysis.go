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
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"

	"github.com/webgis/webgis/pkg/restful"
	"github.com/webgis/webgis/pkg/webgis"

	"github.com/mitchellh/mapstructure"
	"github.com/nuclio/errors"
	"github.com/nuclio/nuclio-sdk-go"
)

const maxAnalysisRequestBytes = 1 << 20

type bufferRequest struct {
	TableName string   `mapstructure:"table_name"`
	Distance  *float64 `mapstructure:"distance"`
}

type analysisResource struct {
	*resource
}

func (ar *analysisResource) GetCustomRoutes() ([]restful.CustomRoute, error) {
	return []restful.CustomRoute{
		{
			Pattern:   "/buffer",
			Method:    http.MethodPost,
			RouteFunc: ar.buffer,
		},
	}, nil
}

// buffer creates a layer holding the features of table_name buffered by distance meters
func (ar *analysisResource) buffer(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	bufferRequestInstance, err := ar.decodeBufferRequest(request)
	if err != nil {
		return nil, err
	}

	bufferLayerName, err := ar.getStore().CreateBuffer(request.Context(),
		bufferRequestInstance.TableName,
		*bufferRequestInstance.Distance)
	ar.getServer().RecordOperation("buffer", err)

	if err != nil {
		return nil, errors.Wrap(err, "Buffer analysis failed")
	}

	return &restful.CustomRouteFuncResponse{
		Resources: map[string]restful.Attributes{
			bufferLayerName: {
				"status":         "success",
				"new_layer_name": bufferLayerName,
				"message":        fmt.Sprintf("Buffer created as '%s'", bufferLayerName),
			},
		},
		Single: true,
	}, nil
}

// decodeBufferRequest accepts a JSON or form body. numbers may be given as strings
func (ar *analysisResource) decodeBufferRequest(request *http.Request) (*bufferRequest, error) {
	body := map[string]interface{}{}

	mediaType, _, _ := mime.ParseMediaType(request.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		request.Body = io.NopCloser(io.LimitReader(request.Body, maxAnalysisRequestBytes))
		if err := request.ParseMultipartForm(maxAnalysisRequestBytes); err != nil && err != http.ErrNotMultipart {
			return nil, nuclio.NewErrBadRequest(fmt.Sprintf("Invalid form body: %s", err.Error()))
		}

		for key := range request.PostForm {
			body[key] = request.PostForm.Get(key)
		}

	default:
		decoder := json.NewDecoder(io.LimitReader(request.Body, maxAnalysisRequestBytes))
		decoder.UseNumber()

		if err := decoder.Decode(&body); err != nil {
			return nil, nuclio.NewErrBadRequest(fmt.Sprintf("Invalid JSON body: %s", err.Error()))
		}
	}

	bufferRequestInstance := &bufferRequest{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       jsonNumberToFloatHook,
		Result:           bufferRequestInstance,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create decoder")
	}

	if err := decoder.Decode(body); err != nil {
		return nil, nuclio.NewErrBadRequest(fmt.Sprintf("Invalid buffer request: %s", err.Error()))
	}

	if bufferRequestInstance.TableName == "" {
		return nil, nuclio.NewErrBadRequest("table_name is required")
	}

	if bufferRequestInstance.Distance == nil {
		return nil, nuclio.NewErrBadRequest("distance is required")
	}

	return bufferRequestInstance, nil
}

func jsonNumberToFloatHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	number, isNumber := data.(json.Number)
	if !isNumber {
		return data, nil
	}

	return number.Float64()
}

// register the resource
var analysisResourceInstance = &analysisResource{
	resource: newResource("api/analysis", []restful.ResourceMethod{}),
}

func init() {
	analysisResourceInstance.Resource = analysisResourceInstance
	analysisResourceInstance.Register(webgis.ResourceRegistrySingleton)
}
