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

	"github.com/webgis/webgis/pkg/restful"
	"github.com/webgis/webgis/pkg/store"
	"github.com/webgis/webgis/pkg/webgis"

	"github.com/go-chi/chi/v5"
	"github.com/nuclio/errors"
)

type layerResource struct {
	*resource
}

func (lr *layerResource) GetCustomRoutes() ([]restful.CustomRoute, error) {
	return []restful.CustomRoute{
		{
			Pattern:   "/",
			Method:    http.MethodGet,
			RouteFunc: lr.getLayers,
		},
		{
			Pattern:   "/{id}/geojson",
			Method:    http.MethodGet,
			RouteFunc: lr.getGeoJSON,
		},
		{
			Pattern:   "/{id}/attributes",
			Method:    http.MethodGet,
			RouteFunc: lr.getAttributes,
		},
	}, nil
}

// Delete drops the layer
func (lr *layerResource) Delete(request *http.Request, id string) error {
	err := lr.getStore().DeleteLayer(request.Context(), id)
	lr.getServer().RecordOperation("delete", err)

	if err != nil {
		return errors.Wrapf(err, "Failed to delete layer %s", id)
	}

	return nil
}

func (lr *layerResource) getLayers(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	layers, err := lr.getStore().ListLayers(request.Context())
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list layers")
	}

	response := &restful.CustomRouteFuncResponse{
		List: make([]restful.Attributes, 0, len(layers)),
	}

	for _, layer := range layers {
		response.List = append(response.List, restful.Attributes{
			"name":      layer.Name,
			"geom_type": layer.GeometryType,
			"srid":      layer.SRID,
		})
	}

	return response, nil
}

func (lr *layerResource) getGeoJSON(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	layerName := chi.URLParam(request, "id")

	encodedFeatureCollection, err := lr.getStore().GetLayerGeoJSON(request.Context(), layerName)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to get features of %s", layerName)
	}

	return &restful.CustomRouteFuncResponse{
		Raw:         encodedFeatureCollection,
		ContentType: "application/geo+json",
	}, nil
}

func (lr *layerResource) getAttributes(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	layerName := chi.URLParam(request, "id")

	attributeTable, err := lr.getStore().GetLayerAttributes(request.Context(), layerName, store.DefaultAttributesLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to get attributes of %s", layerName)
	}

	return &restful.CustomRouteFuncResponse{
		Resources: map[string]restful.Attributes{
			layerName: {
				"headers": attributeTable.Headers,
				"data":    attributeTable.Data,
			},
		},
		Single: true,
	}, nil
}

// register the resource
var layerResourceInstance = &layerResource{
	resource: newResource("api/layers", []restful.ResourceMethod{
		restful.ResourceMethodDelete,
	}),
}

func init() {
	layerResourceInstance.Resource = layerResourceInstance
	layerResourceInstance.Register(webgis.ResourceRegistrySingleton)
}
