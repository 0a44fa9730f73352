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
	"github.com/webgis/webgis/pkg/webgis"

	"github.com/nuclio/errors"
)

type testDBResource struct {
	*resource
}

func (tr *testDBResource) GetCustomRoutes() ([]restful.CustomRoute, error) {
	return []restful.CustomRoute{
		{
			Pattern:   "/",
			Method:    http.MethodGet,
			RouteFunc: tr.testConnection,
		},
	}, nil
}

// testConnection reports whether the database is reachable and has PostGIS installed
func (tr *testDBResource) testConnection(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	postGISVersion, err := tr.getStore().PostGISVersion(request.Context())
	if err != nil {
		return nil, errors.Wrap(err, "Failed to connect to database")
	}

	return &restful.CustomRouteFuncResponse{
		Resources: map[string]restful.Attributes{
			"database": {
				"status":          "success",
				"message":         "Database and PostGIS are connected!",
				"postgis_version": postGISVersion,
			},
		},
		Single: true,
	}, nil
}

// register the resource
var testDBResourceInstance = &testDBResource{
	resource: newResource("api/test-db", []restful.ResourceMethod{}),
}

func init() {
	testDBResourceInstance.Resource = testDBResourceInstance
	testDBResourceInstance.Register(webgis.ResourceRegistrySingleton)
}
