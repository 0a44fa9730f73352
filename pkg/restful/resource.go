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

package restful

import (
	"net/http"

	"github.com/webgis/webgis/pkg/common"
	"github.com/webgis/webgis/pkg/registry"

	"github.com/go-chi/chi/v5"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/nuclio-sdk-go"
)

type Attributes map[string]interface{}

var errNotImplemented = nuclio.NewErrNotImplemented("Not implemented")

// CustomRouteFuncResponse is what a custom route returns. exactly one of Raw, List or Resources is
// encoded, in that order of precedence
type CustomRouteFuncResponse struct {
	ResourceType string
	Resources    map[string]Attributes

	// whether or not the resources should be treated as a single resource (if false, will be returned as map)
	Single bool

	// an ordered list of resources, encoded as a JSON array
	List []Attributes

	// pre-encoded body, written as-is with ContentType
	Raw         []byte
	ContentType string

	StatusCode int
	Headers    map[string]string
}

type CustomRouteFunc func(*http.Request) (*CustomRouteFuncResponse, error)

type CustomRoute struct {
	Pattern   string
	Method    string
	RouteFunc CustomRouteFunc
}

type Resource interface {

	// OnAfterInitialize is called after initialization
	OnAfterInitialize() error

	// GetCustomRoutes returns a list of custom routes for the resource
	GetCustomRoutes() ([]CustomRoute, error)

	// GetAll returns all instances for resources with multiple instances
	GetAll(request *http.Request) (map[string]Attributes, error)

	// GetByID returns specific instance by ID
	GetByID(request *http.Request, id string) (Attributes, error)

	// Create returns resource ID, attributes
	Create(request *http.Request) (string, Attributes, error)

	// Update returns attributes (optionally)
	Update(request *http.Request, id string) (Attributes, error)

	// Delete deletes an entity
	Delete(request *http.Request, id string) error
}

// ResourceInitializer creates the router of a registered resource
type ResourceInitializer interface {
	Initialize(parentLogger logger.Logger, server interface{}) (chi.Router, error)
}

type ResourceMethod int

const (
	ResourceMethodGetList ResourceMethod = iota
	ResourceMethodGetDetail
	ResourceMethodCreate
	ResourceMethodUpdate
	ResourceMethodDelete
)

type AbstractResource struct {
	name            string
	Logger          logger.Logger
	router          chi.Router
	Resource        Resource
	resourceMethods []ResourceMethod
	server          interface{}
	encoderFactory  EncoderFactory
}

func NewAbstractResource(name string, resourceMethods []ResourceMethod) *AbstractResource {
	return &AbstractResource{
		name:            name,
		resourceMethods: resourceMethods,
		encoderFactory:  &JSONEncoderFactory{},
	}
}

func (ar *AbstractResource) Initialize(parentLogger logger.Logger, server interface{}) (chi.Router, error) {
	ar.Logger = parentLogger.GetChild(ar.name)

	ar.server = server
	ar.router = chi.NewRouter()

	// resources must set Resource to themselves before registering
	if ar.Resource == nil {
		return nil, errors.Errorf("Resource %s has no implementation", ar.name)
	}

	// register routes based on supported methods
	if err := ar.registerRoutes(); err != nil {
		return nil, errors.Wrap(err, "Failed to register routes")
	}

	if err := ar.Resource.OnAfterInitialize(); err != nil {
		return nil, errors.Wrap(err, "Failed to run on after initialize")
	}

	return ar.router, nil
}

func (ar *AbstractResource) Register(registry *registry.Registry) {
	registry.Register(ar.name, ar)
}

func (ar *AbstractResource) GetName() string {
	return ar.name
}

func (ar *AbstractResource) GetServer() interface{} {
	return ar.server
}

// GetRouter returns the resource router, for raw routes - those that don't return attributes
func (ar *AbstractResource) GetRouter() chi.Router {
	return ar.router
}

// OnAfterInitialize is called after initialization
func (ar *AbstractResource) OnAfterInitialize() error {
	return nil
}

// GetCustomRoutes returns a list of custom routes for the resource
func (ar *AbstractResource) GetCustomRoutes() ([]CustomRoute, error) {
	return nil, nil
}

// GetAll returns all instances for resources with multiple instances
func (ar *AbstractResource) GetAll(request *http.Request) (map[string]Attributes, error) {
	return nil, errNotImplemented
}

// GetByID returns specific instance by ID
func (ar *AbstractResource) GetByID(request *http.Request, id string) (Attributes, error) {
	return nil, errNotImplemented
}

// Create creates a resource
func (ar *AbstractResource) Create(request *http.Request) (string, Attributes, error) {
	return "", nil, errNotImplemented
}

// Update updates a resource
func (ar *AbstractResource) Update(request *http.Request, id string) (Attributes, error) {
	return nil, errNotImplemented
}

// Delete deletes a resource
func (ar *AbstractResource) Delete(request *http.Request, id string) error {
	return errNotImplemented
}

// WriteErrorResponse encodes err with the status code it carries (500 if none)
func (ar *AbstractResource) WriteErrorResponse(responseWriter http.ResponseWriter, err error) {
	statusCode := common.ResolveErrorStatusCodeOrDefault(err, http.StatusInternalServerError)

	if statusCode >= http.StatusInternalServerError {
		ar.Logger.WarnWith("Failed to handle request", "err", errors.GetErrorStackString(err, 10))
	}

	ar.encoderFactory.NewEncoder(responseWriter, ar.name).EncodeError(statusCode, resolveErrorMessage(err))
}

func (ar *AbstractResource) registerRoutes() error {
	for _, resourceMethod := range ar.resourceMethods {
		switch resourceMethod {
		case ResourceMethodGetList:
			ar.router.Get("/", ar.handleGetList)
		case ResourceMethodGetDetail:
			ar.router.Get("/{id}", ar.handleGetDetails)
		case ResourceMethodCreate:
			ar.router.Post("/", ar.handleCreate)
		case ResourceMethodUpdate:
			ar.router.Put("/{id}", ar.handleUpdate)
		case ResourceMethodDelete:
			ar.router.Delete("/{id}", ar.handleDelete)
		}
	}

	return ar.registerCustomRoutes()
}

func (ar *AbstractResource) registerCustomRoutes() error {
	customRoutes, err := ar.Resource.GetCustomRoutes()
	if err != nil {
		return errors.Wrap(err, "Failed to get custom routes")
	}

	// iterate through the custom routes and register a handler for them
	for _, customRoute := range customRoutes {
		var routerFunc func(string, http.HandlerFunc)

		switch customRoute.Method {
		case http.MethodGet:
			routerFunc = ar.router.Get
		case http.MethodPost:
			routerFunc = ar.router.Post
		case http.MethodPut:
			routerFunc = ar.router.Put
		case http.MethodDelete:
			routerFunc = ar.router.Delete
		default:
			return errors.Errorf("Unsupported custom route method: %s", customRoute.Method)
		}

		customRouteCopy := customRoute

		routerFunc(customRoute.Pattern, func(responseWriter http.ResponseWriter, request *http.Request) {
			ar.callCustomRouteFunc(responseWriter, request, customRouteCopy.RouteFunc)
		})
	}

	return nil
}

func (ar *AbstractResource) handleGetList(responseWriter http.ResponseWriter, request *http.Request) {
	resources, err := ar.Resource.GetAll(request)
	if err != nil {
		ar.WriteErrorResponse(responseWriter, err)
		return
	}

	ar.encoderFactory.NewEncoder(responseWriter, ar.name).EncodeResources(http.StatusOK, resources)
}

func (ar *AbstractResource) handleGetDetails(responseWriter http.ResponseWriter, request *http.Request) {

	// registered as "/{id}"
	resourceID := chi.URLParam(request, "id")

	// delegate to child
	attributes, err := ar.Resource.GetByID(request, resourceID)
	if err != nil {
		ar.WriteErrorResponse(responseWriter, err)
		return
	}

	// if not found return 404
	if attributes == nil {
		ar.WriteErrorResponse(responseWriter, nuclio.NewErrNotFound("Resource not found"))
		return
	}

	ar.encoderFactory.NewEncoder(responseWriter, ar.name).EncodeResource(http.StatusOK, attributes)
}

func (ar *AbstractResource) handleCreate(responseWriter http.ResponseWriter, request *http.Request) {

	// delegate to child
	_, attributes, err := ar.Resource.Create(request)
	if err != nil {
		ar.WriteErrorResponse(responseWriter, err)
		return
	}

	// if no attributes given, return nothing
	if attributes == nil {
		responseWriter.WriteHeader(http.StatusCreated)
		return
	}

	ar.encoderFactory.NewEncoder(responseWriter, ar.name).EncodeResource(http.StatusCreated, attributes)
}

func (ar *AbstractResource) handleUpdate(responseWriter http.ResponseWriter, request *http.Request) {

	// registered as "/{id}"
	resourceID := chi.URLParam(request, "id")

	// delegate to child
	attributes, err := ar.Resource.Update(request, resourceID)
	if err != nil {
		ar.WriteErrorResponse(responseWriter, err)
		return
	}

	// if no attributes given, return nothing
	if attributes == nil {
		responseWriter.WriteHeader(http.StatusNoContent)
		return
	}

	ar.encoderFactory.NewEncoder(responseWriter, ar.name).EncodeResource(http.StatusOK, attributes)
}

func (ar *AbstractResource) handleDelete(responseWriter http.ResponseWriter, request *http.Request) {

	// registered as "/{id}"
	resourceID := chi.URLParam(request, "id")

	// delegate to child
	if err := ar.Resource.Delete(request, resourceID); err != nil {
		ar.WriteErrorResponse(responseWriter, err)
		return
	}

	responseWriter.WriteHeader(http.StatusNoContent)
}

func (ar *AbstractResource) callCustomRouteFunc(responseWriter http.ResponseWriter,
	request *http.Request,
	routeFunc CustomRouteFunc) {

	response, err := routeFunc(request)
	if err != nil {
		ar.WriteErrorResponse(responseWriter, err)
		return
	}

	if response == nil {
		response = &CustomRouteFuncResponse{}
	}

	statusCode := response.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	for headerKey, headerValue := range response.Headers {
		responseWriter.Header().Set(headerKey, headerValue)
	}

	resourceType := response.ResourceType
	if resourceType == "" {
		resourceType = ar.name
	}

	encoder := ar.encoderFactory.NewEncoder(responseWriter, resourceType)

	switch {
	case response.Raw != nil:
		encoder.EncodeRaw(statusCode, response.ContentType, response.Raw)

	case response.List != nil:
		encoder.EncodeList(statusCode, response.List)

	case response.Resources == nil:

		// write a valid, empty JSON
		encoder.EncodeResource(statusCode, Attributes{})

	case response.Single:

		// to get the first, we must iterate over range
		for _, resourceAttributes := range response.Resources {
			encoder.EncodeResource(statusCode, resourceAttributes)
			break
		}

	default:
		encoder.EncodeResources(statusCode, response.Resources)
	}
}

// resolveErrorMessage prefers the message of the status-coded error, which is phrased for the client
func resolveErrorMessage(err error) string {
	if _, ok := err.(nuclio.WithStatusCode); ok {
		return err.Error()
	}

	if rootCause, ok := errors.RootCause(err).(nuclio.WithStatusCode); ok {
		if rootCauseError, isError := rootCause.(error); isError {
			return rootCauseError.Error()
		}
	}

	return common.ResolveErrorMessage(err)
}
