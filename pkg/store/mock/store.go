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

package mock

import (
	"context"

	"github.com/webgis/webgis/pkg/gis"
	"github.com/webgis/webgis/pkg/store"

	"github.com/stretchr/testify/mock"
)

//
// Store mock
//

type Store struct {
	mock.Mock
}

func (ms *Store) Ping(ctx context.Context) error {
	args := ms.Called(ctx)
	return args.Error(0)
}

func (ms *Store) PostGISVersion(ctx context.Context) (string, error) {
	args := ms.Called(ctx)
	return args.String(0), args.Error(1)
}

func (ms *Store) ListLayers(ctx context.Context) ([]store.LayerInfo, error) {
	args := ms.Called(ctx)
	return args.Get(0).([]store.LayerInfo), args.Error(1)
}

func (ms *Store) GetLayerGeoJSON(ctx context.Context, name string) ([]byte, error) {
	args := ms.Called(ctx, name)
	return args.Get(0).([]byte), args.Error(1)
}

func (ms *Store) GetLayerAttributes(ctx context.Context, name string, limit int) (*store.AttributeTable, error) {
	args := ms.Called(ctx, name, limit)
	return args.Get(0).(*store.AttributeTable), args.Error(1)
}

func (ms *Store) WriteLayer(ctx context.Context, layer *gis.Layer) (int, error) {
	args := ms.Called(ctx, layer)
	return args.Int(0), args.Error(1)
}

func (ms *Store) ReadLayer(ctx context.Context, name string) (*gis.Layer, error) {
	args := ms.Called(ctx, name)
	return args.Get(0).(*gis.Layer), args.Error(1)
}

func (ms *Store) CreateBuffer(ctx context.Context, name string, distanceMeters float64) (string, error) {
	args := ms.Called(ctx, name, distanceMeters)
	return args.String(0), args.Error(1)
}

func (ms *Store) DeleteLayer(ctx context.Context, name string) error {
	args := ms.Called(ctx, name)
	return args.Error(0)
}

func (ms *Store) Close() error {
	args := ms.Called()
	return args.Error(0)
}
