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

import "net/http"

type Encoder interface {

	// EncodeResource encodes a single resource
	EncodeResource(statusCode int, attributes Attributes)

	// EncodeResources encodes multiple resources, keyed by ID
	EncodeResources(statusCode int, resources map[string]Attributes)

	// EncodeList encodes an ordered list of resources
	EncodeList(statusCode int, resources []Attributes)

	// EncodeRaw writes a pre-encoded body
	EncodeRaw(statusCode int, contentType string, body []byte)

	// EncodeError encodes an error message
	EncodeError(statusCode int, message string)
}

type EncoderFactory interface {

	// NewEncoder creates an encoder
	NewEncoder(http.ResponseWriter, string) Encoder
}
