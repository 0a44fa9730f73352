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
	"encoding/json"
	"net/http"
)

//
// Encoder
//

type jsonEncoder struct {
	responseWriter http.ResponseWriter
	resourceType   string
}

func (je *jsonEncoder) EncodeResource(statusCode int, attributes Attributes) {
	if attributes == nil {
		attributes = Attributes{}
	}

	je.encode(statusCode, attributes)
}

func (je *jsonEncoder) EncodeResources(statusCode int, resources map[string]Attributes) {
	if resources == nil {
		resources = map[string]Attributes{}
	}

	je.encode(statusCode, resources)
}

func (je *jsonEncoder) EncodeList(statusCode int, resources []Attributes) {
	if resources == nil {
		resources = []Attributes{}
	}

	je.encode(statusCode, resources)
}

func (je *jsonEncoder) EncodeRaw(statusCode int, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/json"
	}

	je.responseWriter.Header().Set("Content-Type", contentType)
	je.responseWriter.WriteHeader(statusCode)
	je.responseWriter.Write(body) // nolint: errcheck
}

// EncodeError writes {"error": message, "detail": message}. "detail" is what browser clients read
func (je *jsonEncoder) EncodeError(statusCode int, message string) {
	je.encode(statusCode, map[string]string{
		"error":  message,
		"detail": message,
	})
}

func (je *jsonEncoder) encode(statusCode int, value interface{}) {
	je.responseWriter.Header().Set("Content-Type", "application/json")
	je.responseWriter.WriteHeader(statusCode)
	json.NewEncoder(je.responseWriter).Encode(value) // nolint: errcheck
}

//
// Factory
//

type JSONEncoderFactory struct{}

func (jef *JSONEncoderFactory) NewEncoder(responseWriter http.ResponseWriter, resourceType string) Encoder {
	return &jsonEncoder{
		responseWriter: responseWriter,
		resourceType:   resourceType,
	}
}
