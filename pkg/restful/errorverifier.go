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
	"strings"

	"github.com/nuclio/logger"
)

// ErrorContainsVerifier verifies the message of a decoded error response
type ErrorContainsVerifier struct {
	logger          logger.Logger
	expectedStrings []string
}

func NewErrorContainsVerifier(logger logger.Logger, expectedStrings []string) *ErrorContainsVerifier {
	return &ErrorContainsVerifier{
		logger:          logger,
		expectedStrings: expectedStrings,
	}
}

// Verify returns true if the "error" (or, failing that, "detail") key holds all expected strings
func (ecv *ErrorContainsVerifier) Verify(response map[string]interface{}) bool {
	var responseError string

	for _, key := range []string{"error", "detail"} {
		if value, isString := response[key].(string); isString && value != "" {
			responseError = value
			break
		}
	}

	if responseError == "" {
		ecv.logger.WarnWith("Response does not contain an error message", "response", response)
		return false
	}

	for _, expectedString := range ecv.expectedStrings {
		if !strings.Contains(responseError, expectedString) {
			ecv.logger.WarnWith("Expected string not found",
				"body", responseError,
				"expected", expectedString)
			return false
		}
	}

	return true
}
