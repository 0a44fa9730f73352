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

package common

import (
	"github.com/nuclio/errors"
	"github.com/nuclio/nuclio-sdk-go"
)

// ResolveErrorStatusCodeOrDefault returns the status code carried by err (or by its root cause).
// if neither carries one, defaultStatusCode is returned
func ResolveErrorStatusCodeOrDefault(err error, defaultStatusCode int) int {
	if err == nil {
		return defaultStatusCode
	}

	// resolve from top level
	if errWithStatus, ok := err.(nuclio.WithStatusCode); ok {
		return errWithStatus.StatusCode()
	}

	// resolve from root cause
	if rootCauseWithStatus, ok := errors.RootCause(err).(nuclio.WithStatusCode); ok {
		return rootCauseWithStatus.StatusCode()
	}

	// unable to resolve, returning default
	return defaultStatusCode
}

// ResolveErrorMessage returns the most descriptive message of err. errors wrapping a status-coded
// error are reported with their own message followed by the root cause
func ResolveErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	rootCause := errors.RootCause(err)
	if rootCause == nil || rootCause == err {
		return err.Error()
	}

	if err.Error() == rootCause.Error() {
		return err.Error()
	}

	return err.Error() + ": " + rootCause.Error()
}
