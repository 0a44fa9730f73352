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

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/webgis/webgis/pkg/common"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// bodies larger than this are never logged
const maxLoggedBodySize = 16 * 1024

// RequestResponseLogger logs handled requests. bodies are only logged when they're small and
// textual; responses of paths starting with one of quietPathPrefixes are never logged
func RequestResponseLogger(logger logger.Logger, quietPathPrefixes []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, request *http.Request) {
			var requestBody []byte
			responseBodyBuffer := bytes.Buffer{}

			// create a response wrapper so we can access stuff
			responseWrapper := middleware.NewWrapResponseWriter(w, request.ProtoMajor)

			logResponseBody := !common.StringSliceContainsStringPrefix(quietPathPrefixes,
				strings.TrimSuffix(request.URL.Path, "/"))

			if logResponseBody {
				responseWrapper.Tee(&limitedWriter{writer: &responseBodyBuffer, remaining: maxLoggedBodySize})
			}

			// take start time
			requestStartTime := time.Now()

			// get request body, restoring it for further processing
			if isLoggableBody(request.Header.Get("Content-Type"), request.ContentLength) {
				requestBody, _ = io.ReadAll(request.Body)
				request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			}

			// when request processing is done, log the request / response
			defer func() {
				logVars := []interface{}{
					"requestID", middleware.GetReqID(request.Context()),
					"requestMethod", request.Method,
					"requestPath", request.URL,
					"requestBody", string(requestBody),
					"responseStatus", responseWrapper.Status(),
					"responseBytes", responseWrapper.BytesWritten(),
					"responseTime", time.Since(requestStartTime),
				}

				if logResponseBody {
					logVars = append(logVars, "responseBody", responseBodyBuffer.String())
				}

				logger.DebugWith("Handled request", logVars...)
			}()

			// call next middleware
			next.ServeHTTP(responseWrapper, request)
		}

		return http.HandlerFunc(fn)
	}
}

// RequestMetrics counts and times requests per route pattern
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewRequestMetrics(registerer prometheus.Registerer) *RequestMetrics {
	requestMetrics := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webgis",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of handled HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webgis",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of handled HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registerer.MustRegister(requestMetrics.requestsTotal, requestMetrics.requestDuration)

	return requestMetrics
}

func (rm *RequestMetrics) Handler(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, request *http.Request) {
		responseWrapper := middleware.NewWrapResponseWriter(w, request.ProtoMajor)
		requestStartTime := time.Now()

		next.ServeHTTP(responseWrapper, request)

		route := "unmatched"
		if routeContext := chi.RouteContext(request.Context()); routeContext != nil {
			if routePattern := routeContext.RoutePattern(); routePattern != "" {
				route = routePattern
			}
		}

		status := responseWrapper.Status()
		if status == 0 {
			status = http.StatusOK
		}

		rm.requestsTotal.WithLabelValues(request.Method, route, strconv.Itoa(status)).Inc()
		rm.requestDuration.WithLabelValues(request.Method, route).Observe(time.Since(requestStartTime).Seconds())
	}

	return http.HandlerFunc(fn)
}

func isLoggableBody(contentType string, contentLength int64) bool {
	if contentLength <= 0 || contentLength > maxLoggedBodySize {
		return false
	}

	return strings.HasPrefix(contentType, "application/json") ||
		strings.HasPrefix(contentType, "application/x-www-form-urlencoded")
}

// limitedWriter swallows everything past its limit
type limitedWriter struct {
	writer    io.Writer
	remaining int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.remaining > 0 {
		chunk := p
		if len(chunk) > lw.remaining {
			chunk = chunk[:lw.remaining]
		}

		lw.remaining -= len(chunk)
		lw.writer.Write(chunk) // nolint: errcheck
	}

	return len(p), nil
}
