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

package errgroup

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"golang.org/x/sync/errgroup"
)

const DefaultErrgroupConcurrency = 5

// Group is an errgroup whose goroutines are named, bounded and recover from panics
type Group struct {
	*errgroup.Group
	logger logger.Logger
}

// WithContext returns a group limited to concurrency goroutines. non-positive values fall back
// to DefaultErrgroupConcurrency
func WithContext(ctx context.Context, loggerInstance logger.Logger, concurrency int) (*Group, context.Context) {
	baseErrgroup, errgroupCtx := errgroup.WithContext(ctx)

	if concurrency <= 0 {
		concurrency = DefaultErrgroupConcurrency
	}

	baseErrgroup.SetLimit(concurrency)

	return &Group{
		Group:  baseErrgroup,
		logger: loggerInstance,
	}, errgroupCtx
}

// Go runs f in a goroutine. a panic in f is logged and returned as the goroutine's error
func (g *Group) Go(actionName string, f func() error) {
	g.Group.Go(func() (err error) {
		defer func() {
			if recoveredErr := recover(); recoveredErr != nil {
				g.logger.ErrorWith("Recovered from panic",
					"actionName", actionName,
					"err", recoveredErr,
					"stack", string(debug.Stack()))

				err = errors.New(fmt.Sprintf("Panic in %s: %v", actionName, recoveredErr))
			}
		}()

		return f()
	})
}
