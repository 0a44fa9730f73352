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
	"sync"
	"testing"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type ErrGroupTestSuite struct {
	suite.Suite
	logger logger.Logger
	ctx    context.Context
	lock   sync.Mutex
}

func (suite *ErrGroupTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.ctx = context.Background()
	suite.lock = sync.Mutex{}
}

func (suite *ErrGroupTestSuite) TestSemaphoredErrGroup() {

	for _, testCase := range []struct {
		name          string
		concurrency   int
		goroutinesNum int
	}{
		{
			name:          "DefaultConcurrency",
			concurrency:   DefaultErrgroupConcurrency,
			goroutinesNum: 10,
		},
		{
			name:          "ZeroConcurrency",
			concurrency:   0,
			goroutinesNum: 10,
		},
		{
			name:          "NegativeConcurrency",
			concurrency:   -45,
			goroutinesNum: 10,
		},
		{
			name:          "ManyGoroutines",
			concurrency:   7,
			goroutinesNum: 30,
		},
	} {
		suite.Run(testCase.name, func() {
			var concurrentCallCount, totalCallCount, maxConcurrentCallCount int
			errGroup, _ := WithContext(suite.ctx, suite.logger, testCase.concurrency)

			for i := 0; i < testCase.goroutinesNum; i++ {
				errGroup.Go(testCase.name, func() error {
					suite.lock.Lock()
					concurrentCallCount++
					totalCallCount++
					if concurrentCallCount > maxConcurrentCallCount {
						maxConcurrentCallCount = concurrentCallCount
					}
					suite.lock.Unlock()

					suite.lock.Lock()
					concurrentCallCount--
					suite.lock.Unlock()
					return nil
				})
			}

			suite.Require().NoError(errGroup.Wait())

			expectedLimit := testCase.concurrency
			if expectedLimit <= 0 {
				expectedLimit = DefaultErrgroupConcurrency
			}

			suite.Require().LessOrEqual(maxConcurrentCallCount, expectedLimit)
			suite.Require().Equal(0, concurrentCallCount)
			suite.Require().Equal(testCase.goroutinesNum, totalCallCount)
		})
	}
}

func (suite *ErrGroupTestSuite) TestFirstErrorReturned() {
	errGroup, errGroupCtx := WithContext(suite.ctx, suite.logger, 2)

	errGroup.Go("failing", func() error {
		return errors.New("Failed to listen")
	})

	errGroup.Go("waiting", func() error {
		<-errGroupCtx.Done()
		return nil
	})

	err := errGroup.Wait()
	suite.Require().Error(err)
	suite.Require().Equal("Failed to listen", err.Error())
}

func (suite *ErrGroupTestSuite) TestPanicRecovered() {
	errGroup, _ := WithContext(suite.ctx, suite.logger, 1)

	errGroup.Go("panicking", func() error {
		panic("oops")
	})

	err := errGroup.Wait()
	suite.Require().Error(err)
	suite.Require().Contains(err.Error(), "panicking")
}

func TestErrGroupTestSuite(t *testing.T) {
	suite.Run(t, new(ErrGroupTestSuite))
}
