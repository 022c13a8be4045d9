/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/doublegate/prortip/pkg/aggregator"
	"github.com/doublegate/prortip/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWorkerPersistsBatchThroughMockSink(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSink := NewMockSink(ctrl)

	queue := aggregator.New(10)
	require.NoError(t, queue.Push(models.Result{TargetIP: "192.0.2.1", Port: 80}))
	require.NoError(t, queue.Push(models.Result{TargetIP: "192.0.2.1", Port: 443}))

	var captured []models.Result

	mockSink.EXPECT().
		SaveResults(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, results []models.Result) error {
			captured = results
			return nil
		})

	w := NewWorker(queue, mockSink)
	w.FlushInterval = time.Hour

	queue.Shutdown()
	w.Run(context.Background())

	assert.Len(t, captured, 2)
	assert.Equal(t, uint16(80), captured[0].Port)
}

func TestWorkerLogsSinkErrorWithoutPanicking(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSink := NewMockSink(ctrl)

	queue := aggregator.New(10)
	require.NoError(t, queue.Push(models.Result{TargetIP: "192.0.2.9", Port: 22}))

	mockSink.EXPECT().
		SaveResults(gomock.Any(), gomock.Any()).
		Return(errors.New("disk full"))

	w := NewWorker(queue, mockSink)
	w.FlushInterval = time.Hour

	queue.Shutdown()

	assert.NotPanics(t, func() { w.Run(context.Background()) })
}
