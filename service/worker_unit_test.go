/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestWorkerUnit(t *testing.T) {
	t.Run("graceful stop waits for worker", func(t *testing.T) {
		var finished atomic.Bool
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(time.Millisecond * 50)
			finished.Store(true)
			return nil
		}))
		fatalErr := make(chan error, 1)
		go unit.Start(fatalErr)

		require.NoError(t, unit.Stop(true))
		require.True(t, finished.Load())
		require.Empty(t, fatalErr)
	})

	t.Run("graceful stop timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		unit := NewWorkerUnitWithOpts(WorkerFunc(func(ctx context.Context) error {
			<-release
			return nil
		}), WorkerUnitOpts{GracefulStopTimeout: time.Millisecond * 50})
		go unit.Start(make(chan error, 1))

		require.ErrorIs(t, unit.Stop(true), ErrWorkerUnitStopTimeoutExceeded)
	})

	t.Run("worker error is reported", func(t *testing.T) {
		errRun := errors.New("run failed")
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error { return errRun }))
		fatalErr := make(chan error, 1)
		unit.Start(fatalErr)
		require.ErrorIs(t, <-fatalErr, errRun)
		require.NoError(t, unit.Stop(true))
	})

	t.Run("metrics registerer", func(t *testing.T) {
		mr := newMockUnit("metrics")
		unit := NewWorkerUnitWithOpts(WorkerFunc(nil), WorkerUnitOpts{MetricsRegisterer: mr})
		unit.MustRegisterMetrics()
		unit.UnregisterMetrics()
		require.Equal(t, int32(1), mr.registered.Load())
		require.Equal(t, int32(1), mr.unregistered.Load())
	})
}
