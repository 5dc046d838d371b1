/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompositeUnit_StartStop(t *testing.T) {
	units := []*mockUnit{newMockUnit("runner"), newMockUnit("sampler"), newMockUnit("diag")}
	cu := NewCompositeUnit(units[0], units[1], units[2])

	fatalErr := make(chan error, 1)
	startReturned := make(chan struct{})
	go func() {
		cu.Start(fatalErr)
		close(startReturned)
	}()
	require.Eventually(t, func() bool {
		return units[0].running.Load() && units[1].running.Load() && units[2].running.Load()
	}, time.Second*3, time.Millisecond*10)

	require.NoError(t, cu.Stop(true))
	<-startReturned
	require.Empty(t, fatalErr)
	for _, u := range units {
		require.Equal(t, int32(1), u.graceful.Load())
	}
}

func TestCompositeUnit_StartFailure(t *testing.T) {
	errBind := errors.New("listen tcp :8081: address already in use")
	failing := newMockUnit("diag")
	failing.startErr = errBind
	running := newMockUnit("sampler")
	running.stopErr = true
	cu := NewCompositeUnit(running, failing)

	fatalErr := make(chan error, 1)
	cu.Start(fatalErr)

	err := <-fatalErr
	require.ErrorIs(t, err, errBind)
	var cuErr *CompositeUnitError
	require.ErrorAs(t, err, &cuErr)
	require.Len(t, cuErr.UnitErrors, 2)
	require.EqualError(t, err, "listen tcp :8081: address already in use; sampler: stop failed")
	require.Equal(t, int32(1), running.stops.Load())
	require.Equal(t, int32(0), running.graceful.Load())
}

func TestCompositeUnit_Metrics(t *testing.T) {
	withMetrics := newMockUnit("runner")
	cu := NewCompositeUnit(withMetrics, NewWorkerUnit(WorkerFunc(nil)))
	cu.MustRegisterMetrics()
	cu.UnregisterMetrics()
	require.Equal(t, int32(1), withMetrics.registered.Load())
	require.Equal(t, int32(1), withMetrics.unregistered.Load())
}
