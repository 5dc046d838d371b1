/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package stress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-sawtooth/limiter"
)

func makeTestScenario() *Scenario {
	s := NewDefaultScenario()
	s.Requests = 6
	s.SupportedConcurrency = 3
	s.MinWork = time.Millisecond
	s.MaxWork = 3 * time.Millisecond
	s.WorkStep = time.Millisecond
	s.SampleInterval = 5 * time.Millisecond
	s.Limiter.MaxConcurrency = 20
	s.Limiter.BackoffFactor = 0.5
	return s
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestDownstream_Phases(t *testing.T) {
	d := NewDownstream(makeTestScenario())
	d.sleep = noSleep

	var supported []float64
	for i := 0; i < 6; i++ {
		_ = d.Call(context.Background())
		supported = append(supported, d.Supported())
	}
	require.InDeltaSlice(t, []float64{3, 6, 6, 2, 2, 2}, supported, 1e-9)
	require.Equal(t, int64(6), d.Started())
}

func TestDownstream_Backpressure(t *testing.T) {
	s := makeTestScenario()
	s.Phases = nil

	s.SupportedConcurrency = 1
	d := NewDownstream(s)
	d.sleep = noSleep
	require.ErrorIs(t, d.Call(context.Background()), limiter.ErrBackpressure)

	s.SupportedConcurrency = 2
	d = NewDownstream(s)
	d.sleep = noSleep
	require.NoError(t, d.Call(context.Background()))
	require.Equal(t, int64(0), d.Active())
}

func TestDownstream_ConcurrentCalls(t *testing.T) {
	s := makeTestScenario()
	s.Phases = nil
	s.SupportedConcurrency = 2
	d := NewDownstream(s)

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	d.sleep = func(ctx context.Context, _ time.Duration) error {
		entered <- struct{}{}
		<-release
		return nil
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = d.Call(context.Background())
		}(i)
	}
	<-entered
	<-entered
	require.Equal(t, int64(2), d.Active())
	close(release)
	wg.Wait()

	require.Equal(t, int64(2), d.Peak())
	require.Equal(t, int64(0), d.Active())
	backpressured := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, limiter.ErrBackpressure)
			backpressured++
		}
	}
	require.GreaterOrEqual(t, backpressured, 1)
}

func TestDownstream_ContextCanceled(t *testing.T) {
	s := makeTestScenario()
	s.MinWork = time.Hour
	s.MaxWork = time.Hour
	d := NewDownstream(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, d.Call(ctx), context.Canceled)
	require.Equal(t, int64(0), d.Active())
}

func TestDownstream_WorkDuration(t *testing.T) {
	d := NewDownstream(makeTestScenario())
	for i := 0; i < 100; i++ {
		dur := d.workDuration()
		require.GreaterOrEqual(t, dur, time.Millisecond)
		require.LessOrEqual(t, dur, 3*time.Millisecond)
		require.Zero(t, dur%time.Millisecond)
	}
}
