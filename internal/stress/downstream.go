/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package stress

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/atomic"

	"github.com/acronis/go-sawtooth/limiter"
)

type phaseTrigger struct {
	call   int64
	factor float64
}

// Downstream simulates a service that handles a limited number of concurrent calls.
// A call that finishes while the service is at (or above) its supported concurrency reports backpressure.
type Downstream struct {
	supported *atomic.Float64
	active    *atomic.Int64
	peak      *atomic.Int64
	started   *atomic.Int64
	triggers  []phaseTrigger

	minWork  time.Duration
	workStep time.Duration
	steps    int
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewDownstream creates a new Downstream for the scenario.
func NewDownstream(s *Scenario) *Downstream {
	triggers := make([]phaseTrigger, 0, len(s.Phases))
	for _, p := range s.Phases {
		call := int64(math.Floor(float64(s.Requests)*p.At + 1e-9))
		if call < 1 {
			call = 1
		}
		triggers = append(triggers, phaseTrigger{call: call, factor: p.Factor})
	}
	sort.SliceStable(triggers, func(i, j int) bool { return triggers[i].call < triggers[j].call })

	steps := 0
	if s.WorkStep > 0 {
		steps = int((s.MaxWork - s.MinWork) / s.WorkStep)
	}
	return &Downstream{
		supported: atomic.NewFloat64(s.SupportedConcurrency),
		active:    atomic.NewInt64(0),
		peak:      atomic.NewInt64(0),
		started:   atomic.NewInt64(0),
		triggers:  triggers,
		minWork:   s.MinWork,
		workStep:  s.WorkStep,
		steps:     steps,
		sleep:     sleepContext,
	}
}

// Call performs one simulated operation. It returns limiter.ErrBackpressure if the downstream was overloaded
// when the operation finished, or the context error if the context is done during the work.
func (d *Downstream) Call(ctx context.Context) error {
	d.applyPhases(d.started.Inc())

	d.updatePeak(d.active.Inc())
	err := d.sleep(ctx, d.workDuration())
	active := d.active.Dec()
	if err != nil {
		return err
	}
	if float64(active+1) >= d.supported.Load() {
		return limiter.ErrBackpressure
	}
	return nil
}

// Supported returns the concurrency currently supported by the downstream.
func (d *Downstream) Supported() float64 {
	return d.supported.Load()
}

// Active returns the number of calls in progress.
func (d *Downstream) Active() int64 {
	return d.active.Load()
}

// Peak returns the maximum number of calls that were in progress simultaneously.
func (d *Downstream) Peak() int64 {
	return d.peak.Load()
}

// Started returns the number of calls started so far.
func (d *Downstream) Started() int64 {
	return d.started.Load()
}

func (d *Downstream) applyPhases(call int64) {
	for _, t := range d.triggers {
		if t.call != call {
			continue
		}
		for {
			old := d.supported.Load()
			if d.supported.CompareAndSwap(old, old*t.factor) {
				break
			}
		}
	}
}

func (d *Downstream) updatePeak(active int64) {
	for {
		peak := d.peak.Load()
		if active <= peak || d.peak.CompareAndSwap(peak, active) {
			return
		}
	}
}

func (d *Downstream) workDuration() time.Duration {
	if d.steps <= 0 {
		return d.minWork
	}
	return d.minWork + time.Duration(rand.Intn(d.steps+1))*d.workStep //nolint:gosec // simulation only
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
