/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package stress

import (
	"context"
	"sync"
	"time"

	"github.com/acronis/go-sawtooth/limiter"
	"github.com/acronis/go-sawtooth/service"
)

// Sample is a point-in-time observation of the limiter and the downstream.
type Sample struct {
	Time        time.Time
	Concurrency float64
	Peak        int64
	Max         int
	Avg         float64
	Min         int
	Supported   float64
	Threshold   float64
}

// LimiterObserver provides read-only access to the limiter state.
type LimiterObserver interface {
	Stats() limiter.Stats
	Config() limiter.Config
}

// Sampler takes a Sample on every Run. It never modifies the limiter.
// It's supposed to be run by service.PeriodicWorker.
type Sampler struct {
	limiter    LimiterObserver
	downstream *Downstream
	now        func() time.Time

	mu             sync.Mutex
	samples        []Sample
	concurrencySum float64
}

var _ service.Worker = (*Sampler)(nil)

// NewSampler creates a new Sampler.
func NewSampler(lim LimiterObserver, downstream *Downstream) *Sampler {
	return &Sampler{limiter: lim, downstream: downstream, now: time.Now}
}

// Run takes one sample.
func (s *Sampler) Run(_ context.Context) error {
	stats := s.limiter.Stats()
	cfg := s.limiter.Config()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.concurrencySum += stats.Concurrency
	s.samples = append(s.samples, Sample{
		Time:        s.now(),
		Concurrency: stats.Concurrency,
		Peak:        s.downstream.Peak(),
		Max:         cfg.MaxConcurrency,
		Avg:         s.concurrencySum / float64(len(s.samples)+1),
		Min:         cfg.MinConcurrency,
		Supported:   s.downstream.Supported(),
		Threshold:   stats.Threshold,
	})
	return nil
}

// Samples returns a copy of samples taken so far.
func (s *Sampler) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.samples...)
}

// AvgConcurrency returns the average of sampled concurrency limits.
func (s *Sampler) AvgConcurrency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return 0
	}
	return s.concurrencySum / float64(len(s.samples))
}
