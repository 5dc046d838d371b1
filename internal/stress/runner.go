/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package stress runs a stress scenario: many operations are admitted through an adaptive limiter
// into a simulated downstream whose supported concurrency changes over time, while the limiter state
// is sampled for later analysis.
package stress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/acronis/go-sawtooth/limiter"
	"github.com/acronis/go-sawtooth/log"
	"github.com/acronis/go-sawtooth/service"
)

// LimiterName is the name of the limiter used in logs and metrics.
const LimiterName = "stress"

// DefaultProgressEvery is a default number of completed operations between progress log messages.
const DefaultProgressEvery = 1000

// Summary describes the result of a stress run.
type Summary struct {
	Requests         int
	Completed        int64
	Backpressured    int64
	Failed           int64
	Interrupted      bool
	PeakConcurrency  int64
	FinalConcurrency float64
	FinalThreshold   float64
	AvgConcurrency   float64
	Supported        float64
	Samples          int
	Duration         time.Duration
}

// RunnerOpts represents options for the Runner.
type RunnerOpts struct {
	Logger           log.FieldLogger
	MetricsCollector *limiter.MetricsCollector

	// ProgressEvery is a number of completed operations between progress log messages.
	// If zero, DefaultProgressEvery is used.
	ProgressEvery int
}

// Runner executes the scenario. It implements service.Worker.
type Runner struct {
	scenario      *Scenario
	limiter       *limiter.Limiter[*Downstream]
	downstream    *Downstream
	sampler       *Sampler
	logger        log.FieldLogger
	metrics       *limiter.MetricsCollector
	progressEvery int64

	completed     *atomic.Int64
	backpressured *atomic.Int64
	failed        *atomic.Int64
	summary       atomic.Value
}

var _ service.Worker = (*Runner)(nil)
var _ service.MetricsRegisterer = (*Runner)(nil)

// NewRunner creates a new Runner for the scenario.
func NewRunner(s *Scenario, opts RunnerOpts) (*Runner, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate scenario: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	progressEvery := opts.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}

	downstream := NewDownstream(s)
	lim, err := limiter.NewWithOpts(downstream, s.Limiter, limiter.Opts{
		Name:             LimiterName,
		Logger:           logger,
		MetricsCollector: opts.MetricsCollector,
	})
	if err != nil {
		return nil, fmt.Errorf("create limiter: %w", err)
	}

	return &Runner{
		scenario:      s,
		limiter:       lim,
		downstream:    downstream,
		sampler:       NewSampler(lim, downstream),
		logger:        logger,
		metrics:       opts.MetricsCollector,
		progressEvery: int64(progressEvery),
		completed:     atomic.NewInt64(0),
		backpressured: atomic.NewInt64(0),
		failed:        atomic.NewInt64(0),
	}, nil
}

// Limiter returns the limiter that guards the downstream.
func (r *Runner) Limiter() *limiter.Limiter[*Downstream] {
	return r.limiter
}

// Sampler returns the sampler of the limiter state.
func (r *Runner) Sampler() *Sampler {
	return r.sampler
}

// NewSamplerWorker returns a worker that samples the limiter state with the scenario interval.
func (r *Runner) NewSamplerWorker() *service.PeriodicWorker {
	return service.NewPeriodicWorker(r.sampler, r.scenario.SampleInterval, r.logger.With(log.String("worker", "sampler")))
}

// Run starts all operations of the scenario and waits for them.
// If the context is canceled, the run is interrupted and nil is returned.
func (r *Runner) Run(ctx context.Context) error {
	startedAt := time.Now()
	r.logger.Info("stress run started",
		log.Int("requests", r.scenario.Requests),
		log.Float64("supported_concurrency", r.scenario.SupportedConcurrency),
		log.Float64("arrival_rate", r.scenario.ArrivalRate),
	)

	var arrivals *rate.Limiter
	if r.scenario.ArrivalRate > 0 {
		arrivals = rate.NewLimiter(rate.Limit(r.scenario.ArrivalRate), 1)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < r.scenario.Requests; i++ {
		if arrivals != nil {
			if err := arrivals.Wait(gCtx); err != nil {
				break
			}
		} else if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			return r.runOperation(gCtx)
		})
	}
	runErr := g.Wait()

	_ = r.sampler.Run(ctx)
	summary := r.makeSummary(time.Since(startedAt), ctx.Err() != nil)
	r.summary.Store(summary)

	if summary.Interrupted {
		r.logger.Warn("stress run interrupted", log.Int64("completed", summary.Completed))
		return nil
	}
	if runErr != nil {
		return fmt.Errorf("stress run: %w", runErr)
	}
	r.logger.Info("stress run finished",
		log.Int64("completed", summary.Completed),
		log.Int64("backpressured", summary.Backpressured),
		log.Int64("peak_concurrency", summary.PeakConcurrency),
		log.Duration("duration", summary.Duration),
	)
	return nil
}

func (r *Runner) runOperation(ctx context.Context) error {
	err := r.limiter.Do(ctx, func(ctx context.Context, downstream *Downstream) error {
		callErr := downstream.Call(ctx)
		if errors.Is(callErr, limiter.ErrBackpressure) {
			r.backpressured.Inc()
		}
		return callErr
	})
	if err != nil {
		r.failed.Inc()
		return err
	}
	if completed := r.completed.Inc(); completed%r.progressEvery == 0 {
		stats := r.limiter.Stats()
		r.logger.Info("stress run progress",
			log.Int64("completed", completed),
			log.Float64(limiter.LogFieldConcurrency, stats.Concurrency),
			log.Float64(limiter.LogFieldThreshold, stats.Threshold),
			log.Float64("supported_concurrency", r.downstream.Supported()),
		)
	}
	return nil
}

func (r *Runner) makeSummary(duration time.Duration, interrupted bool) Summary {
	stats := r.limiter.Stats()
	return Summary{
		Requests:         r.scenario.Requests,
		Completed:        r.completed.Load(),
		Backpressured:    r.backpressured.Load(),
		Failed:           r.failed.Load(),
		Interrupted:      interrupted,
		PeakConcurrency:  r.downstream.Peak(),
		FinalConcurrency: stats.Concurrency,
		FinalThreshold:   stats.Threshold,
		AvgConcurrency:   r.sampler.AvgConcurrency(),
		Supported:        r.downstream.Supported(),
		Samples:          len(r.sampler.Samples()),
		Duration:         duration,
	}
}

// Summary returns the summary of the finished run. It returns false if the run has not finished yet.
func (r *Runner) Summary() (Summary, bool) {
	summary, ok := r.summary.Load().(Summary)
	return summary, ok
}

// MustRegisterMetrics registers the limiter metrics.
func (r *Runner) MustRegisterMetrics() {
	if r.metrics != nil {
		r.metrics.MustRegister()
	}
}

// UnregisterMetrics unregisters the limiter metrics.
func (r *Runner) UnregisterMetrics() {
	if r.metrics != nil {
		r.metrics.Unregister()
	}
}
