/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import (
	"context"
	"fmt"
	"sync"

	"github.com/acronis/go-sawtooth/log"
)

// Log fields used by the limiter.
const (
	LogFieldLimiter     = "limiter"
	LogFieldOperationID = "operation_id"
	LogFieldConcurrency = "concurrency"
	LogFieldThreshold   = "threshold"
	LogFieldInFlight    = "in_flight"
	LogFieldRegime      = "regime"
)

// Opts represents options for the Limiter.
type Opts struct {
	// Name identifies the limiter in logs and metrics.
	Name string

	// Logger is used for logging limit adjustments. If nil, nothing is logged.
	Logger log.FieldLogger

	// MetricsCollector is used for collecting limiter metrics. If nil, metrics are not collected.
	MetricsCollector *MetricsCollector
}

// Stats is a point-in-time snapshot of the limiter state.
type Stats struct {
	Concurrency float64 `json:"concurrency"`
	Threshold   float64 `json:"threshold"`
	InFlight    int     `json:"inFlight"`
	Waiting     int     `json:"waiting"`
	Ignored     int     `json:"ignored"`
	Regime      Regime  `json:"regime"`
}

// Limiter is an adaptive concurrency limiter guarding a resource of type R.
//
// Every operation is identified by an ID that must be unique among outstanding (admitted or waiting) operations.
// The same ID must be passed to Release when the operation is finished.
// Limiter is safe for concurrent use.
type Limiter[R any] struct {
	name     string
	cfg      Config
	resource R
	logger   log.FieldLogger
	metrics  *limiterMetrics

	mu      sync.Mutex
	ctrl    controller
	flying  map[string]struct{}
	ignored map[string]struct{}
	waiters *waitQueue
}

// New creates a new Limiter that guards the passed resource.
func New[R any](resource R, cfg Config) (*Limiter[R], error) {
	return NewWithOpts(resource, cfg, Opts{})
}

// MustNew is a version of New that panics on error.
func MustNew[R any](resource R, cfg Config) *Limiter[R] {
	l, err := New(resource, cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// NewWithOpts is a more configurable version of New.
func NewWithOpts[R any](resource R, cfg Config, opts Opts) (*Limiter[R], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newLimiter(resource, cfg, opts), nil
}

// MustNewWithOpts is a version of NewWithOpts that panics on error.
func MustNewWithOpts[R any](resource R, cfg Config, opts Opts) *Limiter[R] {
	l, err := NewWithOpts(resource, cfg, opts)
	if err != nil {
		panic(err)
	}
	return l
}

// newLimiter expects already validated configuration.
func newLimiter[R any](resource R, cfg Config, opts Opts) *Limiter[R] {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	if opts.Name != "" {
		logger = logger.With(log.String(LogFieldLimiter, opts.Name))
	}
	l := &Limiter[R]{
		name:     opts.Name,
		cfg:      cfg,
		resource: resource,
		logger:   logger,
		metrics:  newLimiterMetrics(opts.MetricsCollector, opts.Name),
		ctrl:     newController(cfg),
		flying:   make(map[string]struct{}),
		ignored:  make(map[string]struct{}),
		waiters:  newWaitQueue(),
	}
	l.observeStateLocked()
	return l
}

// Name returns the limiter name.
func (l *Limiter[R]) Name() string {
	return l.name
}

// Config returns the configuration the limiter was created with.
func (l *Limiter[R]) Config() Config {
	return l.cfg
}

// Resource returns the guarded resource without acquiring it.
func (l *Limiter[R]) Resource() R {
	return l.resource
}

// Stats returns a snapshot of the limiter state.
// Values returned by different calls are not consistent with each other.
func (l *Limiter[R]) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Concurrency: l.ctrl.concurrency,
		Threshold:   l.ctrl.threshold,
		InFlight:    len(l.flying),
		Waiting:     l.waiters.Len(),
		Ignored:     len(l.ignored),
		Regime:      regimeFor(len(l.flying), l.ctrl.threshold),
	}
}

// Acquire admits the operation with the given ID and returns the guarded resource.
// If the concurrency limit is reached, the call blocks until the operation is admitted in FIFO order
// or the context is done. In the latter case, the context error is returned and the operation is not admitted.
//
// The ID must not be used by another outstanding operation, otherwise ErrOperationOutstanding is returned.
func (l *Limiter[R]) Acquire(ctx context.Context, id string) (R, error) {
	var zero R

	l.mu.Lock()
	if err := l.checkNotOutstandingLocked(id); err != nil {
		l.mu.Unlock()
		return zero, err
	}
	if l.waiters.Len() == 0 && l.ctrl.available(len(l.flying)) > 0 {
		l.flying[id] = struct{}{}
		l.observeStateLocked()
		l.mu.Unlock()
		return l.resource, nil
	}
	w := l.waiters.PushBack(id)
	l.observeStateLocked()
	l.mu.Unlock()

	select {
	case <-w.ready:
		return l.resource, nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.abandonWaiterLocked(w)
	l.metrics.incCanceledWaits()
	l.observeStateLocked()
	l.logger.Debug("operation canceled while waiting for admission",
		log.String(LogFieldOperationID, id), log.Error(ctx.Err()))
	return zero, ctx.Err()
}

// TryAcquire admits the operation with the given ID only if it can be done without waiting.
// It never overtakes operations that are already waiting.
func (l *Limiter[R]) TryAcquire(id string) (resource R, acquired bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err = l.checkNotOutstandingLocked(id); err != nil {
		return resource, false, err
	}
	if l.waiters.Len() != 0 || l.ctrl.available(len(l.flying)) == 0 {
		return resource, false, nil
	}
	l.flying[id] = struct{}{}
	l.observeStateLocked()
	return l.resource, true, nil
}

// Release finishes the operation previously admitted with the given ID.
// If backpressure is false, the concurrency limit may be increased, otherwise it's decreased
// unless the operation was already in flight when the limit was decreased last time.
// After that, as many waiting operations as the new limit allows are admitted.
//
// Releasing an ID that is not in flight returns ErrOperationNotFlying and changes nothing.
func (l *Limiter[R]) Release(id string, backpressure bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.flying[id]; !ok {
		return fmt.Errorf("release operation %q: %w", id, ErrOperationNotFlying)
	}
	delete(l.flying, id)

	_, ignored := l.ignored[id]
	switch {
	case !backpressure:
		l.increaseLocked(id)
	case !ignored:
		l.decreaseLocked(id)
	default:
		l.metrics.incIgnoredBackpressure()
		l.logger.Debug("backpressure ignored, limit was already decreased for this operation",
			log.String(LogFieldOperationID, id), log.Float64(LogFieldConcurrency, l.ctrl.concurrency))
	}
	if ignored {
		delete(l.ignored, id)
	}

	l.promoteWaitersLocked()
	l.observeStateLocked()
	return nil
}

func (l *Limiter[R]) increaseLocked(id string) {
	prev := l.ctrl.concurrency
	regime := l.ctrl.increase(len(l.flying))
	if l.ctrl.concurrency == prev {
		return
	}
	l.metrics.incLimitIncreases()
	l.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
		logFunc("concurrency limit increased",
			log.String(LogFieldOperationID, id),
			log.String(LogFieldRegime, regime.String()),
			log.Float64(LogFieldConcurrency, l.ctrl.concurrency),
			log.Float64(LogFieldThreshold, l.ctrl.threshold),
			log.Int(LogFieldInFlight, len(l.flying)),
		)
	})
}

func (l *Limiter[R]) decreaseLocked(id string) {
	l.ctrl.decrease()
	l.ignored = make(map[string]struct{}, len(l.flying))
	for flyingID := range l.flying {
		l.ignored[flyingID] = struct{}{}
	}
	l.metrics.incLimitDecreases()
	l.logger.Debug("concurrency limit decreased due to backpressure",
		log.String(LogFieldOperationID, id),
		log.Float64(LogFieldConcurrency, l.ctrl.concurrency),
		log.Float64(LogFieldThreshold, l.ctrl.threshold),
		log.Int(LogFieldInFlight, len(l.flying)),
	)
}

func (l *Limiter[R]) promoteWaitersLocked() {
	n := l.ctrl.available(len(l.flying))
	for i := 0; i < n; i++ {
		w := l.waiters.PopFront()
		if w == nil {
			return
		}
		l.flying[w.id] = struct{}{}
		close(w.ready)
	}
}

// abandonWaiterLocked removes the waiter whose context is done.
// If it has been admitted concurrently, the slot is given back without adjusting the limit.
func (l *Limiter[R]) abandonWaiterLocked(w *waiter) {
	if l.waiters.Remove(w) {
		return
	}
	delete(l.flying, w.id)
	delete(l.ignored, w.id)
	l.promoteWaitersLocked()
}

func (l *Limiter[R]) checkNotOutstandingLocked(id string) error {
	if _, ok := l.flying[id]; ok || l.waiters.Contains(id) {
		return fmt.Errorf("acquire operation %q: %w", id, ErrOperationOutstanding)
	}
	return nil
}

func (l *Limiter[R]) observeStateLocked() {
	l.metrics.observeState(l.ctrl.concurrency, l.ctrl.threshold, len(l.flying), l.waiters.Len())
}
