/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import "math"

// controller holds the numeric state of the limit and implements increase/decrease rules.
// It's not safe for concurrent use, Limiter serializes all calls.
type controller struct {
	minConcurrency float64
	maxConcurrency float64
	stepSize       float64
	backoffFactor  float64

	concurrency float64
	threshold   float64
}

func newController(cfg Config) controller {
	return controller{
		minConcurrency: float64(cfg.MinConcurrency),
		maxConcurrency: float64(cfg.MaxConcurrency),
		stepSize:       float64(cfg.StepSize),
		backoffFactor:  cfg.BackoffFactor,
		concurrency:    float64(cfg.EffectiveStartingConcurrency()),
		threshold:      float64(cfg.MaxConcurrency),
	}
}

// increase raises the limit after a successful operation. inFlight is the number of operations
// that are still in flight (the released one is not counted).
func (c *controller) increase(inFlight int) Regime {
	regime := regimeFor(inFlight, c.threshold)

	// Never grow further than one step above the current load.
	loadBound := float64(inFlight) + c.stepSize + 1

	var candidate float64
	switch regime {
	case RegimeSlowStart:
		candidate = math.Min(loadBound, c.concurrency+c.stepSize)
	case RegimeCongestionAvoidance:
		candidate = math.Min(loadBound, c.concurrency+c.stepSize/c.concurrency)
	}
	candidate = math.Max(c.concurrency, candidate)

	c.concurrency = math.Ceil(math.Min(candidate, c.maxConcurrency))
	return regime
}

// decrease applies multiplicative back-off to the limit and moves the slow-start threshold to the new limit.
func (c *controller) decrease() {
	c.threshold = math.Floor(math.Max(c.minConcurrency, c.concurrency*c.backoffFactor))
	c.concurrency = c.threshold
}

// available returns how many more operations may be admitted.
func (c *controller) available(inFlight int) int {
	free := int(math.Ceil(c.concurrency)) - inFlight
	if free < 0 {
		return 0
	}
	return free
}
