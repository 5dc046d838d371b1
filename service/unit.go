/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package service runs long-living parts of a process (stress runs, samplers, diagnostics servers)
// as units with a common start/stop lifecycle, and stops them on OS signals.
package service

// Unit is a part of a service with its own lifecycle.
type Unit interface {
	// Start runs the unit. It may return right after initialization or block for the unit's lifetime.
	// A failure is reported by writing exactly one error to fatalErr, the channel must not be used
	// after Start returns.
	Start(fatalErr chan<- error)

	// Stop halts the unit. It may be called even if Start failed or was never called.
	// If gracefully is true, the unit should wait for in-progress work to finish.
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units that own Prometheus metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
