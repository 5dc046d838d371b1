/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import "fmt"

// Regime is a growth regime of the concurrency limit.
type Regime int

// Growth regimes.
const (
	// RegimeSlowStart is used while the number of in-flight operations is below the slow-start threshold.
	// The limit grows by the whole step size per successful operation.
	RegimeSlowStart Regime = iota

	// RegimeCongestionAvoidance is used when the number of in-flight operations reached the threshold.
	// The limit grows by step/limit per successful operation.
	RegimeCongestionAvoidance
)

// String returns a string representation of the regime.
// Implements fmt.Stringer interface.
func (r Regime) String() string {
	switch r {
	case RegimeSlowStart:
		return "slow_start"
	case RegimeCongestionAvoidance:
		return "congestion_avoidance"
	}
	return "unknown"
}

// MarshalText encodes the regime as its string representation.
func (r Regime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes the regime from its string representation.
func (r *Regime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "slow_start":
		*r = RegimeSlowStart
	case "congestion_avoidance":
		*r = RegimeCongestionAvoidance
	default:
		return fmt.Errorf("unknown regime %q", text)
	}
	return nil
}

func regimeFor(inFlight int, threshold float64) Regime {
	if float64(inFlight) < threshold {
		return RegimeSlowStart
	}
	return RegimeCongestionAvoidance
}
