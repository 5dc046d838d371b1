/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package stress

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Phase changes the concurrency supported by the downstream when the given share of requests has been started.
// It may be written as a string: "x2@1/3" (multiply by 2 after a third of requests),
// "/3@2/3" (divide by 3 after two thirds), "x0.5@0.75".
type Phase struct {
	At     float64 `mapstructure:"at" yaml:"at" json:"at"`
	Factor float64 `mapstructure:"factor" yaml:"factor" json:"factor"`
}

// DefaultPhases doubles the supported concurrency at 1/3 of requests and divides it by 3 at 2/3.
func DefaultPhases() []Phase {
	return []Phase{{At: 1.0 / 3, Factor: 2}, {At: 2.0 / 3, Factor: 1.0 / 3}}
}

// ParsePhase parses the string form of the Phase.
func ParsePhase(s string) (Phase, error) {
	s = strings.TrimSpace(s)
	opAndFactor, at, ok := strings.Cut(s, "@")
	if !ok || opAndFactor == "" {
		return Phase{}, fmt.Errorf("parse phase %q: want <x|/><factor>@<fraction>", s)
	}
	factor, err := strconv.ParseFloat(opAndFactor[1:], 64)
	if err != nil {
		return Phase{}, fmt.Errorf("parse phase %q factor: %w", s, err)
	}
	switch opAndFactor[0] {
	case 'x', '*':
	case '/':
		if factor == 0 {
			return Phase{}, fmt.Errorf("parse phase %q: division by zero", s)
		}
		factor = 1 / factor
	default:
		return Phase{}, fmt.Errorf("parse phase %q: unknown operation %q", s, opAndFactor[0])
	}
	fraction, err := parseFraction(at)
	if err != nil {
		return Phase{}, fmt.Errorf("parse phase %q fraction: %w", s, err)
	}
	p := Phase{At: fraction, Factor: factor}
	if err = p.Validate(); err != nil {
		return Phase{}, err
	}
	return p, nil
}

func parseFraction(s string) (float64, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return strconv.ParseFloat(s, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, errors.New("zero denominator")
	}
	return n / d, nil
}

// Validate checks the phase values.
func (p Phase) Validate() error {
	if p.At < 0 || p.At > 1 {
		return fmt.Errorf("phase fraction must be in range [0..1], got %v", p.At)
	}
	if p.Factor <= 0 {
		return fmt.Errorf("phase factor must be positive, got %v", p.Factor)
	}
	return nil
}

// UnmarshalText allows to decode the Phase from the string form (e.g., by gopkg.in/yaml.v3).
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// stringToPhaseHookFunc is a mapstructure decode hook that converts strings to Phase.
func stringToPhaseHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(Phase{}) {
			return data, nil
		}
		return ParsePhase(data.(string))
	}
}
