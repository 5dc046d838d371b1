/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package stress

import (
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-sawtooth/config"
	"github.com/acronis/go-sawtooth/limiter"
)

const cfgDefaultKeyPrefix = "stress"

const (
	cfgKeyRequests             = "requests"
	cfgKeySupportedConcurrency = "supportedConcurrency"
	cfgKeyPhases               = "phases"
	cfgKeyMinWork              = "minWork"
	cfgKeyMaxWork              = "maxWork"
	cfgKeyWorkStep             = "workStep"
	cfgKeySampleInterval       = "sampleInterval"
	cfgKeyArrivalRate          = "arrivalRate"
	cfgKeyOutput               = "output"
	cfgKeyLimiter              = "limiter"
)

// Default scenario values.
const (
	DefaultRequests             = 30000
	DefaultSupportedConcurrency = 25
	DefaultMinWork              = 10 * time.Millisecond
	DefaultMaxWork              = 100 * time.Millisecond
	DefaultWorkStep             = 10 * time.Millisecond
	DefaultSampleInterval       = 100 * time.Millisecond
	DefaultOutput               = "samples.csv"
)

// Limiter defaults of the scenario. They differ from the library defaults
// to show how the limit climbs from the bottom.
const (
	DefaultLimiterStartingConcurrency = 1
	DefaultLimiterMaxConcurrency      = 100
	DefaultLimiterBackoffFactor       = 0.9
)

// Scenario describes a stress run: how many operations are started against the simulated downstream,
// how much concurrency the downstream supports over time and how the limiter is configured.
type Scenario struct {
	Requests             int            `mapstructure:"requests" yaml:"requests" json:"requests"`
	SupportedConcurrency float64        `mapstructure:"supportedConcurrency" yaml:"supportedConcurrency" json:"supportedConcurrency"`
	Phases               []Phase        `mapstructure:"phases" yaml:"phases" json:"phases"`
	MinWork              time.Duration  `mapstructure:"minWork" yaml:"minWork" json:"minWork"`
	MaxWork              time.Duration  `mapstructure:"maxWork" yaml:"maxWork" json:"maxWork"`
	WorkStep             time.Duration  `mapstructure:"workStep" yaml:"workStep" json:"workStep"`
	SampleInterval       time.Duration  `mapstructure:"sampleInterval" yaml:"sampleInterval" json:"sampleInterval"`
	ArrivalRate          float64        `mapstructure:"arrivalRate" yaml:"arrivalRate" json:"arrivalRate"`
	Output               string         `mapstructure:"output" yaml:"output" json:"output"`
	Limiter              limiter.Config `mapstructure:"limiter" yaml:"limiter" json:"limiter"`

	keyPrefix string
}

var _ config.Config = (*Scenario)(nil)
var _ config.KeyPrefixProvider = (*Scenario)(nil)

// NewScenario creates a new Scenario that is loaded from the "stress" section.
func NewScenario() *Scenario {
	return &Scenario{keyPrefix: cfgDefaultKeyPrefix}
}

// NewDefaultScenario creates a new Scenario with default values.
func NewDefaultScenario() *Scenario {
	s := NewScenario()
	s.Requests = DefaultRequests
	s.SupportedConcurrency = DefaultSupportedConcurrency
	s.Phases = DefaultPhases()
	s.MinWork = DefaultMinWork
	s.MaxWork = DefaultMaxWork
	s.WorkStep = DefaultWorkStep
	s.SampleInterval = DefaultSampleInterval
	s.Output = DefaultOutput
	s.Limiter = limiter.NewDefaultConfig()
	s.Limiter.StartingConcurrency = DefaultLimiterStartingConcurrency
	s.Limiter.MaxConcurrency = DefaultLimiterMaxConcurrency
	s.Limiter.BackoffFactor = DefaultLimiterBackoffFactor
	return s
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (s *Scenario) KeyPrefix() string {
	return s.keyPrefix
}

// SetProviderDefaults sets default scenario values in config.DataProvider.
func (s *Scenario) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyRequests, DefaultRequests)
	dp.SetDefault(cfgKeySupportedConcurrency, DefaultSupportedConcurrency)
	dp.SetDefault(cfgKeyMinWork, DefaultMinWork)
	dp.SetDefault(cfgKeyMaxWork, DefaultMaxWork)
	dp.SetDefault(cfgKeyWorkStep, DefaultWorkStep)
	dp.SetDefault(cfgKeySampleInterval, DefaultSampleInterval)
	dp.SetDefault(cfgKeyArrivalRate, 0)
	dp.SetDefault(cfgKeyOutput, DefaultOutput)

	limiterDP := config.NewKeyPrefixedDataProvider(dp, cfgKeyLimiter)
	s.Limiter.SetProviderDefaults(limiterDP)
	limiterDP.SetDefault("startingConcurrency", DefaultLimiterStartingConcurrency)
	limiterDP.SetDefault("maxConcurrency", DefaultLimiterMaxConcurrency)
	limiterDP.SetDefault("backoffFactor", DefaultLimiterBackoffFactor)
}

// Set sets scenario values from config.DataProvider.
func (s *Scenario) Set(dp config.DataProvider) error {
	var err error
	if s.Requests, err = dp.GetInt(cfgKeyRequests); err != nil {
		return err
	}
	if s.SupportedConcurrency, err = dp.GetFloat64(cfgKeySupportedConcurrency); err != nil {
		return err
	}
	if err = s.setPhases(dp); err != nil {
		return err
	}
	if s.MinWork, err = dp.GetDuration(cfgKeyMinWork); err != nil {
		return err
	}
	if s.MaxWork, err = dp.GetDuration(cfgKeyMaxWork); err != nil {
		return err
	}
	if s.WorkStep, err = dp.GetDuration(cfgKeyWorkStep); err != nil {
		return err
	}
	if s.SampleInterval, err = dp.GetDuration(cfgKeySampleInterval); err != nil {
		return err
	}
	if s.ArrivalRate, err = dp.GetFloat64(cfgKeyArrivalRate); err != nil {
		return err
	}
	if s.Output, err = dp.GetString(cfgKeyOutput); err != nil {
		return err
	}
	if err = s.Limiter.Set(config.NewKeyPrefixedDataProvider(dp, cfgKeyLimiter)); err != nil {
		return err
	}
	return s.validate(dp)
}

func (s *Scenario) setPhases(dp config.DataProvider) error {
	if !dp.IsSet(cfgKeyPhases) {
		s.Phases = DefaultPhases()
		return nil
	}
	var phases []Phase
	if err := dp.UnmarshalKey(cfgKeyPhases, &phases, config.WithDecodeHook(stringToPhaseHookFunc())); err != nil {
		return err
	}
	for i := range phases {
		if err := phases[i].Validate(); err != nil {
			return dp.WrapKeyErr(fmt.Sprintf("%s[%d]", cfgKeyPhases, i), err)
		}
	}
	s.Phases = phases
	return nil
}

// Validate checks the scenario values.
func (s *Scenario) Validate() error {
	return s.validate(nil)
}

func (s *Scenario) validate(dp config.DataProvider) error {
	wrap := config.WrapKeyErr
	if dp != nil {
		wrap = dp.WrapKeyErr
	}
	switch {
	case s.Requests <= 0:
		return wrap(cfgKeyRequests, errors.New("must be positive"))
	case s.SupportedConcurrency <= 0:
		return wrap(cfgKeySupportedConcurrency, errors.New("must be positive"))
	case s.MinWork < 0:
		return wrap(cfgKeyMinWork, errors.New("must not be negative"))
	case s.MaxWork < s.MinWork:
		return wrap(cfgKeyMaxWork, errors.New("must not be less than minWork"))
	case s.WorkStep <= 0:
		return wrap(cfgKeyWorkStep, errors.New("must be positive"))
	case s.SampleInterval <= 0:
		return wrap(cfgKeySampleInterval, errors.New("must be positive"))
	case s.ArrivalRate < 0:
		return wrap(cfgKeyArrivalRate, errors.New("must not be negative"))
	case s.Output == "":
		return wrap(cfgKeyOutput, errors.New("must not be empty"))
	}
	return nil
}
