/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import (
	"errors"

	"github.com/acronis/go-sawtooth/config"
)

const cfgDefaultKeyPrefix = "limiter"

const (
	cfgKeyMaxConcurrency      = "maxConcurrency"
	cfgKeyMinConcurrency      = "minConcurrency"
	cfgKeyStepSize            = "stepSize"
	cfgKeyBackoffFactor       = "backoffFactor"
	cfgKeyStartingConcurrency = "startingConcurrency"
)

// Default configuration values.
const (
	DefaultMaxConcurrency = 1000
	DefaultMinConcurrency = 1
	DefaultStepSize       = 1
	DefaultBackoffFactor  = 0.95
)

// Config represents a set of parameters for the adaptive concurrency limiter.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// MaxConcurrency is the maximum value the concurrency limit can be increased to.
	MaxConcurrency int `mapstructure:"maxConcurrency" yaml:"maxConcurrency" json:"maxConcurrency"`

	// MinConcurrency is the minimum value the concurrency limit can be reduced to.
	MinConcurrency int `mapstructure:"minConcurrency" yaml:"minConcurrency" json:"minConcurrency"`

	// StepSize is the amount the concurrency limit is increased by on a successful operation.
	StepSize int `mapstructure:"stepSize" yaml:"stepSize" json:"stepSize"`

	// BackoffFactor is the multiplier applied to the concurrency limit on backpressure.
	// Must be in the (0, 1) interval.
	BackoffFactor float64 `mapstructure:"backoffFactor" yaml:"backoffFactor" json:"backoffFactor"`

	// StartingConcurrency is the initial concurrency limit.
	// If zero, (MaxConcurrency - MinConcurrency) / 2 is used.
	StartingConcurrency int `mapstructure:"startingConcurrency" yaml:"startingConcurrency" json:"startingConcurrency"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) Config {
	cfg := NewConfig(options...)
	cfg.MaxConcurrency = DefaultMaxConcurrency
	cfg.MinConcurrency = DefaultMinConcurrency
	cfg.StepSize = DefaultStepSize
	cfg.BackoffFactor = DefaultBackoffFactor
	return *cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the limiter in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxConcurrency, DefaultMaxConcurrency)
	dp.SetDefault(cfgKeyMinConcurrency, DefaultMinConcurrency)
	dp.SetDefault(cfgKeyStepSize, DefaultStepSize)
	dp.SetDefault(cfgKeyBackoffFactor, DefaultBackoffFactor)
	dp.SetDefault(cfgKeyStartingConcurrency, 0)
}

// Set sets limiter configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.MaxConcurrency, err = dp.GetInt(cfgKeyMaxConcurrency); err != nil {
		return err
	}
	if c.MinConcurrency, err = dp.GetInt(cfgKeyMinConcurrency); err != nil {
		return err
	}
	if c.StepSize, err = dp.GetInt(cfgKeyStepSize); err != nil {
		return err
	}
	if c.BackoffFactor, err = dp.GetFloat64(cfgKeyBackoffFactor); err != nil {
		return err
	}
	if c.StartingConcurrency, err = dp.GetInt(cfgKeyStartingConcurrency); err != nil {
		return err
	}
	if err = c.Validate(); err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			return dp.WrapKeyErr(cfgErr.Field, cfgErr.Err)
		}
		return err
	}
	return nil
}

// EffectiveStartingConcurrency returns the concurrency limit the limiter starts with.
func (c *Config) EffectiveStartingConcurrency() int {
	if c.StartingConcurrency != 0 {
		return c.StartingConcurrency
	}
	return (c.MaxConcurrency - c.MinConcurrency) / 2
}

// Validate checks the configuration and returns *ConfigError describing the first invalid parameter.
func (c *Config) Validate() error {
	starting := c.EffectiveStartingConcurrency()
	if starting > c.MaxConcurrency || starting < c.MinConcurrency {
		return &ConfigError{Field: cfgKeyStartingConcurrency, Err: ErrStartingConcurrencyOutOfRange}
	}
	if c.MinConcurrency <= 0 {
		return &ConfigError{Field: cfgKeyMinConcurrency, Err: ErrMinConcurrencyNotPositive}
	}
	if c.MinConcurrency >= c.MaxConcurrency {
		return &ConfigError{Field: cfgKeyMinConcurrency, Err: ErrMinConcurrencyNotLessThanMax}
	}
	if c.BackoffFactor <= 0 || c.BackoffFactor >= 1 {
		return &ConfigError{Field: cfgKeyBackoffFactor, Err: ErrBackoffFactorOutOfRange}
	}
	if c.StepSize < 1 {
		return &ConfigError{Field: cfgKeyStepSize, Err: ErrStepSizeNotPositive}
	}
	return nil
}
