/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package diagserver

import "github.com/acronis/go-sawtooth/config"

const (
	cfgKeyDiagServerEnabled = "diagserver.enabled"
	cfgKeyDiagServerAddress = "diagserver.address"
)

// DefaultAddress is a default address the diagnostics server listens on.
const DefaultAddress = ":8081"

// Config represents a set of configuration parameters for the diagnostics server.
type Config struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Address string `mapstructure:"address" yaml:"address" json:"address"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{Enabled: false, Address: DefaultAddress}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the diagnostics server in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyDiagServerEnabled, false)
	dp.SetDefault(cfgKeyDiagServerAddress, DefaultAddress)
}

// Set sets diagnostics server configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyDiagServerEnabled); err != nil {
		return err
	}
	if c.Address, err = dp.GetString(cfgKeyDiagServerAddress); err != nil {
		return err
	}
	return nil
}
