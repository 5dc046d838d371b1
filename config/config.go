/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads configuration of limiters, loggers and the stress harness
// from YAML/JSON files and environment variables.
//
// Every configuration object implements Config: it registers its defaults in a DataProvider
// and then reads (and validates) its values from it. Objects that implement KeyPrefixProvider
// see only the keys under their prefix, so the same object may be loaded from different sections
// (e.g. "limiter" and "downstream.limiter").
package config

// Config is a common interface for configuration objects that may be used by Loader.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

// DataProviderFor returns the DataProvider the configuration object should be loaded from.
// If the object has a non-empty key prefix, the returned provider is scoped to it.
func DataProviderFor(dp DataProvider, cfg Config) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(dp, kp.KeyPrefix())
	}
	return dp
}
