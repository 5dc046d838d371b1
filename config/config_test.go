/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type testDownstreamConfig struct {
	Host           string
	MaxConcurrency int

	keyPrefix string
}

func (c *testDownstreamConfig) KeyPrefix() string {
	return c.keyPrefix
}

func (c *testDownstreamConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("host", "localhost")
	dp.SetDefault("maxConcurrency", 100)
}

func (c *testDownstreamConfig) Set(dp DataProvider) (err error) {
	if c.Host, err = dp.GetString("host"); err != nil {
		return err
	}
	if c.MaxConcurrency, err = dp.GetInt("maxConcurrency"); err != nil {
		return err
	}
	if c.MaxConcurrency <= 0 {
		return dp.WrapKeyErr("maxConcurrency", errors.New("should be positive"))
	}
	return nil
}

func TestDataProviderFor(t *testing.T) {
	va := NewViperAdapter()
	va.Set("storage.host", "db")

	require.Same(t, va, DataProviderFor(va, &testDownstreamConfig{}))

	dp := DataProviderFor(va, &testDownstreamConfig{keyPrefix: "storage"})
	host, err := dp.GetString("host")
	require.NoError(t, err)
	require.Equal(t, "db", host)
}

func TestDataTypeFromPath(t *testing.T) {
	for path, want := range map[string]DataType{
		"config.yaml":         DataTypeYAML,
		"/etc/sawtooth/a.YML": DataTypeYAML,
		"stress.json":         DataTypeJSON,
	} {
		got, err := DataTypeFromPath(path)
		require.NoError(t, err, path)
		require.Equal(t, want, got, path)
	}

	_, err := DataTypeFromPath("config.toml")
	require.Error(t, err)
}

func TestWrapKeyErrIfNeeded(t *testing.T) {
	require.NoError(t, WrapKeyErrIfNeeded("key", nil))

	errInner := errors.New("inner")
	err := WrapKeyErrIfNeeded("limiter.stepSize", errInner)
	require.ErrorIs(t, err, errInner)
	require.EqualError(t, err, "limiter.stepSize: inner")
}
