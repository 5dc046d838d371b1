/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-sawtooth/config"
)

func loadConfig(t *testing.T, data string, cfg *Config) error {
	t.Helper()
	return config.NewLoader(config.NewViperAdapter()).LoadFromReader(bytes.NewBufferString(data), config.DataTypeYAML, cfg)
}

func TestConfig_Load(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, loadConfig(t, "{}", cfg))
		require.Equal(t, NewDefaultConfig(), cfg)
	})

	t.Run("all values", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, loadConfig(t, `
log:
  level: WARN
  format: text
  output: file
  nocolor: true
  file:
    path: sawtooth.log
    rotation:
      compress: true
      maxSize: 100M
      maxBackups: 42
      maxAgeDays: 7
      localTimeInNames: true
  addCaller: true
  error:
    noVerbose: true
    verboseSuffix: _details
`, cfg))

		want := NewDefaultConfig()
		want.Level = LevelWarn
		want.Format = FormatText
		want.Output = OutputFile
		want.NoColor = true
		want.File = FileOutputConfig{
			Path: "sawtooth.log",
			Rotation: FileRotationConfig{
				Compress:         true,
				MaxSize:          100 * 1024 * 1024,
				MaxBackups:       42,
				MaxAgeDays:       7,
				LocalTimeInNames: true,
			},
		}
		want.AddCaller = true
		want.Error = ErrorConfig{NoVerbose: true, VerboseSuffix: "_details"}
		require.Equal(t, want, cfg)
	})

	t.Run("custom key prefix", func(t *testing.T) {
		cfg := NewConfig(WithKeyPrefix("stress.log"))
		require.NoError(t, loadConfig(t, `
stress:
  log:
    level: debug
`, cfg))
		require.Equal(t, LevelDebug, cfg.Level)
		require.Equal(t, "stress.log", cfg.KeyPrefix())
	})
}

func TestConfig_LoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		errMsg string
	}{
		{
			name:   "unknown level",
			data:   "log:\n  level: trace\n",
			errMsg: `log.level: unknown value "trace", should be one of [error warn info debug]`,
		},
		{
			name:   "unknown output",
			data:   "log:\n  output: syslog\n",
			errMsg: `log.output: unknown value "syslog", should be one of [stdout stderr file]`,
		},
		{
			name:   "file output without path",
			data:   "log:\n  output: file\n",
			errMsg: `log.file.path: cannot be empty when "file" output is used`,
		},
		{
			name:   "too small rotation size",
			data:   "log:\n  file:\n    rotation:\n      maxSize: 1K\n",
			errMsg: "log.file.rotation.maxSize: should be >= 1M",
		},
		{
			name:   "zero max backups",
			data:   "log:\n  file:\n    rotation:\n      maxBackups: 0\n",
			errMsg: "log.file.rotation.maxBackups: should be >= 1",
		},
		{
			name:   "negative max age",
			data:   "log:\n  file:\n    rotation:\n      maxAgeDays: -1\n",
			errMsg: "log.file.rotation.maxAgeDays: should be >= 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.EqualError(t, loadConfig(t, tt.data, NewConfig()), tt.errMsg)
		})
	}
}
