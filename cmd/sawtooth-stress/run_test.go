/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-sawtooth/internal/libinfo"
	"github.com/acronis/go-sawtooth/internal/stress"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunCmd(t *testing.T) {
	cfgPath := writeConfigFile(t, `
log:
  level: error
stress:
  requests: 100
  supportedConcurrency: 3
  minWork: 1ms
  maxWork: 3ms
  workStep: 1ms
  sampleInterval: 5ms
  limiter:
    maxConcurrency: 20
    backoffFactor: 0.5
`)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"run", "--config", cfgPath, "--output", outPath, "--requests", "50"})
	require.NoError(t, cmd.Execute())

	require.Contains(t, out.String(), "Stress run finished")
	require.Contains(t, out.String(), "50/50 completed")
	require.Contains(t, out.String(), "samples written to "+outPath)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 2)
	require.Equal(t, stress.CSVHeader, records[0])
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "unsupported config extension",
			args:    []string{"run", "--config", "config.toml"},
			wantErr: `unsupported configuration file extension "config.toml", should be one of .yaml, .yml, .json`,
		},
		{
			name:    "invalid scenario",
			args:    []string{"run", "--config", writeConfigFile(t, "stress:\n  requests: -1\n")},
			wantErr: "stress.requests: must be positive",
		},
		{
			name:    "invalid flag value",
			args:    []string{"run", "--supported", "0"},
			wantErr: "stress.supportedConcurrency: must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	require.Equal(t, libinfo.Version()+"\n", out.String())
}
