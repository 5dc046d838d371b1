/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package stress

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 30, 15, 123456000, time.UTC)
	samples := []Sample{
		{Time: ts, Concurrency: 1, Peak: 1, Max: 100, Avg: 1, Min: 1, Supported: 25, Threshold: 100},
		{Time: ts.Add(100 * time.Millisecond), Concurrency: 12.5, Peak: 13, Max: 100, Avg: 6.75, Min: 1,
			Supported: 50.0 / 3, Threshold: 11},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, samples))
	require.Equal(t,
		"ts,Concurrency,Peak concurrency,Max concurrency,Avg concurrency,Min concurrency,Supported concurrency,sshthresh\n"+
			"2025-03-01 12:30:15.123456,1,1,100,1,1,25,100\n"+
			"2025-03-01 12:30:15.223456,12.5,13,100,6.75,1,16.666666666666668,11\n",
		buf.String())
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, WriteCSVFile(path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"ts,Concurrency,Peak concurrency,Max concurrency,Avg concurrency,Min concurrency,Supported concurrency,sshthresh\n",
		string(data))

	require.Error(t, WriteCSVFile(filepath.Join(t.TempDir(), "missing", "samples.csv"), nil))
}
