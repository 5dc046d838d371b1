/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package stress

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// CSVTimeLayout is a layout of the "ts" column.
const CSVTimeLayout = "2006-01-02 15:04:05.000000"

// CSVHeader is the header row written by WriteCSV.
var CSVHeader = []string{
	"ts",
	"Concurrency",
	"Peak concurrency",
	"Max concurrency",
	"Avg concurrency",
	"Min concurrency",
	"Supported concurrency",
	"sshthresh",
}

// WriteCSV writes the samples in CSV format with the CSVHeader.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range samples {
		if err := cw.Write(samples[i].csvRecord()); err != nil {
			return fmt.Errorf("write csv record #%d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the samples into the file, the file is truncated if it exists.
func WriteCSVFile(path string, samples []Sample) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is provided by the operator
	if err != nil {
		return fmt.Errorf("create samples file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close samples file: %w", closeErr)
		}
	}()
	return WriteCSV(f, samples)
}

func (s *Sample) csvRecord() []string {
	return []string{
		s.Time.Format(CSVTimeLayout),
		formatFloat(s.Concurrency),
		strconv.FormatInt(s.Peak, 10),
		strconv.Itoa(s.Max),
		formatFloat(s.Avg),
		strconv.Itoa(s.Min),
		formatFloat(s.Supported),
		formatFloat(s.Threshold),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
