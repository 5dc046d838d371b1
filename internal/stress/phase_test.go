/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package stress

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in      string
		want    Phase
		wantErr string
	}{
		{in: "x2@1/3", want: Phase{At: 1.0 / 3, Factor: 2}},
		{in: "*1.5@0.5", want: Phase{At: 0.5, Factor: 1.5}},
		{in: " /4@3/4 ", want: Phase{At: 0.75, Factor: 0.25}},
		{in: "x2", wantErr: `parse phase "x2": want <x|/><factor>@<fraction>`},
		{in: "+2@1/2", wantErr: `parse phase "+2@1/2": unknown operation '+'`},
		{in: "/0@1/2", wantErr: `parse phase "/0@1/2": division by zero`},
		{in: "x2@1/0", wantErr: `parse phase "x2@1/0" fraction: zero denominator`},
		{in: "x2@3/2", wantErr: "phase fraction must be in range [0..1], got 1.5"},
		{in: "x0@1/2", wantErr: "phase factor must be positive, got 0"},
		{in: "xabc@1/2", wantErr: `parse phase "xabc@1/2" factor: strconv.ParseFloat: parsing "abc": invalid syntax`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePhase(tt.in)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.InDelta(t, tt.want.At, got.At, 1e-12)
			require.InDelta(t, tt.want.Factor, got.Factor, 1e-12)
		})
	}
}

func TestPhase_UnmarshalYAML(t *testing.T) {
	var phases []Phase
	require.NoError(t, yaml.Unmarshal([]byte(`
- x2@1/3
- at: 0.9
  factor: 0.5
`), &phases))
	require.Len(t, phases, 2)
	require.InDelta(t, 1.0/3, phases[0].At, 1e-12)
	require.Equal(t, 2.0, phases[0].Factor)
	require.Equal(t, Phase{At: 0.9, Factor: 0.5}, phases[1])

	require.Error(t, yaml.Unmarshal([]byte(`["bad"]`), &phases))
}
