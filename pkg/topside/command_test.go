package topside

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatMotorCommand(t *testing.T) {
	testCases := []struct {
		name     string
		sticks   []float64
		triggers []float64
		payload  string
	}{
		{"neutral", []float64{0, 0, 0, 0, 0, 0}, []float64{0, 0, 0, 0}, "0,0\t0,0\t0,0,0,0"},
		{"mixed", []float64{1, -0.5, 0.25, 0, 1, -1}, []float64{0.75, 0, 1, 0}, "-0.5,0.25\t1,-1\t0.75,0,1,0"},
		{"precise", []float64{0, 0.123, -0.001, 0, 0, 0}, []float64{0.5, 0.5, 0, 1}, "0.123,-0.001\t0,0\t0.5,0.5,0,1"},
		{"short readings", []float64{0, 0.5}, nil, "0.5,0\t0,0\t0,0,0,0"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload := FormatMotorCommand(tc.sticks, tc.triggers)
			require.Equal(t, tc.payload, payload)
			cmd, err := ParseMotorCommand(payload)
			require.NoError(t, err)
			require.Equal(t, NewMotorCommand(tc.sticks, tc.triggers), cmd)
		})
	}
}

func TestParseMotorCommandMalformed(t *testing.T) {
	for _, payload := range []string{
		"",
		"0,0\t0,0",
		"0,0\t0,0\t0,0,0",
		"0,0\t0,x\t0,0,0,0",
		"0,0,0\t0,0\t0,0,0,0",
	} {
		_, err := ParseMotorCommand(payload)
		require.Error(t, err, payload)
	}
}
