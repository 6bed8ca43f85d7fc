package cliconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "given env vars, then applied",
			envVars: map[string]string{
				"LANEPIN_INTERFACE":            "wired",
				"LANEPIN_TIMEOUT":              "5s",
				"LANEPIN_RETRIES":              "4",
				"LANEPIN_RATE_LIMIT":           "0.5",
				"LANEPIN_BREAKER":              "true",
				"LANEPIN_JSON":                 "1",
				"LANEPIN_EXPENSIVE_INTERFACES": "wwan*,usb0",
			},
			changed: map[string]bool{},
			expected: Config{
				Interface:           "wired",
				Timeout:             5 * time.Second,
				Retries:             4,
				RateLimit:           0.5,
				Breaker:             true,
				JSON:                true,
				ExpensiveInterfaces: []string{"wwan*", "usb0"},
			},
		},
		{
			name:     "given changed flag, then env ignored",
			envVars:  map[string]string{"LANEPIN_INTERFACE": "wifi", "LANEPIN_STRICT": "true"},
			changed:  map[string]bool{"interface": true},
			initial:  Config{Interface: "cellular"},
			expected: Config{Interface: "cellular", Strict: true},
		},
		{
			name:     "given env over file value, then env wins",
			envVars:  map[string]string{"LANEPIN_METRICS_ADDR": ":1234"},
			changed:  map[string]bool{},
			initial:  Config{MetricsAddr: ":9464"},
			expected: Config{MetricsAddr: ":1234"},
		},
		{
			name:    "given invalid duration, then error",
			envVars: map[string]string{"LANEPIN_POLL_INTERVAL": "often"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "given invalid int, then error",
			envVars: map[string]string{"LANEPIN_RETRIES": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "given invalid bool, then error",
			envVars: map[string]string{"LANEPIN_STRICT": "sometimes"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg)
		})
	}
}
