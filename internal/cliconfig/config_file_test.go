package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	three := 3
	rps := 2.5

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "given file values, then applied",
			fileConfig: FileConfig{
				Interface:           "wifi",
				Strict:              &trueVal,
				Timeout:             "20s",
				Retries:             &three,
				RateLimit:           &rps,
				MetricsAddr:         ":9000",
				PollInterval:        "2s",
				ExpensiveInterfaces: []string{"wwan*"},
			},
			changed: map[string]bool{},
			expected: Config{
				Interface:           "wifi",
				Strict:              true,
				Timeout:             20 * time.Second,
				Retries:             3,
				RateLimit:           2.5,
				MetricsAddr:         ":9000",
				PollInterval:        2 * time.Second,
				ExpensiveInterfaces: []string{"wwan*"},
			},
		},
		{
			name:       "given changed flag, then file value ignored",
			fileConfig: FileConfig{Interface: "wifi", Retries: &three},
			changed:    map[string]bool{"interface": true},
			initial:    Config{Interface: "wired"},
			expected:   Config{Interface: "wired", Retries: 3},
		},
		{
			name:       "given empty file, then config unchanged",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    DefaultConfig(),
			expected:   DefaultConfig(),
		},
		{
			name:       "given invalid duration, then error",
			fileConfig: FileConfig{Timeout: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, fc FileConfig)
		wantErr bool
	}{
		{
			name: "given valid toml, then parsed",
			content: `
interface = "cellular"
strict = true
timeout = "30s"
retries = 2
rate_limit = 1.5
metrics_addr = "127.0.0.1:9464"
expensive_interfaces = ["wwan*", "rmnet*"]
log_level = "debug"
`,
			check: func(t *testing.T, fc FileConfig) {
				assert.Equal(t, "cellular", fc.Interface)
				require.NotNil(t, fc.Strict)
				assert.True(t, *fc.Strict)
				assert.Equal(t, "30s", fc.Timeout)
				require.NotNil(t, fc.Retries)
				assert.Equal(t, 2, *fc.Retries)
				require.NotNil(t, fc.RateLimit)
				assert.InDelta(t, 1.5, *fc.RateLimit, 1e-9)
				assert.Equal(t, []string{"wwan*", "rmnet*"}, fc.ExpensiveInterfaces)
				assert.Nil(t, fc.Breaker)
			},
		},
		{
			name:    "given unknown key, then error",
			content: `interfase = "wifi"`,
			wantErr: true,
		},
		{
			name:    "given malformed toml, then error",
			content: `interface = `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			fc, err := LoadFileConfig(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, fc)
		})
	}

	_, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, filepath.Join("/home/tester", ".lanepin", "config.toml"), DefaultConfigPath())
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")
	assert.False(t, FileExists(path))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	assert.True(t, FileExists(path))
}
