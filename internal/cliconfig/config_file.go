package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig is the TOML form of Config. Durations are strings such as
// "15s"; pointers tell an explicit zero or false apart from an absent key.
//
//	interface = "cellular"
//	strict = true
//	timeout = "20s"
//	retries = 2
//	metrics_addr = ":9464"
//	expensive_interfaces = ["wwan*", "rmnet*"]
type FileConfig struct {
	Interface             string   `toml:"interface"`
	Strict                *bool    `toml:"strict"`
	Timeout               string   `toml:"timeout"`
	Retries               *int     `toml:"retries"`
	RateLimit             *float64 `toml:"rate_limit"`
	Breaker               *bool    `toml:"breaker"`
	UserAgent             string   `toml:"user_agent"`
	MetricsAddr           string   `toml:"metrics_addr"`
	PollInterval          string   `toml:"poll_interval"`
	ExpensiveInterfaces   []string `toml:"expensive_interfaces"`
	ConstrainedInterfaces []string `toml:"constrained_interfaces"`
	OTLPEndpoint          string   `toml:"otlp_endpoint"`
	LogLevel              string   `toml:"log_level"`
	Debug                 *bool    `toml:"debug"`
	JSON                  *bool    `toml:"json"`
}

// LoadFileConfig reads and parses a TOML config file. Unknown keys are an
// error so typos do not pass silently.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	f, err := os.Open(path)
	if err != nil {
		return fc, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.lanepin/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".lanepin", "config.toml")
	}
	return ""
}

// ApplyFileConfig copies file values into cfg, skipping flags in changed.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("interface", fc.Interface, &cfg.Interface)
	s.setString("user-agent", fc.UserAgent, &cfg.UserAgent)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("otlp-endpoint", fc.OTLPEndpoint, &cfg.OTLPEndpoint)

	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}

	s.setInt("retries", fc.Retries, &cfg.Retries)
	s.setFloat("rate-limit", fc.RateLimit, &cfg.RateLimit)

	s.setBool("strict", fc.Strict, &cfg.Strict)
	s.setBool("breaker", fc.Breaker, &cfg.Breaker)
	s.setBool("debug", fc.Debug, &cfg.Debug)
	s.setBool("json", fc.JSON, &cfg.JSON)

	s.setStrings("expensive", fc.ExpensiveInterfaces, &cfg.ExpensiveInterfaces)
	s.setStrings("constrained", fc.ConstrainedInterfaces, &cfg.ConstrainedInterfaces)

	return nil
}

// FileExists reports whether a file exists at p.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
