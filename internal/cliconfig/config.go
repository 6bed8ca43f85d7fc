// Package cliconfig resolves lanepin CLI settings from defaults, the TOML
// config file, LANEPIN_* environment variables and flags. Later sources
// win: flags > env > file > defaults.
package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/lanepin/netpath"
)

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "LANEPIN_"

// Config holds CLI configuration for lanepin.
type Config struct {
	// Interface is the class the pinned lane uses, e.g. "cellular".
	Interface string
	Strict    bool

	// Timeout bounds one pinned request. Zero means no deadline.
	Timeout time.Duration
	Retries int

	// RateLimit caps lane requests per second. Zero disables the limiter.
	RateLimit float64
	Breaker   bool

	UserAgent string

	// MetricsAddr is where `monitor` serves its status endpoint. Empty
	// disables the server.
	MetricsAddr string

	// PollInterval makes `monitor` poll instead of using OS notifications.
	PollInterval time.Duration

	ExpensiveInterfaces   []string
	ConstrainedInterfaces []string

	// OTLPEndpoint enables trace export over OTLP/gRPC, e.g. "localhost:4317".
	OTLPEndpoint string

	LogLevel string
	Debug    bool
	JSON     bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Interface:   netpath.Cellular.String(),
		Timeout:     15 * time.Second,
		UserAgent:   "lanepin/1.0",
		MetricsAddr: "",
		LogLevel:    zerolog.InfoLevel.String(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.InterfaceClass(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	return nil
}

// InterfaceClass parses Interface. Unknown cannot be pinned.
func (c *Config) InterfaceClass() (netpath.InterfaceClass, error) {
	class, err := netpath.ParseInterfaceClass(c.Interface)
	if err != nil {
		return netpath.Unknown, fmt.Errorf("interface: %w", err)
	}
	if class == netpath.Unknown {
		return netpath.Unknown, fmt.Errorf("interface: a class is required (cellular, wifi, wired, other)")
	}
	return class, nil
}

// Level parses LogLevel. Debug forces debug level.
func (c *Config) Level() (zerolog.Level, error) {
	if c.Debug {
		return zerolog.DebugLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// configSetter applies a value only when its flag was not set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setFloat(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString accepts strconv.ParseBool spellings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}

// splitList splits a comma separated env value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
