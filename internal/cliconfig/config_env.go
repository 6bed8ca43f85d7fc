package cliconfig

import "os"

// ApplyEnvConfig copies LANEPIN_* variables into cfg, skipping flags in
// changed. It runs after ApplyFileConfig so env overrides the file.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("interface", os.Getenv(EnvPrefix+"INTERFACE"), &cfg.Interface)
	s.setString("user-agent", os.Getenv(EnvPrefix+"USER_AGENT"), &cfg.UserAgent)
	s.setString("metrics-addr", os.Getenv(EnvPrefix+"METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)
	s.setString("otlp-endpoint", os.Getenv(EnvPrefix+"OTLP_ENDPOINT"), &cfg.OTLPEndpoint)

	if err := s.setDuration("timeout", os.Getenv(EnvPrefix+"TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv(EnvPrefix+"POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setIntFromString("retries", os.Getenv(EnvPrefix+"RETRIES"), &cfg.Retries); err != nil {
		return err
	}
	if err := s.setFloatFromString("rate-limit", os.Getenv(EnvPrefix+"RATE_LIMIT"), &cfg.RateLimit); err != nil {
		return err
	}
	if err := s.setBoolFromString("strict", os.Getenv(EnvPrefix+"STRICT"), &cfg.Strict); err != nil {
		return err
	}
	if err := s.setBoolFromString("breaker", os.Getenv(EnvPrefix+"BREAKER"), &cfg.Breaker); err != nil {
		return err
	}
	if err := s.setBoolFromString("debug", os.Getenv(EnvPrefix+"DEBUG"), &cfg.Debug); err != nil {
		return err
	}
	if err := s.setBoolFromString("json", os.Getenv(EnvPrefix+"JSON"), &cfg.JSON); err != nil {
		return err
	}

	s.setStrings("expensive", splitList(os.Getenv(EnvPrefix+"EXPENSIVE_INTERFACES")), &cfg.ExpensiveInterfaces)
	s.setStrings("constrained", splitList(os.Getenv(EnvPrefix+"CONSTRAINED_INTERFACES")), &cfg.ConstrainedInterfaces)

	return nil
}
