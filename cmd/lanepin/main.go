package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kroma-labs/lanepin/internal/cliconfig"
	"github.com/kroma-labs/lanepin/internal/telemetry"
	"github.com/kroma-labs/lanepin/lane"
	"github.com/kroma-labs/lanepin/pinnedhttp"
)

const longHelp = `Send HTTP requests over one class of network interface and watch which
interfaces the network path is using.

The pinned lane binds its socket to an interface of the chosen class (cellular
by default) so the request cannot silently fall back to Wi-Fi. The default
lane lets the operating system route the same request, which makes the two
easy to compare.

Settings come from flags, LANEPIN_* environment variables and
~/.lanepin/config.toml, in that order of precedence.`

var exampleUsage = strings.TrimSpace(`
  lanepin request https://httpbin.org/get --interface cellular
  lanepin request 3 --strict --retries 2 --json
  lanepin compare https://api.github.com/zen
  lanepin monitor --metrics-addr :9464
  lanepin targets
`)

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lanepin: %v\n", err)
		os.Exit(1)
	}
}

// app carries the resolved configuration into every subcommand.
type app struct {
	cfg     cliconfig.Config
	cfgPath string

	// cfgFile is the config file that was loaded, if any. changed holds the
	// flags set on the command line; both are kept for reloads.
	cfgFile string
	changed map[string]bool

	log    zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return newApp(stdout, stderr).rootCmd()
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		cfg:    cliconfig.DefaultConfig(),
		log:    cliconfig.NewLogger(stderr, zerolog.InfoLevel),
		stdout: stdout,
		stderr: stderr,
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lanepin",
		Short:         "Pin HTTP requests to a network interface class",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", version(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.lanepin/config.toml)")
	pf.StringVarP(&a.cfg.Interface, "interface", "i", a.cfg.Interface, "interface class for the pinned lane (cellular, wifi, wired, other)")
	pf.BoolVar(&a.cfg.Strict, "strict", a.cfg.Strict, "fail when the connection lands on another interface class")
	pf.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "per-request timeout (0 waits forever on the pinned lane)")
	pf.IntVar(&a.cfg.Retries, "retries", a.cfg.Retries, "retries on connection errors and 429/502/503/504")
	pf.Float64Var(&a.cfg.RateLimit, "rate-limit", a.cfg.RateLimit, "maximum requests per second (0 disables)")
	pf.BoolVar(&a.cfg.Breaker, "breaker", a.cfg.Breaker, "enable a circuit breaker per lane")
	pf.StringVar(&a.cfg.UserAgent, "user-agent", a.cfg.UserAgent, "User-Agent sent when no -H overrides it")
	pf.StringVar(&a.cfg.OTLPEndpoint, "otlp-endpoint", a.cfg.OTLPEndpoint, "export traces over OTLP/gRPC to this endpoint")
	pf.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")
	pf.BoolVar(&a.cfg.Debug, "debug", a.cfg.Debug, "debug logging, including curl equivalents of pinned requests")
	pf.BoolVar(&a.cfg.JSON, "json", a.cfg.JSON, "print results as JSON")

	root.AddCommand(
		newRequestCmd(a),
		newCompareCmd(a),
		newMonitorCmd(a),
		newTargetsCmd(a),
	)
	return root
}

// resolve layers file and environment settings under explicitly set flags.
func (a *app) resolve(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	switch {
	case cfgFile != "" && cliconfig.FileExists(cfgFile):
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
		a.cfgFile = cfgFile
	case a.cfgPath != "":
		return fmt.Errorf("config file %s not found", a.cfgPath)
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	a.changed = changed
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	level, _ := a.cfg.Level()
	a.log = cliconfig.NewLogger(a.stderr, level)
	a.log.Debug().Interface("config", a.cfg).Msg("configuration")
	return nil
}

// telemetry sets up OTel with metrics going to reg. A nil reg keeps
// metrics in a private registry nobody scrapes.
func (a *app) telemetry(ctx context.Context, reg prometheus.Registerer) (*telemetry.Providers, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "lanepin",
		ServiceVersion: version(),
		Registerer:     reg,
		OTLPEndpoint:   a.cfg.OTLPEndpoint,
	})
}

func (a *app) newRunner(p *telemetry.Providers) *lane.Runner {
	class, _ := a.cfg.InterfaceClass()

	opts := []lane.Option{
		lane.WithInterface(class),
		lane.WithLogger(a.log),
		lane.WithTracerProvider(p.TracerProvider),
		lane.WithMeterProvider(p.MeterProvider),
		lane.WithPinnedOptions(
			pinnedhttp.WithStrictInterface(a.cfg.Strict),
			pinnedhttp.WithTimeout(a.cfg.Timeout),
			pinnedhttp.WithUserAgent(a.cfg.UserAgent),
			pinnedhttp.WithDebug(a.cfg.Debug),
		),
	}
	if a.cfg.Timeout > 0 {
		opts = append(opts, lane.WithHTTPClient(&http.Client{Timeout: a.cfg.Timeout}))
	}
	if a.cfg.Retries > 0 {
		rc := lane.DefaultRetryConfig()
		rc.MaxRetries = uint(a.cfg.Retries)
		opts = append(opts, lane.WithRetryConfig(rc))
	}
	if a.cfg.Breaker {
		bc := lane.DefaultBreakerConfig()
		bc.OnStateChange = func(l lane.Lane, from, to gobreaker.State) {
			a.log.Warn().
				Stringer("lane", l).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		}
		opts = append(opts, lane.WithBreakerConfig(bc))
	}
	if a.cfg.RateLimit > 0 {
		opts = append(opts, lane.WithRateLimit(lane.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimit,
			Burst:             1,
			WaitOnLimit:       true,
		}))
	}
	return lane.NewRunner(opts...)
}
