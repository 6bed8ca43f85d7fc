package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kroma-labs/lanepin/httpserver"
	"github.com/kroma-labs/lanepin/internal/cliconfig"
	"github.com/kroma-labs/lanepin/netpath"
)

func newMonitorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print a JSON line for every network path change",
		Long: `Watch the network path and print one JSON line per change, starting with
the current state. With --metrics-addr the path is also served over HTTP:
/path, /readyz and Prometheus /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.monitor(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "serve /path, /readyz and /metrics on this address (e.g. :9464)")
	f.DurationVar(&a.cfg.PollInterval, "poll", a.cfg.PollInterval, "poll interfaces at this interval instead of using OS notifications")
	f.StringSliceVar(&a.cfg.ExpensiveInterfaces, "expensive", a.cfg.ExpensiveInterfaces, "interface name globs treated as expensive")
	f.StringSliceVar(&a.cfg.ConstrainedInterfaces, "constrained", a.cfg.ConstrainedInterfaces, "interface name globs treated as constrained")
	return cmd
}

func (a *app) monitor(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p, err := a.telemetry(ctx, reg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Shutdown(context.WithoutCancel(ctx)) }()

	recorder, err := netpath.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}

	opts := []netpath.Option{
		netpath.WithLogger(a.log),
		netpath.WithMeterProvider(p.MeterProvider),
		netpath.WithPolicy(policyOf(a.cfg)),
	}
	if a.cfg.PollInterval > 0 {
		opts = append(opts, netpath.WithWatcher(netpath.NewPollWatcher(a.cfg.PollInterval)))
	}
	m := netpath.NewMonitor(opts...)

	out := newSnapshotWriter(a.stdout)
	if err := m.Start(func(s netpath.Snapshot) {
		recorder.Record(s)
		if err := out.write(s); err != nil {
			a.log.Warn().Err(err).Msg("write snapshot")
		}
	}); err != nil {
		return err
	}
	defer m.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.MetricsAddr != "" {
		var health *httpserver.HealthHandler
		srv := httpserver.New(
			httpserver.WithAddr(a.cfg.MetricsAddr),
			httpserver.WithSource(m),
			httpserver.WithGatherer(reg),
			httpserver.WithLogger(a.log),
			httpserver.WithHealth(&health, version()),
			httpserver.WithTelemetry(p.TracerProvider, p.MeterProvider),
			httpserver.WithLogging(httpserver.LoggerConfig{
				Logger:    a.log,
				SkipPaths: []string{"/ping", "/livez", "/readyz", "/metrics"},
			}),
		)
		health.AddLivenessCheck("monitor", func(context.Context) error { return gctx.Err() })
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}
	if a.cfgFile != "" {
		g.Go(func() error {
			err := cliconfig.WatchFile(gctx, a.cfgFile, 0, a.log, func(fc cliconfig.FileConfig) {
				a.reloadPolicy(m, fc)
			})
			if err != nil {
				a.log.Warn().Err(err).Msg("config reload disabled")
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

func policyOf(cfg cliconfig.Config) netpath.Policy {
	return netpath.Policy{
		ExpensiveInterfaces:   cfg.ExpensiveInterfaces,
		ConstrainedInterfaces: cfg.ConstrainedInterfaces,
	}
}

// reloadPolicy applies an edited config file to the running monitor.
// Flags and environment still take precedence over the file. Only the
// interface policy is live; other settings need a restart.
func (a *app) reloadPolicy(m *netpath.Monitor, fc cliconfig.FileConfig) {
	next := a.cfg
	if err := cliconfig.ApplyFileConfig(&next, fc, a.changed); err != nil {
		a.log.Warn().Err(err).Msg("config reload failed")
		return
	}
	if err := cliconfig.ApplyEnvConfig(&next, a.changed); err != nil {
		a.log.Warn().Err(err).Msg("config reload failed")
		return
	}
	a.log.Info().
		Strs("expensive", next.ExpensiveInterfaces).
		Strs("constrained", next.ConstrainedInterfaces).
		Msg("interface policy reloaded")
	m.SetPolicy(policyOf(next))
}

// snapshotLine is one line of `lanepin monitor` output.
type snapshotLine struct {
	Time time.Time `json:"time"`
	netpath.Snapshot
}

// snapshotWriter serializes snapshot lines; the monitor and its replay can
// call back from different goroutines across restarts.
type snapshotWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newSnapshotWriter(w io.Writer) *snapshotWriter {
	return &snapshotWriter{enc: json.NewEncoder(w)}
}

func (w *snapshotWriter) write(s netpath.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(snapshotLine{Time: time.Now().UTC(), Snapshot: s})
}
