package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kroma-labs/lanepin/lane"
	"github.com/kroma-labs/lanepin/pinnedhttp"
)

func newRequestCmd(a *app) *cobra.Command {
	var (
		method      string
		headers     []string
		data        string
		defaultLane bool
	)

	cmd := &cobra.Command{
		Use:   "request URL|PRESET",
		Short: "Send one request over the pinned lane",
		Long: `Send one request over the pinned lane and report which interface class it
actually used. PRESET is an index or name prefix from "lanepin targets".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := buildTarget(method, lane.ResolvePreset(args[0]), headers, data)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := a.telemetry(ctx, nil)
			if err != nil {
				return err
			}
			defer func() { _ = p.Shutdown(context.WithoutCancel(ctx)) }()

			runner := a.newRunner(p)
			var res lane.Result
			if defaultLane {
				res = runner.Default(ctx, t)
			} else {
				res = runner.Pinned(ctx, t)
			}

			if err := writeResult(a.stdout, res, a.cfg.JSON); err != nil {
				return err
			}
			return res.Err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&method, "method", "X", "", "request method (default GET, or POST with -d)")
	f.StringArrayVarP(&headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	f.StringVarP(&data, "data", "d", "", "request body")
	f.BoolVar(&defaultLane, "default-lane", false, "let the OS route the request instead of pinning it")
	return cmd
}

// buildTarget turns curl-style flags into a Target. Validation of the URL
// itself is left to the lanes so both report it the same way.
func buildTarget(method, rawURL string, headers []string, data string) (pinnedhttp.Target, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
		if data != "" {
			method = http.MethodPost
		}
	}

	var header map[string]string
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return pinnedhttp.Target{}, fmt.Errorf("header %q: want \"Name: value\"", h)
		}
		if header == nil {
			header = make(map[string]string, len(headers))
		}
		header[name] = strings.TrimSpace(value)
	}

	var body []byte
	if data != "" {
		body = []byte(data)
	}
	return pinnedhttp.NewTarget(method, rawURL, header, body), nil
}
