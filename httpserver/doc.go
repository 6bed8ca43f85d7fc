// Package httpserver is the status server behind `lanepin monitor`.
//
// It exposes the path monitor over HTTP:
//
//	/ping     always 200
//	/livez    liveness checks
//	/readyz   200 while the latest path snapshot is satisfied
//	/path     latest snapshot as JSON, 503 before the first one
//	/metrics  Prometheus exposition
//
// # Quick Start
//
//	monitor := netpath.NewMonitor()
//	_ = monitor.Start(nil)
//	defer monitor.Stop()
//
//	server := httpserver.New(
//	    httpserver.WithAddr(":9464"),
//	    httpserver.WithSource(monitor),
//	    httpserver.WithLogger(logger),
//	)
//	if err := server.ListenAndServe(ctx); err != nil {
//	    return err
//	}
//
// ListenAndServe returns after SIGINT, SIGTERM or ctx cancellation, once
// in-flight requests drained or ShutdownTimeout passed.
//
// Every response is wrapped in Response:
//
//	{"data": ..., "errors": [...], "message": "..."}
//
// Recovery and RequestID always wrap the handler. WithLogging adds one log
// entry per request; WithTelemetry adds a server span and lanepin.status.*
// metrics per request.
package httpserver
