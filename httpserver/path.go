package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kroma-labs/lanepin/netpath"
)

// SnapshotSource provides the latest path snapshot. *netpath.Monitor
// satisfies it.
type SnapshotSource interface {
	Latest() (netpath.Snapshot, bool)
}

// ErrNoSnapshot is reported until the source has taken its first snapshot.
var ErrNoSnapshot = errors.New("no path snapshot yet")

// SnapshotCheck is a readiness check that passes while the latest
// snapshot is satisfied.
func SnapshotCheck(src SnapshotSource) HealthCheck {
	return func(context.Context) error {
		snap, ok := src.Latest()
		if !ok {
			return ErrNoSnapshot
		}
		if snap.Status != netpath.StatusSatisfied {
			return fmt.Errorf("path %s", snap.Status)
		}
		return nil
	}
}

// PathHandler serves the latest snapshot as JSON. It answers 503 until the
// first snapshot exists or when src is nil.
//
// Example response:
//
//	{
//	  "data": {
//	    "status": "satisfied",
//	    "available_interfaces": ["wifi", "cellular"],
//	    "uses_interface_class": {"wifi": true},
//	    "preferred": "wifi",
//	    "is_expensive": false,
//	    "is_constrained": false
//	  }
//	}
func PathHandler(src SnapshotSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var (
			snap netpath.Snapshot
			ok   bool
		)
		if src != nil {
			snap, ok = src.Latest()
		}
		if !ok {
			WriteError(w, http.StatusServiceUnavailable, ErrNoSnapshot.Error())
			return
		}
		WriteSuccess(w, http.StatusOK, snap, "")
	})
}

// Routes returns the status routes:
//
//	/ping     liveness without checks
//	/livez    liveness checks
//	/readyz   readiness checks, including the snapshot check
//	/path     latest path snapshot
//	/metrics  Prometheus exposition of g (nil uses the default gatherer)
func Routes(src SnapshotSource, health *HealthHandler, g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ping", health.PingHandler())
	mux.Handle("/livez", health.LiveHandler())
	mux.Handle("/readyz", health.ReadyHandler())
	mux.Handle("/path", PathHandler(src))
	mux.Handle("/metrics", PrometheusHandlerFor(g))
	return mux
}
