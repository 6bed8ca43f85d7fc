package httpserver

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"
)

// HealthCheck reports whether one dependency is healthy. It returns nil
// when healthy, otherwise an error describing the problem.
type HealthCheck func(ctx context.Context) error

// CheckResult is the outcome of one check in a health response.
type CheckResult struct {
	Status              string `json:"status"`
	Latency             string `json:"latency"`
	Message             string `json:"message,omitempty"`
	LastChecked         string `json:"last_checked"`
	ConsecutiveSuccess  int    `json:"consecutive_successes,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty"`
}

// HealthResponse is the payload of /livez and /readyz.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime,omitempty"`
	Hostname  string                 `json:"hostname,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// PingResponse is the payload of /ping.
type PingResponse struct {
	Status string `json:"status"`
}

type checkState struct {
	check               HealthCheck
	consecutiveSuccess  int
	consecutiveFailures int
}

// HealthHandler serves /ping, /livez and /readyz.
//
// The server created by New already registers a "path" readiness check
// when it has a snapshot source:
//
//	health := httpserver.NewHealthHandler(httpserver.WithVersion("1.0.0"))
//	health.AddReadinessCheck("path", httpserver.SnapshotCheck(monitor))
//
//	mux.Handle("/ping", health.PingHandler())
//	mux.Handle("/livez", health.LiveHandler())
//	mux.Handle("/readyz", health.ReadyHandler())
type HealthHandler struct {
	serviceName string
	version     string
	startTime   time.Time
	hostname    string

	mu              sync.Mutex
	livenessChecks  map[string]*checkState
	readinessChecks map[string]*checkState
}

// HealthOption configures a HealthHandler.
type HealthOption func(*HealthHandler)

// withHealthServiceName is applied by New.
func withHealthServiceName(name string) HealthOption {
	return func(h *HealthHandler) {
		h.serviceName = name
	}
}

// WithVersion sets the version reported in health responses.
func WithVersion(version string) HealthOption {
	return func(h *HealthHandler) {
		if version != "" {
			h.version = version
		}
	}
}

// NewHealthHandler creates a HealthHandler with no checks.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	hostname, _ := os.Hostname()

	h := &HealthHandler{
		serviceName:     "lanepin",
		version:         "dev",
		startTime:       time.Now(),
		hostname:        hostname,
		livenessChecks:  make(map[string]*checkState),
		readinessChecks: make(map[string]*checkState),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddLivenessCheck registers a check for /livez. A failing liveness check
// means the process should be restarted.
func (h *HealthHandler) AddLivenessCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.livenessChecks[name] = &checkState{check: check}
}

// AddReadinessCheck registers a check for /readyz. A failing readiness
// check means the path is not usable right now.
func (h *HealthHandler) AddReadinessCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readinessChecks[name] = &checkState{check: check}
}

// PingHandler always answers 200 with "pong" and runs no checks.
func (h *HealthHandler) PingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, Response[PingResponse]{
			Data: PingResponse{Status: "pong"},
		})
	})
}

// LiveHandler answers 200 when every liveness check passes, 503 otherwise.
func (h *HealthHandler) LiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, h.livenessChecks)
	})
}

// ReadyHandler answers 200 when every readiness check passes, 503 otherwise.
func (h *HealthHandler) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, h.readinessChecks)
	})
}

func (h *HealthHandler) serve(w http.ResponseWriter, r *http.Request, checks map[string]*checkState) {
	now := time.Now()

	h.mu.Lock()
	results := make(map[string]CheckResult, len(checks))
	var errs []Error
	for name, state := range checks {
		start := time.Now()
		err := state.check(r.Context())
		result := CheckResult{
			Latency:     time.Since(start).String(),
			LastChecked: now.Format(time.RFC3339),
		}
		if err != nil {
			state.consecutiveFailures++
			state.consecutiveSuccess = 0
			result.Status = "fail"
			result.Message = err.Error()
			result.ConsecutiveFailures = state.consecutiveFailures
			errs = append(errs, Error{Field: name, Message: err.Error()})
		} else {
			state.consecutiveSuccess++
			state.consecutiveFailures = 0
			result.Status = "ok"
			result.ConsecutiveSuccess = state.consecutiveSuccess
		}
		results[name] = result
	}
	h.mu.Unlock()

	status, code, message := "ok", http.StatusOK, "all checks passed"
	if len(errs) > 0 {
		status, code, message = "fail", http.StatusServiceUnavailable, "one or more checks failed"
	}

	WriteJSON(w, code, Response[HealthResponse]{
		Data: HealthResponse{
			Status:    status,
			Service:   h.serviceName,
			Version:   h.version,
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
			Hostname:  h.hostname,
			Timestamp: now.Format(time.RFC3339),
			Checks:    results,
		},
		Errors:  errs,
		Message: message,
	})
}
