package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusHandler serves the default Prometheus registry.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// PrometheusHandlerFor serves g in the Prometheus text format. A nil g
// serves the default registry.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	mux.Handle("/metrics", httpserver.PrometheusHandlerFor(reg))
func PrometheusHandlerFor(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return PrometheusHandler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
