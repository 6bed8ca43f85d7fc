package netpath

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder mirrors the latest Snapshot into Prometheus gauges.
// Pass Record as (or call it from) a Monitor callback.
//
// Exported series:
//
//	lanepin_path_status                      0 unsatisfied, 1 satisfied, 2 requiresConnection
//	lanepin_path_interface_available{class}  1 when the class is available
//	lanepin_path_interface_in_use{class}     1 when the path routes over the class
//	lanepin_path_expensive                   1 when the path is expensive
//	lanepin_path_constrained                 1 when the path is constrained
type PrometheusRecorder struct {
	status      prometheus.Gauge
	available   *prometheus.GaugeVec
	inUse       *prometheus.GaugeVec
	expensive   prometheus.Gauge
	constrained prometheus.Gauge
}

// NewPrometheusRecorder creates the gauges and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &PrometheusRecorder{
		status: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lanepin",
			Subsystem: "path",
			Name:      "status",
			Help:      "Network path status (0 unsatisfied, 1 satisfied, 2 requiresConnection).",
		}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lanepin",
			Subsystem: "path",
			Name:      "interface_available",
			Help:      "Whether an interface class is available on the path.",
		}, []string{"class"}),
		inUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lanepin",
			Subsystem: "path",
			Name:      "interface_in_use",
			Help:      "Whether the path currently routes over an interface class.",
		}, []string{"class"}),
		expensive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lanepin",
			Subsystem: "path",
			Name:      "expensive",
			Help:      "Whether the current path is expensive.",
		}),
		constrained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lanepin",
			Subsystem: "path",
			Name:      "constrained",
			Help:      "Whether the current path is constrained.",
		}),
	}

	for _, c := range []prometheus.Collector{r.status, r.available, r.inUse, r.expensive, r.constrained} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Record updates every gauge from snap.
func (r *PrometheusRecorder) Record(snap Snapshot) {
	r.status.Set(float64(snap.Status))
	for _, c := range Classes {
		r.available.WithLabelValues(c.String()).Set(boolGauge(snap.HasInterfaceClass(c)))
		r.inUse.WithLabelValues(c.String()).Set(boolGauge(snap.UsesInterfaceClass(c)))
	}
	r.expensive.Set(boolGauge(snap.IsExpensive))
	r.constrained.Set(boolGauge(snap.IsConstrained))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
