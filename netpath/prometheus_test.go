package netpath

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	snap := BuildSnapshot([]Interface{
		iface("wlan0", WiFi, true, false, 0, "192.168.1.10"),
		iface("wwan0", Cellular, true, true, 100, "10.64.1.2"),
	}, Policy{ConstrainedInterfaces: []string{"wwan*"}})

	rec.Record(snap)

	assert.Equal(t, float64(StatusSatisfied), testutil.ToFloat64(rec.status))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.available.WithLabelValues("wifi")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.available.WithLabelValues("cellular")))
	assert.Equal(t, 0.0, testutil.ToFloat64(rec.available.WithLabelValues("wired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.inUse.WithLabelValues("cellular")))
	assert.Equal(t, 0.0, testutil.ToFloat64(rec.inUse.WithLabelValues("wifi")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.expensive))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.constrained))

	rec.Record(BuildSnapshot(nil, Policy{}))
	assert.Equal(t, float64(StatusUnsatisfied), testutil.ToFloat64(rec.status))
	assert.Equal(t, 0.0, testutil.ToFloat64(rec.inUse.WithLabelValues("cellular")))
}

func TestNewPrometheusRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err)
}
