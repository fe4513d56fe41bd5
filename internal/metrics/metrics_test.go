package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.JobsAccepted.WithLabelValues("webpage").Inc()
	m.JobsAccepted.WithLabelValues("webpage").Inc()
	m.EnqueueFailures.Inc()
	m.DownloadsServed.Inc()
	m.SweepRequeues.Inc()
	m.ObserveHTTPRequest("GET", "/jobs/{job_id}", 200, 42*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.JobsAccepted.WithLabelValues("webpage")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.EnqueueFailures))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DownloadsServed))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SweepRequeues))
	require.Equal(t, 0.0, testutil.ToFloat64(m.WatchdogTimeouts))
	require.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration))
}

func TestNewIsolatedRegistries(t *testing.T) {
	t.Parallel()

	// Two instances must register cleanly against separate registries.
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())
	a.JobsRejected.Inc()
	require.Equal(t, 1.0, testutil.ToFloat64(a.JobsRejected))
	require.Equal(t, 0.0, testutil.ToFloat64(b.JobsRejected))
}
