package metrics

import (
	"errors"
	"testing"
	"time"

	stdprom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T) map[string]bool {
	families, err := stdprom.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestStoreMetrics(t *testing.T) {
	m := Store()
	require.Same(t, m, Store())

	m.ObserveOp("get", "test", time.Now(), nil)
	m.ObserveOp("put", "test", time.Now(), errors.New("disk full"))
	m.Acquire("db", "test")
	m.Release("db", "test")
	m.IncreaseReclaimed("iterator", "test")

	names := gather(t)
	for _, name := range []string{
		"tahani_store_op_latency_microseconds",
		"tahani_store_op_errors_total",
		"tahani_live_resources",
		"tahani_finalizer_reclaimed_total",
	} {
		require.True(t, names[name], name)
	}
}

func TestOpLatencyBucketsAscend(t *testing.T) {
	buckets := getOpLatencyBucket()
	require.NotEmpty(t, buckets)
	for i := 1; i < len(buckets); i++ {
		require.Less(t, buckets[i-1], buckets[i])
	}
}
