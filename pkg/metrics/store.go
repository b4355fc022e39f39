package metrics

import (
	"sync"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "tahani"

type StoreMetrics struct {
	OpLatency     *prometheus.Histogram
	OpErrors      *prometheus.Counter
	LiveResources *prometheus.Gauge
	Reclaimed     *prometheus.Counter
}

var (
	once  sync.Once
	store *StoreMetrics
)

// Store returns the process wide store metrics. The collectors register with
// the default prometheus registry on first use.
func Store() *StoreMetrics {
	once.Do(func() {
		store = newStoreMetrics()
	})
	return store
}

func newStoreMetrics() *StoreMetrics {
	return &StoreMetrics{
		OpLatency: prometheus.NewHistogramFrom(stdprom.HistogramOpts{
			Namespace: namespace,
			Name:      "store_op_latency_microseconds",
			Help:      "Store operation latency",
			Buckets:   getOpLatencyBucket(),
		}, []string{"op", "engine"}),
		OpErrors: prometheus.NewCounterFrom(stdprom.CounterOpts{
			Namespace: namespace,
			Name:      "store_op_errors_total",
			Help:      "Store operations that returned an error",
		}, []string{"op", "engine"}),
		LiveResources: prometheus.NewGaugeFrom(stdprom.GaugeOpts{
			Namespace: namespace,
			Name:      "live_resources",
			Help:      "Handles, batches, snapshots and iterators not yet released",
		}, []string{"kind", "engine"}),
		Reclaimed: prometheus.NewCounterFrom(stdprom.CounterOpts{
			Namespace: namespace,
			Name:      "finalizer_reclaimed_total",
			Help:      "Resources released by a finalizer instead of an explicit call",
		}, []string{"kind", "engine"}),
	}
}

// ObserveOp records one operation started at begin.
func (m *StoreMetrics) ObserveOp(op, engine string, begin time.Time, err error) {
	m.OpLatency.With("op", op, "engine", engine).Observe(float64(time.Since(begin).Microseconds()))
	if err != nil {
		m.OpErrors.With("op", op, "engine", engine).Add(1)
	}
}

func (m *StoreMetrics) Acquire(kind, engine string) {
	m.LiveResources.With("kind", kind, "engine", engine).Add(1)
}

func (m *StoreMetrics) Release(kind, engine string) {
	m.LiveResources.With("kind", kind, "engine", engine).Add(-1)
}

func (m *StoreMetrics) IncreaseReclaimed(kind, engine string) {
	m.Reclaimed.With("kind", kind, "engine", engine).Add(1)
}
