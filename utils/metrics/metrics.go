// Package metrics groups the Prometheus instruments the bot's
// subsystems report into. Every instrument registers against a private
// registry owned by Metrics, so independent instances never collide
// and tests can assert on isolated registries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// Metrics owns the registry and the per-subsystem instrument groups.
type Metrics struct {
	registry *prometheus.Registry

	Mempool  *MempoolMetrics
	Strategy *StrategyMetrics
	Bundle   *BundleMetrics
	System   *SystemMetrics
}

// New builds all instrument groups under the given namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	return &Metrics{
		registry: registry,
		Mempool:  NewMempoolMetrics(registry, namespace),
		Strategy: NewStrategyMetrics(registry, namespace),
		Bundle:   NewBundleMetrics(registry, namespace),
		System:   NewSystemMetrics(registry, namespace),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather snapshots every registered metric family.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}

// LogSnapshot logs every nonzero counter and gauge as a debug field,
// so a headless run leaves a readable trail without a scraper.
func (m *Metrics) LogSnapshot(logger *zap.Logger) {
	families, err := m.Gather()
	if err != nil {
		logger.Warn("Failed to gather metrics", zap.Error(err))
		return
	}

	var fields []zap.Field
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var value float64
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				value = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				value = metric.GetGauge().GetValue()
			default:
				continue
			}
			if value != 0 {
				fields = append(fields, zap.Float64(family.GetName(), value))
			}
		}
	}
	if len(fields) == 0 {
		return
	}
	logger.Debug("Metrics snapshot", fields...)
}

// MempoolMetrics counts pending-transaction intake.
type MempoolMetrics struct {
	Seen        prometheus.Counter
	Decoded     prometheus.Counter
	Dropped     prometheus.Counter
	Duplicates  prometheus.Counter
	QueueDepth  prometheus.Gauge
	ProcessTime prometheus.Histogram
	GasPrice    prometheus.Histogram
}

func NewMempoolMetrics(reg prometheus.Registerer, namespace string) *MempoolMetrics {
	factory := promauto.With(reg)
	return &MempoolMetrics{
		Seen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "transactions_seen_total",
			Help:      "Total pending transactions observed on the feed",
		}),
		Decoded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "swaps_decoded_total",
			Help:      "Total transactions decoded as router swaps",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "transactions_dropped_total",
			Help:      "Total transactions dropped before processing",
		}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "duplicate_transactions_total",
			Help:      "Total transactions already seen by the index",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "queue_depth",
			Help:      "Transactions waiting for a worker",
		}),
		ProcessTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "process_time_seconds",
			Help:      "Time taken to process one transaction",
			Buckets:   prometheus.DefBuckets,
		}),
		GasPrice: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "gas_price_wei",
			Help:      "Gas price distribution of observed transactions",
			Buckets:   prometheus.ExponentialBuckets(1e9, 2, 15),
		}),
	}
}

// StrategyMetrics counts detector scans and their outcomes.
type StrategyMetrics struct {
	Scans         prometheus.Counter
	Opportunities prometheus.Counter
	Rejected      prometheus.Counter
	ProfitWei     prometheus.Counter
	SpreadBps     prometheus.Histogram
	DetectTime    prometheus.Histogram
}

func NewStrategyMetrics(reg prometheus.Registerer, namespace string) *StrategyMetrics {
	factory := promauto.With(reg)
	return &StrategyMetrics{
		Scans: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "scans_total",
			Help:      "Total pair scans performed by the detector",
		}),
		Opportunities: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "opportunities_total",
			Help:      "Total profitable opportunities detected",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "rejected_total",
			Help:      "Total candidates discarded by simulation or thresholds",
		}),
		ProfitWei: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "profit_wei_total",
			Help:      "Cumulative expected profit of accepted opportunities",
		}),
		SpreadBps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "spread_bps",
			Help:      "Cross-venue spread of scanned pairs in basis points",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		DetectTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "detect_time_seconds",
			Help:      "Time taken for one detection pass",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// BundleMetrics counts relay submissions.
type BundleMetrics struct {
	Built         prometheus.Counter
	Submitted     prometheus.Counter
	Failed        prometheus.Counter
	SubmitLatency prometheus.Histogram
	WindowSize    prometheus.Histogram
}

func NewBundleMetrics(reg prometheus.Registerer, namespace string) *BundleMetrics {
	factory := promauto.With(reg)
	return &BundleMetrics{
		Built: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bundle",
			Name:      "transactions_built_total",
			Help:      "Total arbitrage transactions built and signed",
		}),
		Submitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bundle",
			Name:      "submitted_total",
			Help:      "Total bundles accepted by the relay",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bundle",
			Name:      "failures_total",
			Help:      "Total bundle submissions rejected or errored",
		}),
		SubmitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bundle",
			Name:      "submit_latency_seconds",
			Help:      "Relay round-trip time per submission",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		WindowSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bundle",
			Name:      "window_size_blocks",
			Help:      "Target blocks covered per submission window",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}
}

// SystemMetrics tracks runtime health of the process.
type SystemMetrics struct {
	Goroutines  prometheus.Gauge
	HeapAlloc   prometheus.Gauge
	HeapObjects prometheus.Gauge
	SysBytes    prometheus.Gauge
	GCPause     prometheus.Histogram
}

func NewSystemMetrics(reg prometheus.Registerer, namespace string) *SystemMetrics {
	factory := promauto.With(reg)
	return &SystemMetrics{
		Goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		}),
		HeapAlloc: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "heap_alloc_bytes",
			Help:      "Bytes of allocated heap objects",
		}),
		HeapObjects: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "heap_objects",
			Help:      "Current number of live heap objects",
		}),
		SysBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "sys_bytes",
			Help:      "Total bytes obtained from the OS",
		}),
		GCPause: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "gc_pause_seconds",
			Help:      "Stop-the-world pause durations",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
}
