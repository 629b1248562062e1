package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "weft"

// Metrics groups the collectors of the editing core.
type Metrics struct {
	snapshots     prometheus.Counter
	historyOps    *prometheus.CounterVec
	historyDepth  *prometheus.GaugeVec
	operators     *prometheus.CounterVec
	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runDuration   prometheus.Histogram
	events        *prometheus.CounterVec
	malformed     prometheus.Counter
	activeStreams prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses a private registry (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "history", Name: "snapshots_total",
			Help: "History snapshots recorded.",
		}),
		historyOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "history", Name: "operations_total",
			Help: "Undo and redo operations applied.",
		}, []string{"op"}),
		historyDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "history", Name: "depth",
			Help: "Entries on the undo and redo stacks of the last changed session.",
		}, []string{"stack"}),
		operators: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operators_total",
			Help: "Structural operators applied.",
		}, []string{"operator"}),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "runs", Name: "started_total",
			Help: "Workflow runs started.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "runs", Name: "finished_total",
			Help: "Workflow runs that reached a terminal status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "runs", Name: "duration_seconds",
			Help:    "Duration of finished runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "events", Name: "total",
			Help: "Execution events reconciled, by log level.",
		}, []string{"level"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "events", Name: "malformed_total",
			Help: "Inbound messages that could not be decoded.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "streams_active",
			Help: "Open engine streams.",
		}),
	}
	reg.MustRegister(
		m.snapshots, m.historyOps, m.historyDepth, m.operators,
		m.runsStarted, m.runsFinished, m.runDuration,
		m.events, m.malformed, m.activeStreams,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Handler serves the registry the metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// SnapshotRecorded counts a history snapshot.
func (m *Metrics) SnapshotRecorded() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

// HistoryApplied counts an undo or redo ("undo"/"redo").
func (m *Metrics) HistoryApplied(op string) {
	if m == nil {
		return
	}
	m.historyOps.WithLabelValues(op).Inc()
}

// HistoryDepth records the current stack sizes.
func (m *Metrics) HistoryDepth(undo, redo int) {
	if m == nil {
		return
	}
	m.historyDepth.WithLabelValues("undo").Set(float64(undo))
	m.historyDepth.WithLabelValues("redo").Set(float64(redo))
}

// OperatorApplied counts a structural operator.
func (m *Metrics) OperatorApplied(name string) {
	if m == nil {
		return
	}
	m.operators.WithLabelValues(name).Inc()
}

// RunStarted counts a new run and an open stream.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
	m.activeStreams.Inc()
}

// RunFinished counts a terminal run.
func (m *Metrics) RunFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsFinished.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// StreamClosed decrements the open stream gauge.
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}

// EventReconciled counts an event by log level.
func (m *Metrics) EventReconciled(level string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(level).Inc()
}

// EventMalformed counts an undecodable message.
func (m *Metrics) EventMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}
