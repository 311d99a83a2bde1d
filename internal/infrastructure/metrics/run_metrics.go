// Package metrics exports report run statistics in the Prometheus text format.
package metrics

import (
	"fmt"
	"sync"

	"github.com/franchise/kpireport/internal/application/report"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Ensure RunMetrics implements report.RunRecorder
var _ report.RunRecorder = (*RunMetrics)(nil)

const namespace = "kpireport"

// RunMetrics records the outcome of report runs on a private registry.
// When a textfile path is set, every Record rewrites it for the node-exporter
// textfile collector.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type RunMetrics struct {
	mu           sync.Mutex
	textfilePath string
	registry     *prometheus.Registry

	runsTotal      prometheus.Counter
	lastRun        prometheus.Gauge
	inputFiles     prometheus.Gauge
	lineItems      prometheus.Gauge
	droppedRows    prometheus.Gauge
	stores         prometheus.Gauge
	renderDuration prometheus.Gauge
	artifactBytes  *prometheus.GaugeVec
	storeRevenue   *prometheus.GaugeVec
	storeOrders    *prometheus.GaugeVec
}

// NewRunMetrics creates RunMetrics. An empty textfilePath disables file export.
func NewRunMetrics(textfilePath string) *RunMetrics {
	m := &RunMetrics{
		textfilePath: textfilePath,
		registry:     prometheus.NewRegistry(),
	}
	m.initMetrics()
	return m
}

func (m *RunMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Number of completed report runs.",
	})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed report run.",
	})
	m.inputFiles = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "input_files",
		Help:      "CSV files read by the last run.",
	})
	m.lineItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "line_items_loaded",
		Help:      "Line items loaded by the last run.",
	})
	m.droppedRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rows_dropped",
		Help:      "Rows dropped for an unparseable date in the last run.",
	})
	m.stores = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stores",
		Help:      "Stores reported by the last run.",
	})
	m.renderDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "render_duration_seconds",
		Help:      "Time spent rendering and storing artifacts in the last run.",
	})
	m.artifactBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "artifact_bytes",
		Help:      "Size of the artifacts written by the last run.",
	}, []string{"content_type"})
	m.storeRevenue = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "store_revenue",
		Help:      "Store revenue per reporting window in the last run.",
	}, []string{"store", "window"})
	m.storeOrders = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "store_orders",
		Help:      "Distinct store orders per reporting window in the last run.",
	}, []string{"store", "window"})

	m.registry.MustRegister(
		m.runsTotal,
		m.lastRun,
		m.inputFiles,
		m.lineItems,
		m.droppedRows,
		m.stores,
		m.renderDuration,
		m.artifactBytes,
		m.storeRevenue,
		m.storeOrders,
	)
}

// Record implements report.RunRecorder
func (m *RunMetrics) Record(result *report.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runsTotal.Inc()
	m.lastRun.Set(float64(result.GeneratedAt.Unix()))
	m.inputFiles.Set(float64(result.Load.Files))
	m.lineItems.Set(float64(result.Load.Rows))
	m.droppedRows.Set(float64(result.Load.Dropped))
	m.stores.Set(float64(result.Load.Stores))
	m.renderDuration.Set(result.RenderDuration.Seconds())

	m.artifactBytes.Reset()
	for _, a := range result.Artifacts {
		m.artifactBytes.WithLabelValues(a.ContentType).Add(float64(a.Bytes))
	}

	// Stores absent from this run must not keep stale series
	m.storeRevenue.Reset()
	m.storeOrders.Reset()
	if result.Aggregation != nil {
		for _, w := range result.Aggregation.Windows {
			for _, row := range w.Rows {
				m.storeRevenue.WithLabelValues(row.Store, w.Label).Set(row.Revenue.InexactFloat64())
				m.storeOrders.WithLabelValues(row.Store, w.Label).Set(float64(row.Orders))
			}
		}
	}

	if m.textfilePath == "" {
		return nil
	}
	return m.writeTextfile(m.textfilePath)
}

// WriteTextfile writes the current metrics to path in the Prometheus text format
func (m *RunMetrics) WriteTextfile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeTextfile(path)
}

func (m *RunMetrics) writeTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Registry returns the underlying registry
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Gather collects all metrics from the registry
func (m *RunMetrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}
