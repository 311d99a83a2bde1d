package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/franchise/kpireport/internal/application/report"
	"github.com/franchise/kpireport/internal/infrastructure/ingest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(stores ...string) *report.RunResult {
	rows := make([]report.ComparisonRow, 0, len(stores))
	for i, s := range stores {
		rows = append(rows, report.ComparisonRow{
			Store:   s,
			Revenue: decimal.RequireFromString("100.50").Mul(decimal.NewFromInt(int64(i + 1))),
			Orders:  10 * (i + 1),
		})
	}
	return &report.RunResult{
		GeneratedAt: time.Unix(1736930000, 0),
		Load:        ingest.Stats{Files: 4, Rows: 120, Dropped: 2, Stores: len(stores)},
		Artifacts: []report.Artifact{
			{Name: "r.xlsx", ContentType: report.ContentTypeXLSX, Bytes: 2048},
			{Name: "r.pdf", ContentType: report.ContentTypePDF, Bytes: 4096},
		},
		RenderDuration: 1500 * time.Millisecond,
		Aggregation: &report.Aggregation{
			Stores:  stores,
			Windows: []report.WindowSummary{{Label: report.WindowWeekly, Rows: rows}},
		},
	}
}

func findMetric(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestRunMetrics_Record(t *testing.T) {
	m := NewRunMetrics("")

	require.NoError(t, m.Record(sampleResult("Store1", "Store2")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.lineItems))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.droppedRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stores))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.renderDuration))
	assert.Equal(t, 1736930000.0, testutil.ToFloat64(m.lastRun))
	assert.Equal(t, 201.0, testutil.ToFloat64(m.storeRevenue.WithLabelValues("Store2", report.WindowWeekly)))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.artifactBytes.WithLabelValues(report.ContentTypePDF)))

	families, err := m.Gather()
	require.NoError(t, err)
	orders := findMetric(t, families, "kpireport_store_orders")
	assert.Len(t, orders.GetMetric(), 2)
}

func TestRunMetrics_RecordDropsStaleStores(t *testing.T) {
	m := NewRunMetrics("")

	require.NoError(t, m.Record(sampleResult("Store1", "Store2")))
	require.NoError(t, m.Record(sampleResult("Store1")))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.storeRevenue))
}

func TestRunMetrics_Textfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpireport.prom")
	m := NewRunMetrics(path)

	require.NoError(t, m.Record(sampleResult("Store1")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# TYPE kpireport_runs_total counter")
	assert.Contains(t, string(content), `kpireport_store_revenue{store="Store1",window="Weekly"} 100.5`)
}

func TestRunMetrics_WriteTextfileError(t *testing.T) {
	m := NewRunMetrics("")

	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "kpireport.prom"))
	assert.ErrorContains(t, err, "failed to write metrics textfile")
}
