package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.FilesScanned.Inc()
	m.FilesScanned.Inc()
	m.ObserveDiagnostic("rules/no-latest-tag", "warning")
	m.ObserveDiagnostic("rules/no-latest-tag", "warning")
	m.ObserveDiagnostic("schema/missing-field", "error")
	m.ObserveMigration("applied")
	m.FixesApplied.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesScanned))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("rules/no-latest-tag", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("schema/missing-field", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Migrations.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FixesApplied))
}

func TestMetrics_Dump(t *testing.T) {
	m := New()
	m.FilesScanned.Inc()
	m.ObserveDiagnostic("rules/duplicate-key", "warning")
	m.ObserveStage("lex", 0.002)

	var buf strings.Builder
	require.NoError(t, m.Dump(&buf))
	out := buf.String()

	assert.Contains(t, out, "yamlr_files_scanned_total 1")
	assert.Contains(t, out, "yamlr_diagnostics_total{rule=rules/duplicate-key,severity=warning} 1")
	assert.Contains(t, out, "yamlr_stage_duration_seconds{stage=lex}_count 1")
}

func TestMetrics_IsolatedRegistries(t *testing.T) {
	a := New()
	b := New()
	a.FilesScanned.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.FilesScanned))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FilesScanned))
}
