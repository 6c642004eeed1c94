package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/prrisk/internal/ai"
	"github.com/dshills/prrisk/internal/publish"
	"github.com/dshills/prrisk/internal/review"
)

// value returns the value of the metric family name whose labels include
// every pair in labels.
func value(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestObserveReport(t *testing.T) {
	m := New()
	m.ObserveReport(&review.AnalysisReport{
		Findings: []review.Finding{
			{Category: review.CategorySecurity, Severity: review.SeverityHigh, Source: review.SourcePattern},
			{Category: review.CategorySecurity, Severity: review.SeverityHigh, Source: review.SourcePattern},
			{Category: review.CategoryPerformance, Severity: review.SeverityLow, Source: review.SourceAI},
		},
		Coverage: review.Coverage{TotalFiles: 60, AnalyzedFiles: 49, SkippedFiles: 3, Malformed: []string{"x.go"}},
		Degraded: true,
	})

	assert.Equal(t, 2.0, value(t, m, "prrisk_findings_total",
		map[string]string{"category": "security", "severity": "HIGH", "source": "pattern"}))
	assert.Equal(t, 1.0, value(t, m, "prrisk_findings_total",
		map[string]string{"category": "performance", "source": "ai"}))
	assert.Equal(t, 60.0, value(t, m, "prrisk_files", map[string]string{"disposition": "total"}))
	assert.Equal(t, 1.0, value(t, m, "prrisk_files", map[string]string{"disposition": "malformed"}))
	assert.Equal(t, 1.0, value(t, m, "prrisk_degraded", nil))
}

func TestObserveAIAndPublish(t *testing.T) {
	m := New()
	m.ObserveAI(ai.Contribution{Summary: "ok", TokensUsed: 120})
	m.ObserveAI(ai.NoContribution{Reason: "AI analysis timed out"})
	m.ObserveAI(ai.NoContribution{Reason: "AI analysis timed out"})
	m.ObservePublish(publish.ActionCreated)
	m.ObservePublish(publish.ActionUnchanged)

	assert.Equal(t, 1.0, value(t, m, "prrisk_ai_outcomes_total", map[string]string{"outcome": "contribution"}))
	assert.Equal(t, 2.0, value(t, m, "prrisk_ai_outcomes_total", map[string]string{"outcome": "no_contribution"}))
	assert.Equal(t, 120.0, value(t, m, "prrisk_ai_tokens_total", nil))
	assert.Equal(t, 1.0, value(t, m, "prrisk_publish_total", map[string]string{"action": "unchanged"}))
}

func TestStagesAndTextfile(t *testing.T) {
	m := New()
	m.ObserveStage(StageDetect, 20*time.Millisecond)
	done := m.Time(StageMerge)
	done()
	assert.Equal(t, 1.0, value(t, m, "prrisk_stage_duration_seconds", map[string]string{"stage": "detect"}))

	path := filepath.Join(t.TempDir(), "prrisk.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `prrisk_stage_duration_seconds_count{stage="merge"} 1`))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage(StageAI, time.Second)
		m.Time(StageRender)()
		m.ObserveAI(ai.Contribution{})
		m.ObserveReport(&review.AnalysisReport{})
		m.ObservePublish(publish.ActionUpdated)
		assert.NoError(t, m.WriteTextfile("/nonexistent/x.prom"))
	})
	assert.Nil(t, m.Registry())
}
