package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/prrisk/internal/ai"
	"github.com/dshills/prrisk/internal/publish"
	"github.com/dshills/prrisk/internal/review"
)

const namespace = "prrisk"

// Stage names used for duration observations.
const (
	StagePrioritize = "prioritize"
	StageDetect     = "detect"
	StageAI         = "ai"
	StageMerge      = "merge"
	StageRender     = "render"
	StagePublish    = "publish"
)

// Metrics holds the run's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	reg *prometheus.Registry

	findings   *prometheus.CounterVec
	aiOutcomes *prometheus.CounterVec
	aiTokens   prometheus.Counter
	publishes  *prometheus.CounterVec
	stages     *prometheus.HistogramVec
	files      *prometheus.GaugeVec
	degraded   prometheus.Gauge
}

// New creates Metrics backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		findings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings in published reports by category, severity and source.",
		}, []string{"category", "severity", "source"}),
		aiOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_outcomes_total",
			Help:      "AI analysis outcomes by kind.",
		}, []string{"outcome"}),
		aiTokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Tokens consumed by AI analysis.",
		}),
		publishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Comment publish results by action.",
		}, []string{"action"}),
		stages: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage durations.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		files: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files",
			Help:      "Changed files in the last run by disposition.",
		}, []string{"disposition"}),
		degraded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "degraded",
			Help:      "1 when the last report was produced without AI analysis.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// Time starts a stage timer; call the returned func when the stage ends.
func (m *Metrics) Time(stage string) func() {
	start := time.Now()
	return func() { m.ObserveStage(stage, time.Since(start)) }
}

// ObserveAI records an AI outcome.
func (m *Metrics) ObserveAI(o ai.Outcome) {
	if m == nil {
		return
	}
	m.aiOutcomes.WithLabelValues(ai.Label(o)).Inc()
	if c, ok := o.(ai.Contribution); ok && c.TokensUsed > 0 {
		m.aiTokens.Add(float64(c.TokensUsed))
	}
}

// ObserveReport records the findings and coverage of a report.
func (m *Metrics) ObserveReport(r *review.AnalysisReport) {
	if m == nil || r == nil {
		return
	}
	for _, f := range r.Findings {
		m.findings.WithLabelValues(string(f.Category), string(f.Severity), string(f.Source)).Inc()
	}
	c := r.Coverage
	m.files.WithLabelValues("total").Set(float64(c.TotalFiles))
	m.files.WithLabelValues("analyzed").Set(float64(c.AnalyzedFiles))
	m.files.WithLabelValues("skipped").Set(float64(c.SkippedFiles))
	m.files.WithLabelValues("excluded").Set(float64(c.ExcludedFiles))
	m.files.WithLabelValues("malformed").Set(float64(len(c.Malformed)))
	if r.Degraded {
		m.degraded.Set(1)
	} else {
		m.degraded.Set(0)
	}
}

// ObservePublish records a publish result.
func (m *Metrics) ObservePublish(a publish.Action) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(string(a)).Inc()
}

// WriteTextfile writes the registry to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
