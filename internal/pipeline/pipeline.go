package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/prrisk/internal/ai"
	"github.com/dshills/prrisk/internal/detect"
	"github.com/dshills/prrisk/internal/logging"
	"github.com/dshills/prrisk/internal/merge"
	"github.com/dshills/prrisk/internal/metrics"
	"github.com/dshills/prrisk/internal/output"
	"github.com/dshills/prrisk/internal/prioritize"
	"github.com/dshills/prrisk/internal/publish"
	"github.com/dshills/prrisk/internal/review"
)

// ErrNoChangeNumber is returned when publishing is requested for a change
// without a pull request number.
var ErrNoChangeNumber = errors.New("cannot publish: change has no pull request number")

// Source loads the change under analysis.
type Source interface {
	Load(ctx context.Context) (review.ChangeRequest, []review.ChangedFile, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (review.ChangeRequest, []review.ChangedFile, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (review.ChangeRequest, []review.ChangedFile, error) {
	return f(ctx)
}

// Static returns a Source for an already loaded change.
func Static(change review.ChangeRequest, files []review.ChangedFile) Source {
	return SourceFunc(func(context.Context) (review.ChangeRequest, []review.ChangedFile, error) {
		return change, files, nil
	})
}

// Publisher writes the rendered document to the change request.
type Publisher interface {
	Publish(ctx context.Context, number int, body string, stamp publish.Stamp) (publish.Result, error)
}

// Config holds the run settings.
type Config struct {
	Limits prioritize.Limits
	// Enabled gates categories. A nil map enables every category.
	Enabled map[review.Category]bool
	// ShareFindings passes pattern findings to the AI pass, which then
	// waits for detection to finish.
	ShareFindings bool
	// Budget bounds the whole run. Zero means no bound.
	Budget      time.Duration
	Sections    output.Sections
	MaxKeyFiles int
	Tool        string
	Version     string
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg       Config
	detector  *detect.Detector
	ai        *ai.Client
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPublisher publishes the rendered report. Without it the run is dry.
func WithPublisher(p Publisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

// WithMetrics records stage and outcome metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) { pl.logger = l }
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) { pl.now = now }
}

// New creates a Pipeline. A nil aiClient behaves as an unconfigured AI pass.
func New(cfg Config, detector *detect.Detector, aiClient *ai.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		detector: detector,
		ai:       aiClient,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = logging.OrDiscard(p.logger)
	if p.ai == nil {
		p.ai = ai.Disabled("AI analysis is not configured", nil)
	}
	return p
}

// Result is the outcome of one run.
type Result struct {
	Report *review.AnalysisReport
	Body   string
	// Published is nil for dry runs.
	Published *publish.Result
}

// Run analyzes the change from src and publishes the report.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	if p.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Budget)
		defer cancel()
	}

	// Reports are stamped with the run start, not the merge time.
	started := p.now()

	done := p.metrics.Time("load")
	change, files, err := src.Load(ctx)
	done()
	if err != nil {
		return nil, fmt.Errorf("loading change: %w", err)
	}
	log := p.logger.With(slog.String("repo", change.Owner+"/"+change.Repo), slog.Int("pr", change.Number))
	log.Info("analyzing change", slog.Int("files", len(files)))

	done = p.metrics.Time(metrics.StagePrioritize)
	prio := prioritize.Prioritize(files, p.cfg.Limits)
	done()
	log.Debug("prioritized files",
		slog.Int("admitted", len(prio.Files)),
		slog.Int("excluded", len(prio.Excluded)),
		slog.Int("skipped", len(prio.Skipped)))

	detected, outcome, err := p.analyze(ctx, change, files, prio)
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveAI(outcome)
	if nc, ok := outcome.(ai.NoContribution); ok {
		log.Warn("AI analysis unavailable", slog.String("reason", nc.Reason), slog.Any("error", nc.Err))
	}

	done = p.metrics.Time(metrics.StageMerge)
	report := merge.Merge(merge.Input{
		Change:      change,
		Files:       files,
		Prioritized: prio,
		Detected:    detected,
		AI:          outcome,
	}, merge.Options{
		Tool:        p.cfg.Tool,
		Version:     p.cfg.Version,
		Enabled:     p.cfg.Enabled,
		MaxKeyFiles: p.cfg.MaxKeyFiles,
		Now:         started,
	})
	done()
	p.metrics.ObserveReport(report)

	done = p.metrics.Time(metrics.StageRender)
	body, err := output.RenderMarkdown(report, p.cfg.Sections)
	done()
	if err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	res := &Result{Report: report, Body: body}
	if p.publisher == nil {
		log.Info("dry run, report not published", slog.Int("findings", len(report.Findings)))
		return res, nil
	}
	if change.Number <= 0 {
		return nil, ErrNoChangeNumber
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run budget exhausted before publishing: %w", err)
	}

	done = p.metrics.Time(metrics.StagePublish)
	pub, err := p.publisher.Publish(ctx, change.Number, body, publish.Stamp{
		GeneratedAt: report.GeneratedAt,
		HeadSHA:     change.HeadSHA,
	})
	done()
	if err != nil {
		return nil, fmt.Errorf("publishing report: %w", err)
	}
	p.metrics.ObservePublish(pub.Action)
	log.Info("report published",
		slog.String("action", string(pub.Action)),
		slog.Int64("comment_id", pub.CommentID),
		slog.Int("findings", len(report.Findings)),
		slog.Bool("degraded", report.Degraded))
	res.Published = &pub
	return res, nil
}

// analyze runs detection and the AI pass. The AI pass never fails the run;
// detection only fails when ctx is done.
func (p *Pipeline) analyze(ctx context.Context, change review.ChangeRequest, all []review.ChangedFile, prio prioritize.Result) (detect.Result, ai.Outcome, error) {
	dctx := detect.Context{AllPaths: make([]string, len(all))}
	for i, f := range all {
		dctx.AllPaths[i] = f.Path
	}

	runDetect := func(ctx context.Context) (detect.Result, error) {
		defer p.metrics.Time(metrics.StageDetect)()
		res, err := p.detector.Detect(ctx, prio.Files, dctx)
		if err != nil {
			return detect.Result{}, fmt.Errorf("detecting risks: %w", err)
		}
		return res, nil
	}
	runAI := func(ctx context.Context, prior []review.Finding) ai.Outcome {
		defer p.metrics.Time(metrics.StageAI)()
		return p.ai.Analyze(ctx, change, prio.Files, prior)
	}

	if p.cfg.ShareFindings {
		detected, err := runDetect(ctx)
		if err != nil {
			return detect.Result{}, nil, err
		}
		return detected, runAI(ctx, detected.Findings), nil
	}

	var (
		detected detect.Result
		outcome  ai.Outcome
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detected, err = runDetect(gctx)
		return err
	})
	g.Go(func() error {
		// Parent context: only detection cancels the group.
		outcome = runAI(ctx, nil)
		return nil
	})
	if err := g.Wait(); err != nil {
		return detect.Result{}, nil, err
	}
	return detected, outcome, nil
}
