package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/prrisk/internal/ai"
	"github.com/dshills/prrisk/internal/cache"
	"github.com/dshills/prrisk/internal/config"
	"github.com/dshills/prrisk/internal/detect"
	"github.com/dshills/prrisk/internal/github"
	"github.com/dshills/prrisk/internal/gitctx"
	"github.com/dshills/prrisk/internal/logging"
	"github.com/dshills/prrisk/internal/metrics"
	"github.com/dshills/prrisk/internal/output"
	"github.com/dshills/prrisk/internal/pipeline"
	"github.com/dshills/prrisk/internal/prioritize"
	"github.com/dshills/prrisk/internal/providers"
	"github.com/dshills/prrisk/internal/review"
)

// Shared analysis flags
var (
	flagProvider    string
	flagModel       string
	flagNoAI        bool
	flagMaxFiles    int
	flagFailOn      string
	flagFormat      string
	flagOut         string
	flagMetricsFile string
	flagNoRedact    bool
)

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "AI provider (anthropic, openai)")
	cmd.Flags().StringVar(&flagModel, "model", "", "AI model name")
	cmd.Flags().BoolVar(&flagNoAI, "no-ai", false, "Skip AI analysis and report pattern findings only")
	cmd.Flags().IntVar(&flagMaxFiles, "max-files", 0, "Maximum files analyzed in full")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Exit 1 when a finding meets this severity (none, low, medium, high)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Write the rendered report to this file")
	cmd.Flags().StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction in AI prompts (use with caution)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["ai.provider"] = flagProvider
	}
	if flagModel != "" {
		m["ai.model"] = flagModel
	}
	if flagNoAI {
		m["ai.enabled"] = "false"
	}
	if flagMaxFiles > 0 {
		m["analysis.max_files"] = fmt.Sprintf("%d", flagMaxFiles)
	}
	if flagFailOn != "" {
		m["run.fail_on"] = flagFailOn
	}
	return m
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig, buildOverrides())
	if err != nil {
		return config.Config{}, err
	}
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
		slog.Warn("secret redaction is disabled")
	}
	return cfg, nil
}

// newAIClient builds the AI pass from config. Construction failures, such
// as a missing API key, disable the pass instead of failing the run.
func newAIClient(cfg config.Config) *ai.Client {
	if !cfg.AI.Enabled {
		return ai.Disabled("AI analysis is disabled in configuration", nil)
	}
	logger := logging.New("ai")
	provider, err := providers.New(cfg.AI.Provider, cfg.AI.Model, providers.Options{
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
		Retry: providers.Policy{
			MaxRetries: cfg.AI.MaxRetries,
			BaseDelay:  providers.DefaultPolicy().BaseDelay,
			MaxDelay:   providers.DefaultPolicy().MaxDelay,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Warn("AI provider unavailable", slog.Any("error", err))
		return ai.Disabled(ai.ReasonFor(err), err)
	}
	aiCfg := ai.Config{
		Model: cfg.AI.Model,
		Budget: ai.Budget{
			MaxContextBytes: cfg.AI.MaxContextBytes,
			MaxFiles:        cfg.AI.MaxFiles,
			MaxLinesPerFile: cfg.AI.MaxLinesPerFile,
			MaxTokens:       cfg.AI.MaxTokens,
			Temperature:     cfg.AI.Temperature,
		},
		Timeout:       cfg.AI.Timeout,
		RedactSecrets: cfg.Privacy.RedactSecrets,
		RedactPaths:   cfg.Privacy.RedactPaths,
	}
	if cfg.AI.Cache.Enabled {
		c, err := cache.New(cfg.AI.Cache.Dir, cfg.AI.Cache.TTL)
		if err != nil {
			logger.Warn("AI response cache unavailable", slog.Any("error", err))
		} else {
			aiCfg.Cache = c
		}
	}
	return ai.New(provider, aiCfg, logger)
}

func pipelineConfig(cfg config.Config) pipeline.Config {
	sections := output.Sections{
		Summary:   cfg.Comment.IncludeSummary,
		KeyFiles:  cfg.Comment.IncludeKeyFiles,
		Risks:     cfg.Comment.IncludeRisks,
		Checklist: cfg.Comment.IncludeChecklist,

		MaxPerCategory: cfg.Comment.MaxFindingsPerCategory,
		MaxBytes:       cfg.Comment.MaxBodyBytes,
	}
	if cfg.Comment.CollapseFileList {
		sections.CollapseAfter = output.DefaultSections().CollapseAfter
	}
	return pipeline.Config{
		Limits: prioritize.Limits{
			MaxFiles:     cfg.Analysis.MaxFiles,
			MaxDiffLines: cfg.Analysis.MaxDiffLines,
		},
		Enabled:       cfg.Analysis.EnabledCategories(),
		ShareFindings: cfg.AI.ShareFindings,
		Budget:        cfg.Run.Budget,
		Sections:      sections,
		MaxKeyFiles:   cfg.Comment.MaxKeyFiles,
		Tool:          "prrisk",
		Version:       version,
	}
}

func newPipeline(cfg config.Config, m *metrics.Metrics, pub pipeline.Publisher) *pipeline.Pipeline {
	detector := detect.New(detect.Config{
		Enabled:            cfg.Analysis.EnabledCategories(),
		Workers:            cfg.Analysis.Workers,
		CoverageMinChanges: cfg.Analysis.CoverageMinChanges,
	}, logging.New("detect"))

	opts := []pipeline.Option{
		pipeline.WithMetrics(m),
		pipeline.WithLogger(logging.New("pipeline")),
	}
	if pub != nil {
		opts = append(opts, pipeline.WithPublisher(pub))
	}
	return pipeline.New(pipelineConfig(cfg), detector, newAIClient(cfg), opts...)
}

// exitFor maps a run error to an exit code.
func exitFor(err error) int {
	var cerr *config.Error
	switch {
	case errors.As(err, &cerr):
		return ExitUsageError
	case github.IsAuthError(err):
		return ExitAuthError
	default:
		return ExitRuntimeError
	}
}

// thresholdMet reports whether any finding meets the fail-on threshold.
func thresholdMet(report *review.AnalysisReport, failOn string) bool {
	if failOn == "" || failOn == "none" {
		return false
	}
	for _, f := range report.Findings {
		if review.MeetsThreshold(f.Severity, failOn) {
			return true
		}
	}
	return false
}

// finish writes the local report and metrics and sets the exit code. An
// empty format writes no local report.
func finish(cmd *cobra.Command, cfg config.Config, res *pipeline.Result, m *metrics.Metrics, format string) {
	if format != "" {
		sections := pipelineConfig(cfg).Sections
		if err := output.WriteReport(res.Report, format, sections, flagOut, cmd.OutOrStdout()); err != nil {
			fail(cmd, ExitRuntimeError, fmt.Errorf("writing output: %w", err))
			return
		}
	}
	if err := m.WriteTextfile(flagMetricsFile); err != nil {
		slog.Warn("metrics not written", slog.Any("error", err))
	}
	if thresholdMet(res.Report, cfg.Run.FailOn) {
		exitCode = ExitFindings
	}
}

// Local flags
var (
	flagStaged       bool
	flagMergeBase    bool
	flagExclude      string
	flagContextLines int
)

var localCmd = &cobra.Command{
	Use:   "local [<revRange>]",
	Short: "Analyze local git changes",
	Long: "Analyze a revision range such as origin/main..HEAD, or the working tree when no range is given. " +
		"The report is written to stdout and nothing is published.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(cmd, exitFor(err), err)
			return nil
		}

		opts := gitctx.Options{
			ContextLines: flagContextLines,
			Exclude:      splitComma(flagExclude),
		}
		src := pipeline.SourceFunc(func(ctx context.Context) (review.ChangeRequest, []review.ChangedFile, error) {
			var ch gitctx.Change
			var err error
			switch {
			case len(args) == 1:
				ch, err = gitctx.Range(ctx, args[0], flagMergeBase, opts)
			case flagStaged:
				ch, err = gitctx.Staged(ctx, opts)
			default:
				ch, err = gitctx.Unstaged(ctx, opts)
			}
			return ch.Request, ch.Files, err
		})

		m := metrics.New()
		res, err := newPipeline(cfg, m, nil).Run(cmd.Context(), src)
		if err != nil {
			fail(cmd, exitFor(err), err)
			return nil
		}

		format := flagFormat
		if format == "" {
			format = "markdown"
		}
		finish(cmd, cfg, res, m, format)
		return nil
	},
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func init() {
	addAnalysisFlags(localCmd)
	localCmd.Flags().StringVar(&flagFormat, "format", "", "Output format (markdown, json, sarif)")
	localCmd.Flags().BoolVar(&flagStaged, "staged", false, "Analyze staged changes instead of the working tree")
	localCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Compare against the merge base for ranges")
	localCmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	localCmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in diff")
}
