package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/prrisk/internal/config"
	"github.com/dshills/prrisk/internal/github"
	"github.com/dshills/prrisk/internal/logging"
	"github.com/dshills/prrisk/internal/metrics"
	"github.com/dshills/prrisk/internal/pipeline"
	"github.com/dshills/prrisk/internal/publish"
	"github.com/dshills/prrisk/internal/review"
)

var (
	flagGHRepo   string
	flagGHPR     int
	flagGHDryRun bool
)

// errNoPR is returned when no pull request number can be found.
var errNoPR = &config.Error{Key: "pr", Err: errors.New("pull request number is required (--pr or GITHUB_EVENT_NUMBER)")}

// target resolves the repository and pull request from flags, the
// environment and finally the origin remote.
func target(secrets config.Secrets) (owner, repo string, number int, err error) {
	number = flagGHPR
	if number <= 0 {
		number = secrets.PRNumber
	}
	if number <= 0 {
		return "", "", 0, errNoPR
	}

	slug := flagGHRepo
	if slug == "" {
		slug = secrets.Repository
	}
	if slug != "" {
		owner, repo, err = github.ParseRepository(slug)
		if err != nil {
			return "", "", 0, &config.Error{Key: "repo", Value: slug, Err: err}
		}
		return owner, repo, number, nil
	}

	owner, repo, err = github.DetectRepo()
	if err != nil {
		return "", "", 0, &config.Error{Key: "repo", Err: fmt.Errorf("use --repo or GITHUB_REPOSITORY: %w", err)}
	}
	return owner, repo, number, nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a GitHub pull request and publish the report",
	Long: "Fetch a pull request's changed files from GitHub, run pattern and AI analysis, " +
		"and create or update the single analysis comment on the pull request.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(cmd, exitFor(err), err)
			return nil
		}
		secrets, err := config.LoadSecrets()
		if err != nil {
			fail(cmd, exitFor(err), err)
			return nil
		}
		owner, repo, number, err := target(secrets)
		if err != nil {
			fail(cmd, exitFor(err), err)
			return nil
		}

		gh, err := github.NewClient(github.Options{
			Token:             secrets.GitHubToken,
			APIURL:            cfg.GitHub.APIURL,
			RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
			Logger:            logging.New("github"),
		})
		if err != nil {
			fail(cmd, exitFor(err), err)
			return nil
		}

		var pub pipeline.Publisher
		if !flagGHDryRun {
			store := gh.Comments(owner, repo)
			pub = publish.New(store, publish.Options{
				Key:    cfg.Comment.MarkerKey,
				Heads:  store,
				Logger: logging.New("publish"),
			})
		}

		src := pipeline.SourceFunc(func(ctx context.Context) (review.ChangeRequest, []review.ChangedFile, error) {
			change, err := gh.GetPullRequest(ctx, owner, repo, number)
			if err != nil {
				return review.ChangeRequest{}, nil, err
			}
			files, err := gh.ListFiles(ctx, owner, repo, number)
			if err != nil {
				return review.ChangeRequest{}, nil, err
			}
			return change, files, nil
		})

		m := metrics.New()
		res, err := newPipeline(cfg, m, pub).Run(cmd.Context(), src)
		if err != nil {
			fail(cmd, exitFor(err), err)
			return nil
		}

		format := ""
		if flagGHDryRun || flagOut != "" {
			format = "markdown"
		}
		finish(cmd, cfg, res, m, format)
		return nil
	},
}

func init() {
	addAnalysisFlags(analyzeCmd)
	analyzeCmd.Flags().StringVar(&flagGHRepo, "repo", "", "Repository as owner/repo (default $GITHUB_REPOSITORY or origin remote)")
	analyzeCmd.Flags().IntVar(&flagGHPR, "pr", 0, "Pull request number (default $GITHUB_EVENT_NUMBER)")
	analyzeCmd.Flags().BoolVar(&flagGHDryRun, "dry-run", false, "Render the report to stdout without publishing")
}
