package gitctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/dshills/prrisk/internal/review"
)

// Options controls how local diffs are gathered.
type Options struct {
	ContextLines int
	// Exclude drops files matching any glob before analysis.
	Exclude []string
}

// Mode selects which local changes to read.
type Mode string

const (
	ModeUnstaged Mode = "unstaged"
	ModeStaged   Mode = "staged"
	ModeRange    Mode = "range"
)

// Change is a local change set ready for analysis.
type Change struct {
	Request review.ChangeRequest
	Files   []review.ChangedFile
	Mode    Mode
	Range   string
	Repo    RepoMeta
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta(ctx context.Context) (RepoMeta, error) {
	root, err := gitOutput(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput(ctx, "rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// Unstaged reads the working tree against the index.
func Unstaged(ctx context.Context, opts Options) (Change, error) {
	text, err := gitOutput(ctx, append([]string{"diff"}, diffArgs(opts)...)...)
	if err != nil {
		return Change{}, fmt.Errorf("git diff: %w", err)
	}
	return build(ctx, text, ModeUnstaged, "", opts)
}

// Staged reads the index against HEAD.
func Staged(ctx context.Context, opts Options) (Change, error) {
	text, err := gitOutput(ctx, append([]string{"diff", "--cached"}, diffArgs(opts)...)...)
	if err != nil {
		return Change{}, fmt.Errorf("git diff --cached: %w", err)
	}
	return build(ctx, text, ModeStaged, "", opts)
}

// Range reads a revision range such as main..HEAD. With mergeBase, ".."
// becomes "..." so only the head side's changes are read, as a pull request
// would show them.
func Range(ctx context.Context, revRange string, mergeBase bool, opts Options) (Change, error) {
	diffRange := revRange
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	text, err := gitOutput(ctx, append([]string{"diff", diffRange}, diffArgs(opts)...)...)
	if err != nil {
		return Change{}, fmt.Errorf("git diff %s: %w", revRange, err)
	}
	ch, err := build(ctx, text, ModeRange, revRange, opts)
	if err != nil {
		return Change{}, err
	}

	base, head := splitRange(revRange)
	ch.Request.BaseRef = base
	ch.Request.HeadRef = head
	if sha, err := gitOutput(ctx, "rev-parse", head); err == nil {
		ch.Request.HeadSHA = strings.TrimSpace(sha)
	}
	commits, err := ListCommits(ctx, revRange, mergeBase)
	if err == nil && len(commits) > 0 {
		ch.Request.Title = commits[len(commits)-1].Subject
		var desc strings.Builder
		for _, c := range commits {
			fmt.Fprintf(&desc, "- %s %s\n", shortSHA(c.SHA), c.Subject)
		}
		ch.Request.Description = desc.String()
	}
	return ch, nil
}

func splitRange(r string) (base, head string) {
	sep := ".."
	if strings.Contains(r, "...") {
		sep = "..."
	}
	parts := strings.SplitN(r, sep, 2)
	if len(parts) != 2 {
		return "", r
	}
	head = parts[1]
	if head == "" {
		head = "HEAD"
	}
	return parts[0], head
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func diffArgs(opts Options) []string {
	var args []string
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	return append(args, "--no-color", "--no-ext-diff", "-M")
}

func build(ctx context.Context, text string, mode Mode, revRange string, opts Options) (Change, error) {
	files, err := ParseChangedFiles(text)
	if err != nil {
		return Change{}, err
	}
	if len(opts.Exclude) > 0 {
		kept := files[:0]
		for _, f := range files {
			if !MatchesAny(f.Path, opts.Exclude) {
				kept = append(kept, f)
			}
		}
		files = kept
	}

	meta, err := GetRepoMeta(ctx)
	if err != nil {
		meta = RepoMeta{}
	}

	req := review.ChangeRequest{
		Repo:    filepath.Base(meta.Root),
		Title:   fmt.Sprintf("Local %s changes", mode),
		HeadRef: meta.Branch,
		HeadSHA: meta.Head,
	}
	for _, f := range files {
		req.Additions += f.Additions
		req.Deletions += f.Deletions
	}
	return Change{Request: req, Files: files, Mode: mode, Range: revRange, Repo: meta}, nil
}

// ParseChangedFiles splits a multi-file unified diff as produced by
// `git diff` into changed files carrying only their hunks.
func ParseChangedFiles(text string) ([]review.ChangedFile, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	fds, err := diff.NewMultiFileDiffReader(strings.NewReader(text)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	files := make([]review.ChangedFile, 0, len(fds))
	for _, fd := range fds {
		f := review.ChangedFile{
			Path:   stripPrefix(fd.NewName),
			Status: review.StatusModified,
		}
		orig := stripPrefix(fd.OrigName)

		switch {
		case fd.OrigName == "/dev/null" || hasExtended(fd, "new file mode"):
			f.Status = review.StatusAdded
		case fd.NewName == "/dev/null" || hasExtended(fd, "deleted file mode"):
			f.Status = review.StatusRemoved
			f.Path = orig
		case hasExtended(fd, "rename from") || (orig != "" && orig != f.Path):
			f.Status = review.StatusRenamed
			f.PreviousPath = orig
		}
		f.Binary = hasExtended(fd, "Binary files") || hasExtended(fd, "GIT binary patch")

		for _, h := range fd.Hunks {
			for _, line := range bytes.Split(h.Body, []byte("\n")) {
				if len(line) == 0 {
					continue
				}
				switch line[0] {
				case '+':
					f.Additions++
				case '-':
					f.Deletions++
				}
			}
		}
		if len(fd.Hunks) > 0 {
			hunks, err := diff.PrintHunks(fd.Hunks)
			if err != nil {
				return nil, fmt.Errorf("printing hunks of %s: %w", f.Path, err)
			}
			f.Diff = string(hunks)
		}
		files = append(files, f)
	}
	return files, nil
}

func stripPrefix(name string) string {
	if name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

func hasExtended(fd *diff.FileDiff, prefix string) bool {
	for _, e := range fd.Extended {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		if strings.HasSuffix(pattern, "/**") && strings.HasPrefix(path, strings.TrimSuffix(pattern, "**")) {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// CommitInfo holds a commit SHA and its subject line.
type CommitInfo struct {
	SHA     string
	Subject string
}

// ListCommits returns commits in a revision range, oldest first.
// If mergeBase is true, ".." is converted to "..." for merge-base comparison.
func ListCommits(ctx context.Context, revRange string, mergeBase bool) ([]CommitInfo, error) {
	listRange := revRange
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		listRange = strings.Replace(revRange, "..", "...", 1)
	}

	// Output format: "commit <sha>\n<subject>\n" per commit.
	out, err := gitOutput(ctx, "rev-list", "--reverse", "--format=%s", listRange)
	if err != nil {
		return nil, fmt.Errorf("git rev-list %s: %w", revRange, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	lines := strings.Split(out, "\n")
	var commits []CommitInfo
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "commit ") {
			continue
		}
		sha := strings.TrimPrefix(line, "commit ")
		var subject string
		if i+1 < len(lines) {
			subject = strings.TrimSpace(lines[i+1])
			i++
		}
		commits = append(commits, CommitInfo{SHA: sha, Subject: subject})
	}
	return commits, nil
}

func gitOutput(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
