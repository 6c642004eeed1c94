package github

import (
	"context"
	"fmt"

	"github.com/dshills/prrisk/internal/review"
)

type pullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Head struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// GetPullRequest fetches pull request metadata.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (review.ChangeRequest, error) {
	var pr pullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.do(ctx, "GET", path, nil, &pr); err != nil {
		if IsNotFound(err) {
			return review.ChangeRequest{}, fmt.Errorf("PR #%d not found in %s/%s: %w", number, owner, repo, err)
		}
		return review.ChangeRequest{}, fmt.Errorf("fetching PR #%d: %w", number, err)
	}
	return review.ChangeRequest{
		Owner:       owner,
		Repo:        repo,
		Number:      pr.Number,
		Title:       pr.Title,
		Description: pr.Body,
		Author:      pr.User.Login,
		BaseRef:     pr.Base.Ref,
		HeadRef:     pr.Head.Ref,
		HeadSHA:     pr.Head.SHA,
		Additions:   pr.Additions,
		Deletions:   pr.Deletions,
	}, nil
}

// PRFile represents a file changed in a pull request.
type PRFile struct {
	Filename         string `json:"filename"`
	PreviousFilename string `json:"previous_filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Patch            string `json:"patch"`
}

// ChangedFile converts the API shape to the shared model. An added or
// modified file with no patch and no line changes is binary; a pure rename
// has no patch either.
func (f PRFile) ChangedFile() review.ChangedFile {
	cf := review.ChangedFile{
		Path:         f.Filename,
		PreviousPath: f.PreviousFilename,
		Additions:    f.Additions,
		Deletions:    f.Deletions,
		Diff:         f.Patch,
	}
	switch f.Status {
	case "added":
		cf.Status = review.StatusAdded
	case "removed":
		cf.Status = review.StatusRemoved
	case "renamed":
		cf.Status = review.StatusRenamed
	default:
		cf.Status = review.StatusModified
	}
	if f.Patch != "" && f.Patch[len(f.Patch)-1] != '\n' {
		cf.Diff += "\n"
	}
	cf.Binary = f.Patch == "" && cf.Changes() == 0 &&
		(cf.Status == review.StatusAdded || cf.Status == review.StatusModified)
	return cf
}

// ListFiles fetches every changed file of a pull request, following pages.
func (c *Client) ListFiles(ctx context.Context, owner, repo string, number int) ([]review.ChangedFile, error) {
	var files []review.ChangedFile
	for page := 1; page <= maxPages; page++ {
		var batch []PRFile
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d", owner, repo, number, perPage, page)
		if err := c.do(ctx, "GET", path, nil, &batch); err != nil {
			return nil, fmt.Errorf("listing files of PR #%d: %w", number, err)
		}
		for _, f := range batch {
			files = append(files, f.ChangedFile())
		}
		if len(batch) < perPage {
			break
		}
	}
	return files, nil
}
