package github

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/prrisk/internal/publish"
)

type issueComment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c issueComment) comment() publish.Comment {
	return publish.Comment{ID: c.ID, Body: c.Body, UpdatedAt: c.UpdatedAt}
}

// Comments is the issue comment API of one repository.
type Comments struct {
	client *Client
	owner  string
	repo   string
}

var (
	_ publish.CommentStore = (*Comments)(nil)
	_ publish.HeadReader   = (*Comments)(nil)
)

// Comments returns the comment store for owner/repo.
func (c *Client) Comments(owner, repo string) *Comments {
	return &Comments{client: c, owner: owner, repo: repo}
}

// wrap maps a 404 onto publish.ErrNotFound.
func wrap(err error, what string) error {
	if IsNotFound(err) {
		return fmt.Errorf("%s: %w: %w", what, publish.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *Comments) ListComments(ctx context.Context, number int) ([]publish.Comment, error) {
	var out []publish.Comment
	for page := 1; page <= maxPages; page++ {
		var batch []issueComment
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=%d&page=%d", s.owner, s.repo, number, perPage, page)
		if err := s.client.do(ctx, "GET", path, nil, &batch); err != nil {
			return nil, wrap(err, "listing comments")
		}
		for _, c := range batch {
			out = append(out, c.comment())
		}
		if len(batch) < perPage {
			break
		}
	}
	return out, nil
}

func (s *Comments) GetComment(ctx context.Context, id int64) (publish.Comment, error) {
	var c issueComment
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", s.owner, s.repo, id)
	if err := s.client.do(ctx, "GET", path, nil, &c); err != nil {
		return publish.Comment{}, wrap(err, "getting comment")
	}
	return c.comment(), nil
}

func (s *Comments) CreateComment(ctx context.Context, number int, body string) (publish.Comment, error) {
	var c issueComment
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", s.owner, s.repo, number)
	if err := s.client.do(ctx, "POST", path, map[string]string{"body": body}, &c); err != nil {
		return publish.Comment{}, wrap(err, "creating comment")
	}
	return c.comment(), nil
}

func (s *Comments) UpdateComment(ctx context.Context, id int64, body string) (publish.Comment, error) {
	var c issueComment
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", s.owner, s.repo, id)
	if err := s.client.do(ctx, "PATCH", path, map[string]string{"body": body}, &c); err != nil {
		return publish.Comment{}, wrap(err, "updating comment")
	}
	return c.comment(), nil
}

func (s *Comments) DeleteComment(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", s.owner, s.repo, id)
	if err := s.client.do(ctx, "DELETE", path, nil, nil); err != nil {
		return wrap(err, "deleting comment")
	}
	return nil
}

// HeadSHA returns the current head commit of pull request number.
func (s *Comments) HeadSHA(ctx context.Context, number int) (string, error) {
	pr, err := s.client.GetPullRequest(ctx, s.owner, s.repo, number)
	if err != nil {
		return "", err
	}
	return pr.HeadSHA, nil
}
