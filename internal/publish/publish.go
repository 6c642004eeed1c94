package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dshills/prrisk/internal/logging"
)

var (
	// ErrNotFound is returned by a CommentStore for a missing comment.
	ErrNotFound = errors.New("comment not found")
	// ErrConflict means the comment kept changing underneath us.
	ErrConflict = errors.New("comment changed concurrently")
)

// Comment is a platform comment on a change request.
type Comment struct {
	ID        int64
	Body      string
	UpdatedAt time.Time
}

// CommentStore is the platform comment API of one repository.
type CommentStore interface {
	ListComments(ctx context.Context, number int) ([]Comment, error)
	GetComment(ctx context.Context, id int64) (Comment, error)
	CreateComment(ctx context.Context, number int, body string) (Comment, error)
	UpdateComment(ctx context.Context, id int64, body string) (Comment, error)
	DeleteComment(ctx context.Context, id int64) error
}

// HeadReader reports the current head commit of a change request.
type HeadReader interface {
	HeadSHA(ctx context.Context, number int) (string, error)
}

// Action is what Publish did.
type Action string

const (
	ActionCreated    Action = "created"
	ActionUpdated    Action = "updated"
	ActionUnchanged  Action = "unchanged"
	ActionSuperseded Action = "superseded"
)

// Result describes a completed publish.
type Result struct {
	Action    Action
	CommentID int64
	// Deleted are duplicate marker comments removed on the way.
	Deleted []int64
}

// Options configures a Publisher.
type Options struct {
	// Key selects the marker. Empty uses DefaultKey.
	Key string
	// MaxAttempts bounds conflict retries. Zero means 3.
	MaxAttempts int
	// Heads, when set, is read before every write. A stamp whose head is
	// no longer the change request's head is superseded.
	Heads  HeadReader
	Logger *slog.Logger
}

// Publisher creates or updates the single analysis comment.
type Publisher struct {
	store       CommentStore
	marker      string
	maxAttempts int
	heads       HeadReader
	logger      *slog.Logger
}

// New creates a Publisher over store.
func New(store CommentStore, opts Options) *Publisher {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Publisher{
		store:       store,
		marker:      Marker(key),
		maxAttempts: attempts,
		heads:       opts.Heads,
		logger:      logging.OrDiscard(opts.Logger),
	}
}

// Marker returns the marker this publisher looks for.
func (p *Publisher) Marker() string { return p.marker }

// Publish makes body, stamped, the content of the change request's single
// analysis comment. Platform failures are returned as errors; a comment
// that keeps changing between read and write yields ErrConflict.
func (p *Publisher) Publish(ctx context.Context, number int, body string, stamp Stamp) (Result, error) {
	full := compose(body, p.marker, stamp)
	var res Result

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		ours, err := p.find(ctx, number)
		if err != nil {
			return res, err
		}

		if len(ours) == 0 {
			stale, err := p.staleHead(ctx, number, stamp)
			if err != nil {
				return res, err
			}
			if stale {
				res.Action = ActionSuperseded
				return res, nil
			}
			created, err := p.store.CreateComment(ctx, number, full)
			if err != nil {
				return res, fmt.Errorf("creating comment: %w", err)
			}
			kept, deleted, err := p.verify(ctx, number)
			res.Deleted = append(res.Deleted, deleted...)
			if err != nil {
				return res, err
			}
			if kept == created.ID {
				p.logger.Info("created analysis comment", slog.Int64("id", created.ID), slog.Int("number", number))
				res.Action = ActionCreated
				res.CommentID = created.ID
				return res, nil
			}
			p.logger.Warn("concurrent comment creation, retrying as update",
				slog.Int64("created", created.ID), slog.Int64("kept", kept))
			continue
		}

		keep := ours[0]
		deleted, err := p.deleteAll(ctx, ours[1:])
		res.Deleted = append(res.Deleted, deleted...)
		if err != nil {
			return res, err
		}

		superseded, err := p.superseded(ctx, number, keep, stamp)
		if err != nil {
			return res, err
		}
		if superseded {
			res.Action = ActionSuperseded
			res.CommentID = keep.ID
			return res, nil
		}

		if sameContent(keep.Body, full) {
			res.Action = ActionUnchanged
			res.CommentID = keep.ID
			return res, nil
		}

		fresh, err := p.store.GetComment(ctx, keep.ID)
		if errors.Is(err, ErrNotFound) {
			p.logger.Warn("analysis comment vanished, retrying", slog.Int64("id", keep.ID))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("reading comment %d: %w", keep.ID, err)
		}
		if !fresh.UpdatedAt.Equal(keep.UpdatedAt) {
			p.logger.Warn("analysis comment changed since listing, retrying",
				slog.Int64("id", keep.ID), slog.Int("attempt", attempt))
			continue
		}

		if _, err := p.store.UpdateComment(ctx, keep.ID, full); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return res, fmt.Errorf("updating comment %d: %w", keep.ID, err)
		}
		p.logger.Info("updated analysis comment", slog.Int64("id", keep.ID), slog.Int("number", number))
		res.Action = ActionUpdated
		res.CommentID = keep.ID
		return res, nil
	}
	return res, fmt.Errorf("publishing to #%d after %d attempts: %w", number, p.maxAttempts, ErrConflict)
}

// staleHead reports whether the change request moved past stamp's head.
// It is false when no HeadReader is configured or the stamp has no head.
func (p *Publisher) staleHead(ctx context.Context, number int, stamp Stamp) (bool, error) {
	if p.heads == nil || stamp.HeadSHA == "" {
		return false, nil
	}
	current, err := p.heads.HeadSHA(ctx, number)
	if err != nil {
		return false, fmt.Errorf("reading head of #%d: %w", number, err)
	}
	if current != stamp.HeadSHA {
		p.logger.Info("change request head moved, not publishing",
			slog.String("ours", stamp.HeadSHA), slog.String("current", current))
		return true, nil
	}
	return false, nil
}

// superseded decides whether keep must not be overwritten by a body with
// stamp. With a HeadReader, a run for the current head only yields to a
// later run of the same head. Without one, generation times decide.
func (p *Publisher) superseded(ctx context.Context, number int, keep Comment, stamp Stamp) (bool, error) {
	stale, err := p.staleHead(ctx, number, stamp)
	if err != nil || stale {
		return stale, err
	}
	existing, ok := ParseStamp(keep.Body)
	if !ok {
		return false, nil
	}
	if p.heads != nil && stamp.HeadSHA != "" && existing.HeadSHA != stamp.HeadSHA {
		return false, nil
	}
	if existing.Newer(stamp) {
		p.logger.Info("existing comment is newer, not overwriting",
			slog.Int64("id", keep.ID),
			slog.Time("existing", existing.GeneratedAt),
			slog.Time("ours", stamp.GeneratedAt))
		return true, nil
	}
	return false, nil
}

// find lists the comments this publisher owns, oldest first. A comment is
// owned when it ends with the marker and stamp trailer that compose writes,
// so a comment quoting the marker is left alone.
func (p *Publisher) find(ctx context.Context, number int) ([]Comment, error) {
	all, err := p.store.ListComments(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	var ours []Comment
	for _, c := range all {
		if owned(c.Body, p.marker) {
			ours = append(ours, c)
		}
	}
	sort.Slice(ours, func(i, j int) bool { return ours[i].ID < ours[j].ID })
	return ours, nil
}

// verify re-lists after a create and removes duplicates, returning the id
// of the surviving comment.
func (p *Publisher) verify(ctx context.Context, number int) (int64, []int64, error) {
	ours, err := p.find(ctx, number)
	if err != nil {
		return 0, nil, err
	}
	if len(ours) == 0 {
		return 0, nil, fmt.Errorf("created comment not visible on #%d: %w", number, ErrConflict)
	}
	deleted, err := p.deleteAll(ctx, ours[1:])
	return ours[0].ID, deleted, err
}

func (p *Publisher) deleteAll(ctx context.Context, dups []Comment) ([]int64, error) {
	var deleted []int64
	for _, c := range dups {
		err := p.store.DeleteComment(ctx, c.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return deleted, fmt.Errorf("deleting duplicate comment %d: %w", c.ID, err)
		}
		p.logger.Info("deleted duplicate analysis comment", slog.Int64("id", c.ID))
		deleted = append(deleted, c.ID)
	}
	return deleted, nil
}

// sameContent compares bodies ignoring the stamp line.
func sameContent(a, b string) bool {
	return stampRe.ReplaceAllString(a, "") == stampRe.ReplaceAllString(b, "")
}
