// Package migration re-keys posts so that every post id equals the stable
// identifier embedded in its own url.
//
// The store offers single-row atomic operations only, so each post moves through
// four ordered phases: detach its url to a placeholder, insert the copy under the
// new id, move its comments, delete the old row. A post interrupted between phases
// keeps its placeholder url and is picked up again by the next run.
package migration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/grokshare/media"
	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/observability"
	"github.com/cppla/grokshare/store"
)

// Store is the subset of the record store the procedure needs.
type Store interface {
	AllPosts(ctx context.Context) ([]models.Post, error)
	FindPost(ctx context.Context, id string) (*models.Post, error)
	InsertPost(ctx context.Context, post *models.Post) error
	UpdatePostURL(ctx context.Context, id, url string) error
	ReparentComments(ctx context.Context, from, to string) (int64, error)
	DeletePostRow(ctx context.Context, id string) error
}

// Outcome classifies a processed record.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Skipped   Outcome = "skipped"
	Errored   Outcome = "errored"
)

// Phase names the step a record reached.
type Phase string

const (
	PhaseDerive   Phase = "derive"
	PhaseGuard    Phase = "guard"
	PhaseDetach   Phase = "detach"
	PhaseInsert   Phase = "insert"
	PhaseReparent Phase = "reparent"
	PhaseDelete   Phase = "delete"
	PhaseDone     Phase = "done"
)

// Result is the per-record log entry.
type Result struct {
	OldID         string
	Target        string
	Outcome       Outcome
	Phase         Phase
	Reason        string
	Resumed       bool
	MovedComments int64
	Err           error
}

// Report aggregates a run.
type Report struct {
	Succeeded int
	Skipped   int
	Errored   int
	Results   []Result
}

func (r *Report) add(res Result) {
	switch res.Outcome {
	case Succeeded:
		r.Succeeded++
	case Skipped:
		r.Skipped++
	case Errored:
		r.Errored++
	}
	r.Results = append(r.Results, res)
}

// Migrator runs the re-keying procedure.
type Migrator struct {
	store   Store
	logger  *zap.Logger
	workers int
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithWorkers processes up to n records at a time. Each record still runs its
// phases in order on a single worker.
func WithWorkers(n int) Option {
	return func(m *Migrator) {
		if n > 0 {
			m.workers = n
		}
	}
}

// New creates a Migrator. A nil logger discards output.
func New(s Store, logger *zap.Logger, opts ...Option) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Migrator{store: s, logger: logger, workers: 1}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run migrates a snapshot of all posts. Per-record failures never abort the batch.
// When ctx is cancelled no further records are started and ctx.Err() is returned
// with the partial report.
func (m *Migrator) Run(ctx context.Context) (Report, error) {
	posts, err := m.store.AllPosts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load posts: %w", err)
	}
	m.logger.Info("post re-keying started", zap.Int("posts", len(posts)), zap.Int("workers", m.workers))

	results := make([]Result, len(posts))
	done := make([]bool, len(posts))

	// a limit of one keeps the default run strictly sequential; a started record
	// finishes all of its phases even after ctx is cancelled
	work := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(m.workers)
	for i := range posts {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			results[i] = m.Migrate(work, posts[i])
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var report Report
	for i := range results {
		if done[i] {
			report.add(results[i])
		}
	}
	m.logger.Info("post re-keying finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("errored", report.Errored),
		zap.Int("not_started", len(posts)-len(report.Results)))
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Migrate processes a single post through the re-keying phases.
func (m *Migrator) Migrate(ctx context.Context, p models.Post) Result {
	res := m.migrate(ctx, p)
	observability.MigrationRecords.WithLabelValues(string(res.Outcome), string(res.Phase)).Inc()

	fields := []zap.Field{
		zap.String("old_id", res.OldID),
		zap.String("target", res.Target),
		zap.String("outcome", string(res.Outcome)),
		zap.String("phase", string(res.Phase)),
		zap.Bool("resumed", res.Resumed),
	}
	if res.Reason != "" {
		fields = append(fields, zap.String("reason", res.Reason))
	}
	if res.MovedComments > 0 {
		fields = append(fields, zap.Int64("moved_comments", res.MovedComments))
	}
	switch res.Outcome {
	case Errored:
		m.logger.Error("post re-key failed", append(fields, zap.Error(res.Err))...)
	case Succeeded:
		m.logger.Info("post re-keyed", fields...)
	default:
		m.logger.Debug("post skipped", fields...)
	}
	return res
}

// target works out where p should move and which real url the new row claims.
func target(p models.Post) (id, sourceURL string, resumed bool, err error) {
	if _, src, ok := ParsePlaceholder(p.URL); ok {
		if src == "" {
			return "", "", true, errors.New("placeholder carries no source url")
		}
		id, ok := media.ExtractID(src)
		if !ok {
			return "", src, true, errors.New("placeholder source url has no stable identifier")
		}
		if isCompactPayload(src) {
			// the original url did not fit next to the marker
			src = media.ShareURL(id)
		}
		return id, src, true, nil
	}
	id, ok := media.ExtractID(p.URL)
	if !ok {
		return "", "", false, nil
	}
	return id, p.URL, false, nil
}

func (m *Migrator) migrate(ctx context.Context, p models.Post) Result {
	res := Result{OldID: p.ID, Phase: PhaseDerive}
	errored := func(phase Phase, reason string, err error) Result {
		res.Outcome, res.Phase, res.Reason, res.Err = Errored, phase, reason, err
		return res
	}

	tgt, sourceURL, resumed, err := target(p)
	res.Resumed = resumed
	if err != nil {
		return errored(PhaseDerive, "unrecoverable placeholder", err)
	}
	if tgt == "" {
		res.Outcome, res.Reason = Skipped, "no stable identifier in url"
		return res
	}
	res.Target = tgt
	if p.ID == tgt {
		res.Outcome, res.Reason = Skipped, "already keyed"
		return res
	}

	// A row at the target id is only ours if an earlier run already detached p
	// and inserted the copy. Anything else is an unrelated post and stays untouched.
	res.Phase = PhaseGuard
	copied := false
	existing, err := m.store.FindPost(ctx, tgt)
	switch {
	case err == nil:
		if !resumed {
			return errored(PhaseGuard, "target id held by another post", store.ErrConflict)
		}
		if id, ok := media.ExtractID(existing.URL); !ok || id != tgt {
			return errored(PhaseGuard, "target id held by an unrelated post", store.ErrConflict)
		}
		copied = true
	case errors.Is(err, store.ErrNotFound):
	default:
		return errored(PhaseGuard, "target lookup failed", err)
	}

	if !resumed {
		res.Phase = PhaseDetach
		if err := m.store.UpdatePostURL(ctx, p.ID, Placeholder(p.ID, sourceURL, tgt)); err != nil {
			return errored(PhaseDetach, "url detach failed", err)
		}
	}

	if !copied {
		res.Phase = PhaseInsert
		fresh := p
		fresh.ID = tgt
		fresh.URL = sourceURL
		if err := m.store.InsertPost(ctx, &fresh); err != nil {
			if rerr := m.store.UpdatePostURL(ctx, p.ID, sourceURL); rerr != nil {
				m.logger.Warn("url restore after failed insert did not apply",
					zap.String("old_id", p.ID), zap.String("url", sourceURL), zap.Error(rerr))
			}
			reason := "insert failed"
			if errors.Is(err, store.ErrConflict) {
				reason = "insert conflicted"
			}
			return errored(PhaseInsert, reason, err)
		}
	}

	// The old row keeps its placeholder until comments are moved, so a failure here
	// is resumed by the next run through the guard above.
	res.Phase = PhaseReparent
	moved, err := m.store.ReparentComments(ctx, p.ID, tgt)
	res.MovedComments = moved
	if err != nil {
		return errored(PhaseReparent, "comment re-parent failed, old row kept", err)
	}

	res.Phase = PhaseDelete
	if err := m.store.DeletePostRow(ctx, p.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return errored(PhaseDelete, "old row delete failed", err)
	}

	res.Outcome, res.Phase = Succeeded, PhaseDone
	return res
}
