package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CommentReconciler is implemented by the store.
type CommentReconciler interface {
	RecountComments(ctx context.Context) (int64, error)
	CountOrphanComments(ctx context.Context) (int64, error)
}

// ReconcileOnce recomputes comment counts and logs orphaned comments.
func ReconcileOnce(ctx context.Context, r CommentReconciler) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	fixed, err := r.RecountComments(ctx)
	if err != nil {
		Logger.Error("comment recount failed", zap.Error(err))
		return err
	}
	if fixed > 0 {
		Logger.Info("comment counts reconciled", zap.Int64("posts", fixed))
	}
	orphans, err := r.CountOrphanComments(ctx)
	if err != nil {
		Logger.Error("orphan comment scan failed", zap.Error(err))
		return err
	}
	if orphans > 0 {
		Logger.Warn("comments reference missing posts", zap.Int64("orphans", orphans))
	}
	return nil
}

// StartCommentReconciler runs ReconcileOnce every interval until ctx is done.
func StartCommentReconciler(ctx context.Context, r CommentReconciler, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			// wait first so startup is not slowed by a full scan
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			_ = ReconcileOnce(ctx, r)
		}
	}()
}
