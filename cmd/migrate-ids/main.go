// Command migrate-ids re-keys every post so that its primary key equals the
// identifier embedded in its share URL. It is safe to run repeatedly and to
// re-run after an interrupted or partially failed run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/migration"
	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/store"
	"github.com/cppla/grokshare/utils"
)

func main() {
	os.Exit(realMain())
}

// realMain returns the exit status so deferred cleanup runs before the process exits.
func realMain() int {
	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.Open(cfg)
	if err != nil {
		utils.Logger.Error("database connection failed", zap.Error(err))
		return 1
	}
	if err := config.Migrate(db, models.All()...); err != nil {
		utils.Logger.Error("schema migration failed", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := run(ctx, store.New(db), cfg.MigrateWorkers, utils.Logger)
	fmt.Fprintf(os.Stdout, "succeeded=%d skipped=%d errored=%d\n", report.Succeeded, report.Skipped, report.Errored)
	return exitCode(report, err)
}

// run migrates the whole table, drops cached gallery pages when anything moved
// and then checks for comments left without a post.
func run(ctx context.Context, st *store.GormStore, workers int, logger *zap.Logger) (migration.Report, error) {
	m := migration.New(st, logger, migration.WithWorkers(workers))
	report, err := m.Run(ctx)
	if report.Succeeded > 0 {
		// cached gallery pages still list the old ids
		utils.InvalidateGallery()
	}
	if err != nil {
		logger.Error("migration interrupted", zap.Error(err),
			zap.Int("succeeded", report.Succeeded), zap.Int("skipped", report.Skipped), zap.Int("errored", report.Errored))
		return report, err
	}
	logger.Info("migration finished",
		zap.Int("succeeded", report.Succeeded), zap.Int("skipped", report.Skipped), zap.Int("errored", report.Errored))

	orphans, oerr := st.CountOrphanComments(ctx)
	switch {
	case oerr != nil:
		logger.Warn("orphan comment check failed", zap.Error(oerr))
	case orphans > 0:
		logger.Warn("comments reference missing posts", zap.Int64("orphans", orphans))
	}
	return report, nil
}

func exitCode(report migration.Report, err error) int {
	if err != nil || report.Errored > 0 {
		return 1
	}
	return 0
}
