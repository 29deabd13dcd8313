package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/media"
	"github.com/cppla/grokshare/middleware"
	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/routes"
	"github.com/cppla/grokshare/store"
	"github.com/cppla/grokshare/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	if cfg.JWTSecret == "" {
		utils.Logger.Fatal("JWT_SECRET must be set")
	}

	forms, err := media.ParseForms(cfg.MediaForms)
	if err != nil {
		utils.Logger.Fatal("invalid media forms", zap.Error(err))
	}
	resolver := media.NewResolver(forms,
		media.NewHTTPProber(&http.Client{Timeout: 10 * time.Second}),
		media.WithTimeout(time.Duration(cfg.MediaProbeTimeoutMs)*time.Millisecond),
		media.WithMemo(utils.NewRedisMemo(time.Duration(cfg.MediaMemoTTLSeconds)*time.Second)),
		media.WithLogger(utils.Logger),
	)

	db := config.InitDatabase(models.All()...)
	st := store.New(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	utils.StartCommentReconciler(ctx, st, time.Duration(cfg.ReconcileIntervalMinutes)*time.Minute)

	r := routes.SetupRouter(routes.Deps{
		DB:       db,
		Store:    st,
		Resolver: resolver,
		Identity: middleware.DefaultIdentity,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(ctx, ":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
