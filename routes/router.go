package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/controllers"
	"github.com/cppla/grokshare/middleware"
	"github.com/cppla/grokshare/store"
	"github.com/cppla/grokshare/utils"
)

// Deps are the collaborators the router hands to controllers.
type Deps struct {
	DB       *gorm.DB
	Store    *store.GormStore
	Resolver controllers.MediaResolver
	Identity middleware.IdentityProvider
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// request log goes to its own rolling file; the app logger is the fallback
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		gl = utils.Logger
	}
	r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(gl, true))
	r.Use(middleware.Prometheus())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.ClientIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.ClientIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	postController := controllers.NewPostController(deps.Store, deps.Resolver)
	commentController := controllers.NewCommentController(deps.Store)
	statsController := controllers.NewStatsController(deps.DB)
	configController := controllers.NewConfigController(deps.Resolver.Forms())
	adminController := controllers.NewAdminController()

	api := r.Group("/api/v1")
	api.Use(
		middleware.ClientIdentity(deps.Identity),
		middleware.AdminSession(),
		middleware.RateLimit(cfg.RateLimitPerMinute),
		middleware.PageViewRecorder(deps.DB, "/api/v1/posts", "/api/v1/posts/:id"),
	)

	api.GET("/posts", postController.ListPosts)
	api.POST("/posts", postController.SubmitPost)
	api.GET("/posts/:id", postController.GetPost)
	api.PUT("/posts/:id", postController.UpdatePost)
	api.DELETE("/posts/:id", postController.DeletePost)
	api.PATCH("/posts/:id/nsfw", middleware.AdminRequired(), postController.SetNSFW)
	api.POST("/posts/:id/click", postController.RecordClick)
	api.POST("/posts/:id/view", postController.RecordView)
	api.GET("/posts/:id/media", postController.ResolveMedia)
	api.GET("/posts/:id/comments", commentController.ListComments)
	api.POST("/posts/:id/comments", commentController.CreateComment)
	api.DELETE("/comments/:commentId", commentController.DeleteComment)
	api.GET("/users/:ref/posts", postController.ListAuthorPosts)

	api.GET("/stats", statsController.GetStats)
	api.GET("/posts/:id/stats", statsController.GetPostStats)
	api.GET("/config/notice", configController.GetNotice)
	api.GET("/config/gallery", configController.GetGallery)
	api.GET("/captcha", controllers.GetCaptcha)

	adminGroup := api.Group("/admin")
	adminGroup.POST("/session", adminController.CreateSession)
	adminGroup.POST("/logout", middleware.AdminRequired(), adminController.Logout)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
