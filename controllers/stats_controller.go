package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/utils"
)

// StatsController provides gallery statistics such as counts and daily page views.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate statistics for the gallery.
func (s *StatsController) GetStats(ctx *gin.Context) {
	if utils.ServeCached(ctx, utils.CacheKeyStats) {
		return
	}
	db := s.db.WithContext(ctx.Request.Context())

	var totals struct {
		Posts  int64
		NSFW   int64
		Clicks int64
		Views  int64
	}
	// failures fall back to zero instead of failing the whole endpoint
	if err := db.Model(&models.Post{}).
		Select("COUNT(*) AS posts, COALESCE(SUM(CASE WHEN nsfw THEN 1 ELSE 0 END),0) AS nsfw, " +
			"COALESCE(SUM(clicks),0) AS clicks, COALESCE(SUM(views),0) AS views").
		Scan(&totals).Error; err != nil {
		utils.Sugar.Warnf("stats totals failed: %v", err)
	}

	var commentCount int64
	if err := db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}

	var authorCount int64
	if err := db.Model(&models.Post{}).Where("author_ref <> ''").
		Distinct("author_ref").Count(&authorCount).Error; err != nil {
		authorCount = 0
	}

	// string date equality avoids timezone/type mismatches with the DATE column
	var dailyPV int64
	today := time.Now().In(time.Local).Format("2006-01-02")
	if err := db.Model(&models.PageView{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(count),0)").
		Scan(&dailyPV).Error; err != nil {
		dailyPV = 0
	}

	utils.SuccessCached(ctx, utils.CacheKeyStats, gin.H{
		"post_count":     totals.Posts,
		"nsfw_count":     totals.NSFW,
		"comment_count":  commentCount,
		"author_count":   authorCount,
		"total_clicks":   totals.Clicks,
		"total_views":    totals.Views,
		"daily_pv_count": dailyPV,
	}, config.Get().ListCacheTTLSeconds)
}

// GetPostStats returns page views and counters for one post.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	id := ctx.Param("id")
	db := s.db.WithContext(ctx.Request.Context())

	var post models.Post
	if err := db.Select("id", "clicks", "views", "comment_count").Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load post stats")
		return
	}

	var pv int64
	if err := db.Model(&models.PageView{}).
		Where("path = ?", "/api/v1/posts/"+id).
		Select("COALESCE(SUM(count),0)").
		Scan(&pv).Error; err != nil {
		pv = 0
	}

	utils.Success(ctx, gin.H{
		"pv":             pv,
		"clicks":         post.Clicks,
		"views":          post.Views,
		"comments_count": post.CommentCount,
	})
}
