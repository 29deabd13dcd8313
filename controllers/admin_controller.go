package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/middleware"
	"github.com/cppla/grokshare/utils"
)

// AdminController exchanges the operator secret for a session token.
type AdminController struct{}

func NewAdminController() *AdminController { return &AdminController{} }

// CreateSession issues an admin token when the secret matches the configured hash.
func (a *AdminController) CreateSession(ctx *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	cfg := config.Get()
	if cfg.AdminSecretHash == "" {
		utils.Error(ctx, http.StatusServiceUnavailable, 50350, "admin access disabled")
		return
	}
	if !utils.CheckSecret(cfg.AdminSecretHash, req.Secret) {
		utils.Logger.Warn("admin session rejected", zap.String("ip", middleware.ClientIP(ctx)))
		utils.Error(ctx, http.StatusUnauthorized, 40150, "invalid secret")
		return
	}

	ttl := time.Duration(cfg.AdminSessionTTLMinutes) * time.Minute
	token, expiresAt, err := utils.GenerateAdminToken(ttl)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to issue token")
		return
	}
	utils.Success(ctx, gin.H{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// Logout revokes the presented admin token.
func (a *AdminController) Logout(ctx *gin.Context) {
	claims := middleware.AdminClaims(ctx)
	if claims == nil || claims.ExpiresAt == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "admin session required")
		return
	}
	utils.BlacklistToken(claims.ID, claims.ExpiresAt.Time)
	utils.Success(ctx, gin.H{"revoked": true})
}
