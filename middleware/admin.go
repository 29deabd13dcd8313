package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/grokshare/utils"
)

const (
	// ContextAdminKey is true when the request carries a valid admin session.
	ContextAdminKey = "is_admin"
	// ContextAdminClaimsKey stores the parsed admin session claims.
	ContextAdminClaimsKey = "admin_claims"
)

// AdminSession marks requests that present a valid admin bearer token.
// Requests without one pass through as ordinary visitors.
func AdminSession() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims := adminClaimsFrom(ctx); claims != nil {
			ctx.Set(ContextAdminKey, true)
			ctx.Set(ContextAdminClaimsKey, claims)
		}
		ctx.Next()
	}
}

// AdminRequired rejects requests that AdminSession did not mark as admin.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !IsAdmin(ctx) {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "admin session required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// IsAdmin reports whether the request holds the admin capability.
func IsAdmin(ctx *gin.Context) bool {
	return ctx.GetBool(ContextAdminKey)
}

// AdminClaims returns the session claims, or nil for visitors.
func AdminClaims(ctx *gin.Context) *utils.AdminClaims {
	v, ok := ctx.Get(ContextAdminClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.AdminClaims)
	return claims
}

func adminClaimsFrom(ctx *gin.Context) *utils.AdminClaims {
	scheme, token, ok := strings.Cut(ctx.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	claims, err := utils.ParseAdminToken(token)
	if err != nil {
		return nil
	}
	if utils.IsTokenBlacklisted(claims.ID) {
		return nil
	}
	return claims
}
