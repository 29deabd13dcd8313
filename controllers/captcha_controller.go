package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/utils"
)

// GetCaptcha issues a submission captcha when the feature is enabled.
func GetCaptcha(ctx *gin.Context) {
	if !config.Get().SubmitCaptchaEnabled {
		utils.Success(ctx, gin.H{"enabled": false})
		return
	}
	id, image, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{
		"enabled":       true,
		"captcha_id":    id,
		"captcha_image": image,
	})
}
