package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/media"
	"github.com/cppla/grokshare/store"
	"github.com/cppla/grokshare/utils"
)

// ConfigController serves environment-driven UI configuration.
type ConfigController struct {
	forms media.Forms
}

func NewConfigController(forms media.Forms) *ConfigController {
	return &ConfigController{forms: forms}
}

// GetNotice returns announcement/notice content configured via config.
func (c *ConfigController) GetNotice(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"title": cfg.NoticeTitle,
		"html":  utils.Sanitize(cfg.NoticeHTML),
	})
}

// GetGallery describes the options the gallery API accepts.
func (c *ConfigController) GetGallery(ctx *gin.Context) {
	cfg := config.Get()
	forms := make([]gin.H, 0, len(c.forms))
	for _, f := range c.forms {
		forms = append(forms, gin.H{"kind": f.Kind, "template": f.Template})
	}
	utils.Success(ctx, gin.H{
		"sorts": []store.Sort{
			store.SortNewest, store.SortOldest, store.SortClicks,
			store.SortViews, store.SortComments, store.SortActivity,
		},
		"nsfw_filters":      []store.NSFWFilter{store.NSFWHide, store.NSFWOnly, store.NSFWAll},
		"default_page_size": 10,
		"max_page_size":     100,
		"captcha_enabled":   cfg.SubmitCaptchaEnabled,
		"media_forms":       forms,
	})
}
