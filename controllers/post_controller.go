package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/media"
	"github.com/cppla/grokshare/middleware"
	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/store"
	"github.com/cppla/grokshare/utils"
)

const (
	maxSubmitURLLen = 512
	maxPromptLen    = 4000

	defaultSiteName = "Grok"
	defaultTitle    = "Grok Creation"
)

// MediaResolver finds a displayable media URL for an identifier or a stored ref.
type MediaResolver interface {
	Resolve(ctx context.Context, id string) (media.Resolution, error)
	ResolveStored(ctx context.Context, stored string) (media.Resolution, error)
	Forms() media.Forms
}

// PostController serves the gallery, post lifecycle, counters and media lookups.
type PostController struct {
	posts    store.PostRepository
	resolver MediaResolver
}

// NewPostController creates a new PostController instance.
func NewPostController(posts store.PostRepository, resolver MediaResolver) *PostController {
	return &PostController{posts: posts, resolver: resolver}
}

type submitRequest struct {
	URL           string `json:"url" binding:"required"`
	Prompt        string `json:"prompt"`
	NSFW          bool   `json:"nsfw"`
	SkipProbe     bool   `json:"skip_probe"`
	CaptchaID     string `json:"captcha_id"`
	CaptchaAnswer string `json:"captcha_answer"`
}

// SubmitPost shares a new creation. The post id is the identifier embedded in the URL.
func (p *PostController) SubmitPost(ctx *gin.Context) {
	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	url := strings.TrimSpace(req.URL)
	if len(url) > maxSubmitURLLen {
		utils.Error(ctx, http.StatusBadRequest, 40021, "url too long")
		return
	}
	id, ok := media.ExtractID(url)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40022, "no post identifier found in url")
		return
	}
	prompt := utils.PlainText(req.Prompt)
	if utils.RuneLen(prompt) > maxPromptLen {
		utils.Error(ctx, http.StatusBadRequest, 40023, "prompt too long")
		return
	}

	cfg := config.Get()
	if cfg.SubmitCaptchaEnabled && !utils.VerifyCaptcha(req.CaptchaID, req.CaptchaAnswer) {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid captcha")
		return
	}
	ip := middleware.ClientIP(ctx)
	if utils.SubmitCooldownActive(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42902, "please wait before sharing again")
		return
	}
	if !utils.SubmitDailyLimitCheck(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42903, "daily share limit reached")
		return
	}

	// reject known duplicates before spending probes on them
	if _, err := p.posts.FindPost(ctx.Request.Context(), id); err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "URL already shared")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to check post")
		return
	}

	var resolved *media.Resolution
	if !req.SkipProbe {
		res, err := p.resolver.Resolve(ctx.Request.Context(), id)
		switch {
		case errors.Is(err, media.ErrUnavailable):
			utils.Error(ctx, http.StatusUnprocessableEntity, 42201, "media not available for this post")
			return
		case err != nil:
			utils.Error(ctx, http.StatusBadGateway, 50201, "media lookup failed")
			return
		}
		resolved = &res
	}
	refs := p.resolver.Forms().RefsFor(id, resolved)

	post := models.Post{
		ID:        id,
		URL:       url,
		Prompt:    prompt,
		AuthorRef: utils.AuthorRef(middleware.ClientID(ctx)),
		VideoURL:  refs.VideoURL,
		ImageURL:  refs.ImageURL,
		SiteName:  defaultSiteName,
		Title:     defaultTitle,
		NSFW:      req.NSFW,
	}
	if err := p.posts.InsertPost(ctx.Request.Context(), &post); err != nil {
		if errors.Is(err, store.ErrConflict) {
			utils.Error(ctx, http.StatusConflict, 40901, "URL already shared")
			return
		}
		utils.Logger.Error("insert post failed", zap.String("id", id), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to create post")
		return
	}

	utils.SubmitCooldownStart(ip)
	utils.SubmitDailyIncrement(ip)
	utils.InvalidateGallery()
	utils.Created(ctx, gin.H{"post": post})
}

func listCacheKey(scope string, opts store.ListOptions) string {
	return fmt.Sprintf("%s%s:sort=%s:nsfw=%s:page=%d:size=%d",
		utils.CacheKeyPosts, scope, opts.Sort, opts.NSFW, opts.Page, opts.PageSize)
}

// ListPosts returns one gallery page.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	opts := store.ListOptions{
		Page:     page,
		PageSize: pageSize,
		Sort:     store.ParseSort(ctx.Query("sort")),
		NSFW:     store.ParseNSFW(ctx.Query("nsfw")),
		Search:   strings.TrimSpace(ctx.Query("search")),
	}
	// search results are not cached to keep the key space bounded
	cacheKey := ""
	if opts.Search == "" {
		cacheKey = listCacheKey("all", opts)
	}
	p.respondList(ctx, cacheKey, opts)
}

// ListAuthorPosts returns the posts shared under one author reference.
func (p *PostController) ListAuthorPosts(ctx *gin.Context) {
	ref := strings.TrimSpace(ctx.Param("ref"))
	if ref == "" || len(ref) > 64 {
		utils.Error(ctx, http.StatusBadRequest, 40025, "invalid author reference")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	opts := store.ListOptions{
		Page:      page,
		PageSize:  pageSize,
		Sort:      store.ParseSort(ctx.Query("sort")),
		NSFW:      store.ParseNSFW(ctx.DefaultQuery("nsfw", string(store.NSFWAll))),
		AuthorRef: ref,
	}
	p.respondList(ctx, listCacheKey("author="+ref, opts), opts)
}

func (p *PostController) respondList(ctx *gin.Context, cacheKey string, opts store.ListOptions) {
	if cacheKey != "" && utils.ServeCached(ctx, cacheKey) {
		return
	}
	posts, total, err := p.posts.ListPosts(ctx.Request.Context(), opts)
	if err != nil {
		utils.Logger.Error("list posts failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	payload := gin.H{
		"items":      posts,
		"pagination": utils.Pagination(opts.Page, opts.PageSize, total),
	}
	utils.SuccessCached(ctx, cacheKey, payload, config.Get().ListCacheTTLSeconds)
}

// GetPost returns a single post.
func (p *PostController) GetPost(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"post": post})
}

type updateRequest struct {
	Prompt       *string `json:"prompt"`
	NSFW         *bool   `json:"nsfw"`
	RefreshMedia bool    `json:"refresh_media"`
}

// UpdatePost edits prompt, classification, or re-resolves media refs.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	p.updatePost(ctx, requesterOf(ctx))
}

func (p *PostController) updatePost(ctx *gin.Context, who requester) {
	var req updateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40026, "invalid request payload")
		return
	}
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	if !who.canModify(post.AuthorRef) {
		utils.Error(ctx, http.StatusForbidden, 40301, "not allowed to edit this post")
		return
	}

	var patch store.PostPatch
	if req.Prompt != nil {
		prompt := utils.PlainText(*req.Prompt)
		if utils.RuneLen(prompt) > maxPromptLen {
			utils.Error(ctx, http.StatusBadRequest, 40023, "prompt too long")
			return
		}
		patch.Prompt = &prompt
	}
	patch.NSFW = req.NSFW
	if req.RefreshMedia {
		id, ok := media.ExtractID(post.URL)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40022, "no post identifier found in url")
			return
		}
		res, err := p.resolver.Resolve(ctx.Request.Context(), id)
		if errors.Is(err, media.ErrUnavailable) {
			utils.Error(ctx, http.StatusUnprocessableEntity, 42201, "media not available for this post")
			return
		} else if err != nil {
			utils.Error(ctx, http.StatusBadGateway, 50201, "media lookup failed")
			return
		}
		refs := p.resolver.Forms().RefsFor(id, &res)
		patch.VideoURL, patch.ImageURL = &refs.VideoURL, &refs.ImageURL
	}

	updated, err := p.posts.UpdatePost(ctx.Request.Context(), post.ID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to update post")
		return
	}
	utils.InvalidateGallery()
	utils.Success(ctx, gin.H{"post": updated})
}

type nsfwRequest struct {
	NSFW *bool `json:"nsfw"`
}

// SetNSFW sets or toggles the NSFW flag. Mounted behind AdminRequired.
func (p *PostController) SetNSFW(ctx *gin.Context) {
	var req nsfwRequest
	// an empty body toggles
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40027, "invalid request payload")
			return
		}
	}
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	next := !post.NSFW
	if req.NSFW != nil {
		next = *req.NSFW
	}
	updated, err := p.posts.UpdatePost(ctx.Request.Context(), post.ID, store.PostPatch{NSFW: &next})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to update post")
		return
	}
	utils.InvalidateGallery()
	utils.Success(ctx, gin.H{"post": updated})
}

// DeletePost removes a post and its comments.
func (p *PostController) DeletePost(ctx *gin.Context) {
	p.deletePost(ctx, requesterOf(ctx))
}

func (p *PostController) deletePost(ctx *gin.Context, who requester) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	if !who.canModify(post.AuthorRef) {
		utils.Error(ctx, http.StatusForbidden, 40302, "not allowed to delete this post")
		return
	}
	if err := p.posts.DeletePost(ctx.Request.Context(), post.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to delete post")
		return
	}
	utils.InvalidateGallery()
	utils.Success(ctx, gin.H{"deleted": post.ID})
}

// RecordClick counts a click-through.
func (p *PostController) RecordClick(ctx *gin.Context) {
	p.increment(ctx, "clicks", true)
}

// RecordView counts a view once per client and post within the dedupe window.
func (p *PostController) RecordView(ctx *gin.Context) {
	first := utils.ViewFirstSeen(ctx.Param("id"), middleware.ClientID(ctx))
	p.increment(ctx, "views", first)
}

func (p *PostController) increment(ctx *gin.Context, field string, count bool) {
	id := ctx.Param("id")
	if !count {
		if _, ok := p.loadPost(ctx); ok {
			utils.Success(ctx, gin.H{"counted": false})
		}
		return
	}
	if err := p.posts.IncrementCounter(ctx.Request.Context(), id, field); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to record "+field)
		return
	}
	utils.Success(ctx, gin.H{"counted": true})
}

// ResolveMedia finds a displayable media url for a stored post.
func (p *PostController) ResolveMedia(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	var (
		res media.Resolution
		err error
	)
	switch {
	case post.VideoURL != "":
		res, err = p.resolver.ResolveStored(ctx.Request.Context(), post.VideoURL)
	case post.ImageURL != "":
		res, err = p.resolver.ResolveStored(ctx.Request.Context(), post.ImageURL)
	default:
		id, found := media.ExtractID(post.URL)
		if !found {
			utils.Success(ctx, gin.H{"available": false})
			return
		}
		res, err = p.resolver.Resolve(ctx.Request.Context(), id)
	}
	if err != nil {
		if !errors.Is(err, media.ErrUnavailable) {
			utils.Logger.Warn("media resolve failed", zap.String("post", post.ID), zap.Error(err))
		}
		utils.Success(ctx, gin.H{"available": false})
		return
	}
	utils.Success(ctx, gin.H{
		"available": true,
		"url":       res.URL,
		"kind":      res.Kind,
		"attempts":  res.Attempts,
		"cached":    res.Cached,
	})
}

// loadPost fetches the :id post and writes the error response when it cannot.
func (p *PostController) loadPost(ctx *gin.Context) (*models.Post, bool) {
	post, err := p.posts.FindPost(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to load post")
		}
		return nil, false
	}
	return post, true
}
