package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/grokshare/middleware"
	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/store"
	"github.com/cppla/grokshare/utils"
)

// CommentController manages the comment thread of each post.
type CommentController struct {
	comments store.CommentRepository
}

func NewCommentController(comments store.CommentRepository) *CommentController {
	return &CommentController{comments: comments}
}

// ListComments returns a post's comments, oldest first.
func (c *CommentController) ListComments(ctx *gin.Context) {
	items, err := c.comments.ListComments(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to list comments")
		return
	}
	if items == nil {
		items = []models.Comment{}
	}
	utils.Success(ctx, gin.H{"items": items})
}

// CreateComment appends a comment to a post.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	content := utils.PlainText(req.Content)
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "comment cannot be empty")
		return
	}
	if utils.RuneLen(content) > models.CommentMaxLength {
		utils.Error(ctx, http.StatusBadRequest, 40032, "comment too long")
		return
	}

	comment := models.Comment{
		PostID:    ctx.Param("id"),
		Content:   content,
		AuthorRef: utils.AuthorRef(middleware.ClientID(ctx)),
	}
	if err := c.comments.CreateComment(ctx.Request.Context(), &comment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to create comment")
		return
	}
	// comment and activity sorts depend on the counters just bumped
	utils.InvalidateGallery()
	utils.Created(ctx, gin.H{"comment": comment})
}

// DeleteComment removes a comment. Only its author or an admin may do so.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	c.deleteComment(ctx, requesterOf(ctx))
}

func (c *CommentController) deleteComment(ctx *gin.Context, who requester) {
	id := ctx.Param("commentId")
	comment, err := c.comments.FindComment(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to load comment")
		return
	}
	if !who.canModify(comment.AuthorRef) {
		utils.Error(ctx, http.StatusForbidden, 40303, "not allowed to delete this comment")
		return
	}
	if _, err := c.comments.DeleteComment(ctx.Request.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to delete comment")
		return
	}
	utils.InvalidateGallery()
	utils.Success(ctx, gin.H{"deleted": id})
}
