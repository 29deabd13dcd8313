// Package store is the record store for posts and comments.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/cppla/grokshare/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert or update violates a unique constraint.
	ErrConflict = errors.New("unique constraint violation")
	// ErrUnknownCounter is returned for counters outside the allowed set.
	ErrUnknownCounter = errors.New("unknown counter")
)

// Sort selects the gallery ordering.
type Sort string

const (
	SortNewest   Sort = "newest"
	SortOldest   Sort = "oldest"
	SortClicks   Sort = "clicks"
	SortViews    Sort = "views"
	SortComments Sort = "comments"
	SortActivity Sort = "activity"
)

// ParseSort maps a query value to a Sort, defaulting to newest.
func ParseSort(s string) Sort {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortOldest:
		return SortOldest
	case SortClicks:
		return SortClicks
	case SortViews:
		return SortViews
	case SortComments:
		return SortComments
	case SortActivity:
		return SortActivity
	default:
		return SortNewest
	}
}

// NSFWFilter selects which classification is listed.
type NSFWFilter string

const (
	NSFWHide NSFWFilter = "hide"
	NSFWOnly NSFWFilter = "only"
	NSFWAll  NSFWFilter = "all"
)

// ParseNSFW maps a query value to a filter, defaulting to hide.
func ParseNSFW(s string) NSFWFilter {
	switch NSFWFilter(strings.ToLower(strings.TrimSpace(s))) {
	case NSFWOnly:
		return NSFWOnly
	case NSFWAll:
		return NSFWAll
	default:
		return NSFWHide
	}
}

// ListOptions filters and pages the gallery.
type ListOptions struct {
	Page      int
	PageSize  int
	Sort      Sort
	NSFW      NSFWFilter
	Search    string
	AuthorRef string
}

// PostPatch carries the editable fields of a post. Nil fields are left untouched.
type PostPatch struct {
	Prompt   *string
	NSFW     *bool
	VideoURL *string
	ImageURL *string
}

// PostRepository is the post side of the store used by the HTTP layer.
type PostRepository interface {
	InsertPost(ctx context.Context, post *models.Post) error
	FindPost(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, opts ListOptions) ([]models.Post, int64, error)
	UpdatePost(ctx context.Context, id string, patch PostPatch) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error
	IncrementCounter(ctx context.Context, id, field string) error
}

// CommentRepository is the comment side of the store used by the HTTP layer.
type CommentRepository interface {
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	FindComment(ctx context.Context, id string) (*models.Comment, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, id string) (*models.Comment, error)
}
