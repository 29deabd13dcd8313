package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/grokshare/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var counterFields = map[string]struct{}{
	"clicks": {},
	"views":  {},
}

// GormStore implements the repositories on top of gorm.
type GormStore struct {
	db *gorm.DB
}

// New creates a GormStore.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// isUniqueViolation catches drivers or wrappers that bypass gorm's error translation.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value")
}

// InsertPost inserts post as given, including its id and timestamps.
func (s *GormStore) InsertPost(ctx context.Context, post *models.Post) error {
	return translate(s.db.WithContext(ctx).Create(post).Error)
}

// FindPost loads a post by id.
func (s *GormStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

// AllPosts returns every post, oldest first.
func (s *GormStore) AllPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&posts).Error
	return posts, translate(err)
}

// ListPosts returns one gallery page and the total number of matching posts.
func (s *GormStore) ListPosts(ctx context.Context, opts ListOptions) ([]models.Post, int64, error) {
	page, size := clampPage(opts.Page, opts.PageSize)

	q := s.db.WithContext(ctx).Model(&models.Post{})
	switch opts.NSFW {
	case NSFWOnly:
		q = q.Where("nsfw = ?", true)
	case NSFWAll:
	default:
		q = q.Where("nsfw = ?", false)
	}
	if term := strings.TrimSpace(opts.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("prompt LIKE ? OR author_ref LIKE ?", like, like)
	}
	if opts.AuthorRef != "" {
		q = q.Where("author_ref = ?", opts.AuthorRef)
	}
	base := q.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	var posts []models.Post
	err := base.Order(orderFor(opts.Sort)).Offset((page - 1) * size).Limit(size).Find(&posts).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return posts, total, nil
}

func clampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func orderFor(s Sort) string {
	switch s {
	case SortOldest:
		return "created_at ASC, id ASC"
	case SortClicks:
		return "clicks DESC, created_at DESC"
	case SortViews:
		return "views DESC, created_at DESC"
	case SortComments:
		return "comment_count DESC, created_at DESC"
	case SortActivity:
		// portable NULLS LAST
		return "last_comment_at IS NULL, last_comment_at DESC, created_at DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

// UpdatePost applies patch and returns the updated row.
func (s *GormStore) UpdatePost(ctx context.Context, id string, patch PostPatch) (*models.Post, error) {
	if _, err := s.FindPost(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if patch.Prompt != nil {
		fields["prompt"] = *patch.Prompt
	}
	if patch.NSFW != nil {
		fields["nsfw"] = *patch.NSFW
	}
	if patch.VideoURL != nil {
		fields["video_url"] = *patch.VideoURL
	}
	if patch.ImageURL != nil {
		fields["image_url"] = *patch.ImageURL
	}
	if len(fields) > 0 {
		fields["updated_at"] = time.Now()
		err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumns(fields).Error
		if err != nil {
			return nil, translate(err)
		}
	}
	return s.FindPost(ctx, id)
}

// UpdatePostURL rewrites the url column only; updated_at is left alone.
func (s *GormStore) UpdatePostURL(ctx context.Context, id, url string) error {
	err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumn("url", url).Error
	return translate(err)
}

// DeletePost removes a post together with its comments.
func (s *GormStore) DeletePost(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return translate(err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeletePostRow removes the post row only. Comments are expected to have been moved already.
func (s *GormStore) DeletePostRow(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementCounter atomically adds one to clicks or views.
func (s *GormStore) IncrementCounter(ctx context.Context, id, field string) error {
	if _, ok := counterFields[field]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCounter, field)
	}
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumn(field, gorm.Expr(field+" + ?", 1))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListComments returns the comments of a post, oldest first.
func (s *GormStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC, id ASC").Find(&comments).Error
	return comments, translate(err)
}

// FindComment loads a comment by id.
func (s *GormStore) FindComment(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// CreateComment inserts c and bumps comment_count and last_comment_at of its post in one transaction.
func (s *GormStore) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", c.PostID).UpdateColumns(map[string]interface{}{
			"comment_count":   gorm.Expr("comment_count + ?", 1),
			"last_comment_at": c.CreatedAt,
		})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return translate(tx.Create(c).Error)
	})
}

// DeleteComment removes a comment and decrements its post's comment_count.
func (s *GormStore) DeleteComment(ctx context.Context, id string) (*models.Comment, error) {
	var deleted models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&deleted).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return translate(err)
		}
		return translate(tx.Model(&models.Post{}).Where("id = ?", deleted.PostID).
			UpdateColumn("comment_count", gorm.Expr("CASE WHEN comment_count > 0 THEN comment_count - 1 ELSE 0 END")).Error)
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// ReparentComments points every comment of from at to and reports how many moved.
func (s *GormStore) ReparentComments(ctx context.Context, from, to string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", from).UpdateColumn("post_id", to)
	return res.RowsAffected, translate(res.Error)
}

// RecountComments rewrites comment_count where it drifted from the live comment rows.
func (s *GormStore) RecountComments(ctx context.Context) (int64, error) {
	const live = "(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)"
	res := s.db.WithContext(ctx).Exec("UPDATE posts SET comment_count = " + live + " WHERE comment_count <> " + live)
	return res.RowsAffected, translate(res.Error)
}

// CountOrphanComments counts comments whose post no longer exists.
func (s *GormStore) CountOrphanComments(ctx context.Context) (int64, error) {
	var n int64
	db := s.db.WithContext(ctx)
	err := db.Model(&models.Comment{}).
		Where("post_id NOT IN (?)", db.Model(&models.Post{}).Select("id")).
		Count(&n).Error
	return n, translate(err)
}
