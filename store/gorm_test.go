package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/grokshare/models"
)

func newTestStore(t *testing.T) (*GormStore, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Post{}, &models.Comment{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return New(db), db
}

func seedPost(t *testing.T, s *GormStore, id, url string, mutate ...func(*models.Post)) *models.Post {
	t.Helper()
	p := &models.Post{ID: id, URL: url, Prompt: "prompt " + id, AuthorRef: "author-" + id}
	for _, fn := range mutate {
		fn(p)
	}
	require.NoError(t, s.InsertPost(context.Background(), p))
	return p
}

func TestInsertPostDuplicateURLIsConflict(t *testing.T) {
	s, _ := newTestStore(t)
	seedPost(t, s, "a", "https://grok.com/imagine/post/one")

	err := s.InsertPost(context.Background(), &models.Post{ID: "b", URL: "https://grok.com/imagine/post/one"})
	assert.ErrorIs(t, err, ErrConflict)

	err = s.InsertPost(context.Background(), &models.Post{ID: "a", URL: "https://grok.com/imagine/post/two"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInsertPostTranslatesMySQLDuplicate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `posts`").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'https://x' for key 'posts.idx_posts_url'"))
	mock.ExpectRollback()

	err = New(db).InsertPost(context.Background(), &models.Post{ID: "a", URL: "https://x"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPostNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.FindPost(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPostsFiltersAndSorts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	recent := time.Now()

	seedPost(t, s, "p1", "u1", func(p *models.Post) { p.CreatedAt = base; p.Clicks = 5; p.Prompt = "a red fox" })
	seedPost(t, s, "p2", "u2", func(p *models.Post) { p.CreatedAt = base.Add(time.Minute); p.Clicks = 9; p.LastCommentAt = &recent })
	seedPost(t, s, "p3", "u3", func(p *models.Post) { p.CreatedAt = base.Add(2 * time.Minute); p.NSFW = true })

	posts, total, err := s.ListPosts(ctx, ListOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].ID)

	posts, total, err = s.ListPosts(ctx, ListOptions{NSFW: NSFWOnly})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "p3", posts[0].ID)

	posts, _, err = s.ListPosts(ctx, ListOptions{NSFW: NSFWAll, Sort: SortClicks})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"p2", "p1", "p3"}, ids(posts))

	posts, _, err = s.ListPosts(ctx, ListOptions{NSFW: NSFWAll, Sort: SortActivity})
	require.NoError(t, err)
	assert.Equal(t, "p2", posts[0].ID, "commented post first, never-commented posts after")

	posts, total, err = s.ListPosts(ctx, ListOptions{Search: "fox"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "p1", posts[0].ID)

	posts, _, err = s.ListPosts(ctx, ListOptions{NSFW: NSFWAll, AuthorRef: "author-p3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, ids(posts))

	posts, total, err = s.ListPosts(ctx, ListOptions{NSFW: NSFWAll, Sort: SortOldest, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, []string{"p3"}, ids(posts))
}

func ids(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestIncrementCounter(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedPost(t, s, "p1", "u1")

	require.NoError(t, s.IncrementCounter(ctx, "p1", "clicks"))
	require.NoError(t, s.IncrementCounter(ctx, "p1", "clicks"))
	require.NoError(t, s.IncrementCounter(ctx, "p1", "views"))

	p, err := s.FindPost(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.Clicks)
	assert.EqualValues(t, 1, p.Views)

	assert.ErrorIs(t, s.IncrementCounter(ctx, "p1", "comment_count"), ErrUnknownCounter)
	assert.ErrorIs(t, s.IncrementCounter(ctx, "nope", "clicks"), ErrNotFound)
}

func TestUpdatePostAppliesPatch(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedPost(t, s, "p1", "u1")

	prompt, nsfw := "edited", true
	p, err := s.UpdatePost(ctx, "p1", PostPatch{Prompt: &prompt, NSFW: &nsfw})
	require.NoError(t, err)
	assert.Equal(t, "edited", p.Prompt)
	assert.True(t, p.NSFW)
	assert.Equal(t, "author-p1", p.AuthorRef)

	_, err = s.UpdatePost(ctx, "nope", PostPatch{Prompt: &prompt})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommentsMaintainPostCounters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedPost(t, s, "p1", "u1")

	first := &models.Comment{PostID: "p1", Content: "first", CreatedAt: time.Now().Add(-time.Minute)}
	second := &models.Comment{PostID: "p1", Content: "second"}
	require.NoError(t, s.CreateComment(ctx, first))
	require.NoError(t, s.CreateComment(ctx, second))
	assert.NotEmpty(t, first.ID)

	p, err := s.FindPost(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.CommentCount)
	require.NotNil(t, p.LastCommentAt)
	assert.WithinDuration(t, second.CreatedAt, *p.LastCommentAt, time.Second)

	list, err := s.ListComments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Content)

	deleted, err := s.DeleteComment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", deleted.PostID)
	p, err = s.FindPost(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.CommentCount)

	err = s.CreateComment(ctx, &models.Comment{PostID: "missing", Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.DeleteComment(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePostCascadesComments(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	seedPost(t, s, "p1", "u1")
	require.NoError(t, s.CreateComment(ctx, &models.Comment{PostID: "p1", Content: "c"}))

	require.NoError(t, s.DeletePost(ctx, "p1"))
	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.ErrorIs(t, s.DeletePost(ctx, "p1"), ErrNotFound)
}

func TestReparentRecountAndOrphans(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	seedPost(t, s, "old", "u1")
	seedPost(t, s, "new", "u2")
	require.NoError(t, s.CreateComment(ctx, &models.Comment{PostID: "old", Content: "a"}))
	require.NoError(t, s.CreateComment(ctx, &models.Comment{PostID: "old", Content: "b"}))

	moved, err := s.ReparentComments(ctx, "old", "new")
	require.NoError(t, err)
	assert.EqualValues(t, 2, moved)

	fixed, err := s.RecountComments(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fixed)
	p, err := s.FindPost(ctx, "new")
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.CommentCount)

	require.NoError(t, db.Create(&models.Comment{PostID: "gone", Content: "orphan"}).Error)
	n, err := s.CountOrphanComments(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestParseQueryValues(t *testing.T) {
	assert.Equal(t, SortNewest, ParseSort(""))
	assert.Equal(t, SortActivity, ParseSort(" Activity "))
	assert.Equal(t, NSFWHide, ParseNSFW("bogus"))
	assert.Equal(t, NSFWAll, ParseNSFW("all"))
}
