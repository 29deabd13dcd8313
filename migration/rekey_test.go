package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/store"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func shareURL(id string) string {
	return "https://grok.com/imagine/post/" + id
}

func insertLegacy(t *testing.T, db *gorm.DB, id, url string, comments ...string) models.Post {
	t.Helper()
	last := time.Now().Add(-time.Minute).Truncate(time.Second)
	p := models.Post{
		ID:            id,
		URL:           url,
		Prompt:        "prompt for " + id,
		AuthorRef:     "client-" + id,
		VideoURL:      "https://cdn.example/" + id + ".mp4",
		NSFW:          true,
		Clicks:        7,
		Views:         11,
		CommentCount:  int64(len(comments)),
		LastCommentAt: &last,
		CreatedAt:     time.Now().Add(-24 * time.Hour).Truncate(time.Second),
	}
	require.NoError(t, db.Create(&p).Error)
	for _, c := range comments {
		require.NoError(t, db.Create(&models.Comment{PostID: id, Content: c, AuthorRef: "commenter"}).Error)
	}
	return p
}

func loadPost(t *testing.T, db *gorm.DB, id string) (models.Post, bool) {
	t.Helper()
	var p models.Post
	err := db.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, false
	}
	require.NoError(t, err)
	return p, true
}

func commentsOf(t *testing.T, db *gorm.DB, postID string) []models.Comment {
	t.Helper()
	var cs []models.Comment
	require.NoError(t, db.Where("post_id = ?", postID).Order("content").Find(&cs).Error)
	return cs
}

// faultyStore fails selected operations once a fault is set.
type faultyStore struct {
	*store.GormStore
	insertErr   error
	reparentErr error
	deleteErr   error
}

func (f *faultyStore) InsertPost(ctx context.Context, p *models.Post) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.GormStore.InsertPost(ctx, p)
}

func (f *faultyStore) ReparentComments(ctx context.Context, from, to string) (int64, error) {
	if f.reparentErr != nil {
		return 0, f.reparentErr
	}
	return f.GormStore.ReparentComments(ctx, from, to)
}

func (f *faultyStore) DeletePostRow(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.GormStore.DeletePostRow(ctx, id)
}

func TestRunRekeysLegacyPost(t *testing.T) {
	db := newTestDB(t)
	target := uuid.NewString()
	before := insertLegacy(t, db, "42", shareURL(target), "hello", "world")
	insertLegacy(t, db, "43", "https://example.com/other/path")
	keyed := uuid.NewString()
	insertLegacy(t, db, keyed, shareURL(keyed))
	original := commentsOf(t, db, "42")
	require.Len(t, original, 2)

	report, err := New(store.New(db), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, report.Errored)

	_, oldExists := loadPost(t, db, "42")
	assert.False(t, oldExists)

	after, ok := loadPost(t, db, target)
	require.True(t, ok)
	assert.Equal(t, before.URL, after.URL)
	assert.Equal(t, before.Prompt, after.Prompt)
	assert.Equal(t, before.AuthorRef, after.AuthorRef)
	assert.Equal(t, before.VideoURL, after.VideoURL)
	assert.Equal(t, before.NSFW, after.NSFW)
	assert.Equal(t, before.Clicks, after.Clicks)
	assert.Equal(t, before.Views, after.Views)
	assert.Equal(t, before.CommentCount, after.CommentCount)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))

	moved := commentsOf(t, db, target)
	require.Len(t, moved, 2)
	assert.Equal(t, "hello", moved[0].Content)
	for i := range moved {
		assert.Equal(t, original[i].ID, moved[i].ID)
		assert.Equal(t, original[i].Content, moved[i].Content)
		assert.Equal(t, original[i].AuthorRef, moved[i].AuthorRef)
		assert.True(t, original[i].CreatedAt.Equal(moved[i].CreatedAt), "comment %s created_at changed", moved[i].ID)
	}
	assert.Empty(t, commentsOf(t, db, "42"))

	_, stillThere := loadPost(t, db, "43")
	assert.True(t, stillThere)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 3; i++ {
		insertLegacy(t, db, fmt.Sprint(100+i), shareURL(uuid.NewString()), "c1")
	}
	insertLegacy(t, db, "no-id", "https://example.com/gallery/7")

	m := New(store.New(db), nil)
	first, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Succeeded)

	snapshot := func() ([]models.Post, []models.Comment) {
		var ps []models.Post
		var cs []models.Comment
		require.NoError(t, db.Order("id").Find(&ps).Error)
		require.NoError(t, db.Order("id").Find(&cs).Error)
		return ps, cs
	}
	postsAfterFirst, commentsAfterFirst := snapshot()

	second, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Succeeded)
	assert.Zero(t, second.Errored)
	assert.Equal(t, 4, second.Skipped)

	postsAfterSecond, commentsAfterSecond := snapshot()
	assert.Equal(t, postsAfterFirst, postsAfterSecond)
	assert.Equal(t, commentsAfterFirst, commentsAfterSecond)
}

func TestUnrelatedPostAtTargetIsNeverTouched(t *testing.T) {
	db := newTestDB(t)
	b := uuid.NewString()
	unrelated := insertLegacy(t, db, b, shareURL(b)+"?ref=feed", "b-comment")
	a := insertLegacy(t, db, "A", shareURL(b), "a-comment")

	report, err := New(store.New(db), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errored)

	var res Result
	for _, r := range report.Results {
		if r.OldID == "A" {
			res = r
		}
	}
	assert.Equal(t, Errored, res.Outcome)
	assert.Equal(t, PhaseGuard, res.Phase)
	assert.ErrorIs(t, res.Err, store.ErrConflict)

	gotB, ok := loadPost(t, db, b)
	require.True(t, ok)
	assert.Equal(t, unrelated.URL, gotB.URL)
	assert.Equal(t, unrelated.Prompt, gotB.Prompt)

	gotA, ok := loadPost(t, db, "A")
	require.True(t, ok)
	assert.Equal(t, a.URL, gotA.URL, "no placeholder left behind")

	assert.Len(t, commentsOf(t, db, "A"), 1)
	assert.Len(t, commentsOf(t, db, b), 1)
}

func TestResumeAfterDeleteFailure(t *testing.T) {
	db := newTestDB(t)
	target := uuid.NewString()
	before := insertLegacy(t, db, "9", shareURL(target), "x")

	faulty := &faultyStore{GormStore: store.New(db), deleteErr: errors.New("connection reset")}
	first, err := New(faulty, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Errored)
	assert.Equal(t, PhaseDelete, first.Results[0].Phase)

	old, ok := loadPost(t, db, "9")
	require.True(t, ok)
	assert.True(t, IsPlaceholder(old.URL))
	_, ok = loadPost(t, db, target)
	require.True(t, ok)

	second, err := New(store.New(db), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Succeeded)
	assert.Equal(t, 1, second.Skipped, "the already inserted copy is a no-op")
	assert.Zero(t, second.Errored)

	_, ok = loadPost(t, db, "9")
	assert.False(t, ok)
	after, ok := loadPost(t, db, target)
	require.True(t, ok)
	assert.Equal(t, before.URL, after.URL)
	assert.Len(t, commentsOf(t, db, target), 1)
}

func TestReparentFailureKeepsOldRowForNextRun(t *testing.T) {
	db := newTestDB(t)
	target := uuid.NewString()
	insertLegacy(t, db, "5", shareURL(target), "one", "two")

	faulty := &faultyStore{GormStore: store.New(db), reparentErr: errors.New("timeout")}
	first, err := New(faulty, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Errored)
	assert.Equal(t, PhaseReparent, first.Results[0].Phase)

	_, ok := loadPost(t, db, "5")
	require.True(t, ok, "old row must survive while it still owns comments")
	assert.Len(t, commentsOf(t, db, "5"), 2)

	second, err := New(store.New(db), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Succeeded)
	for _, r := range second.Results {
		if r.OldID == "5" {
			assert.True(t, r.Resumed)
			assert.EqualValues(t, 2, r.MovedComments)
		}
	}
	_, ok = loadPost(t, db, "5")
	assert.False(t, ok)
	assert.Len(t, commentsOf(t, db, target), 2)
}

func TestInsertFailureRestoresURL(t *testing.T) {
	db := newTestDB(t)
	target := uuid.NewString()
	before := insertLegacy(t, db, "3", shareURL(target))

	faulty := &faultyStore{GormStore: store.New(db), insertErr: store.ErrConflict}
	report, err := New(faulty, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Errored)
	assert.Equal(t, PhaseInsert, report.Results[0].Phase)
	assert.Equal(t, "insert conflicted", report.Results[0].Reason)

	old, ok := loadPost(t, db, "3")
	require.True(t, ok)
	assert.Equal(t, before.URL, old.URL)
	_, ok = loadPost(t, db, target)
	assert.False(t, ok)
}

func TestPlaceholderWithoutSourceIsErrored(t *testing.T) {
	db := newTestDB(t)
	insertLegacy(t, db, "7", PlaceholderPrefix+"7")

	report, err := New(store.New(db), nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Errored)
	assert.Equal(t, PhaseDerive, report.Results[0].Phase)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	db := newTestDB(t)
	insertLegacy(t, db, "1", shareURL(uuid.NewString()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(store.New(db), nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
	_, ok := loadPost(t, db, "1")
	assert.True(t, ok)
}

func TestRunWithWorkers(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 20; i++ {
		insertLegacy(t, db, fmt.Sprint(i), shareURL(uuid.NewString()), "c")
	}

	report, err := New(store.New(db), nil, WithWorkers(4)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, report.Succeeded)
	assert.Len(t, report.Results, 20)

	var orphans int64
	require.NoError(t, db.Model(&models.Comment{}).
		Where("post_id NOT IN (?)", db.Model(&models.Post{}).Select("id")).Count(&orphans).Error)
	assert.Zero(t, orphans)

	var distinct int64
	require.NoError(t, db.Model(&models.Post{}).Distinct("url").Count(&distinct).Error)
	assert.EqualValues(t, 20, distinct)
}

func TestPlaceholderRoundTrip(t *testing.T) {
	target := "22460adb-aa2b-421f-8b7a-ba3cba8703af"
	ph := Placeholder("42", shareURL(target), target)
	assert.True(t, IsPlaceholder(ph))
	oldID, src, ok := ParsePlaceholder(ph)
	require.True(t, ok)
	assert.Equal(t, "42", oldID)
	assert.Equal(t, "https://grok.com/imagine/post/22460adb-aa2b-421f-8b7a-ba3cba8703af", src)
	assert.False(t, isCompactPayload(src))

	_, _, ok = ParsePlaceholder("https://grok.com/imagine/post/x")
	assert.False(t, ok)
}

func TestPlaceholderFitsURLColumn(t *testing.T) {
	target := uuid.NewString()
	long := shareURL(target) + "?ref=" + strings.Repeat("x", 900)

	ph := Placeholder("123456", long, target)
	assert.LessOrEqual(t, len(ph), maxStoredURL)
	_, payload, ok := ParsePlaceholder(ph)
	require.True(t, ok)
	assert.True(t, isCompactPayload(payload))
	assert.Equal(t, "post/"+target, payload)
}

func TestRunRekeysPostWithOverlongURL(t *testing.T) {
	db := newTestDB(t)
	target := uuid.NewString()
	long := shareURL(target) + "?ref=" + strings.Repeat("x", 900)
	insertLegacy(t, db, "5", long, "kept")

	report, err := New(store.New(db), nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded)

	after, ok := loadPost(t, db, target)
	require.True(t, ok)
	assert.Equal(t, long, after.URL)
	assert.Len(t, commentsOf(t, db, target), 1)
}

func TestResumeFromCompactPlaceholder(t *testing.T) {
	db := newTestDB(t)
	target := uuid.NewString()
	// an earlier run detached an overlong url and stopped before inserting
	insertLegacy(t, db, "6", PlaceholderPrefix+"6|post/"+target, "c")

	report, err := New(store.New(db), nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded)
	assert.True(t, report.Results[0].Resumed)

	after, ok := loadPost(t, db, target)
	require.True(t, ok)
	assert.Equal(t, shareURL(target), after.URL)
	_, ok = loadPost(t, db, "6")
	assert.False(t, ok)
	assert.Len(t, commentsOf(t, db, target), 1)
}
