package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/grokshare/media"
	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/store"
)

func newStore(t *testing.T) *store.GormStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return store.New(db)
}

func testForms(t *testing.T) media.Forms {
	t.Helper()
	forms, err := media.ParseForms([]string{
		"video=https://cdn.test/v/{id}.mp4",
		"poster=https://cdn.test/v/{id}_thumbnail.jpg",
	})
	require.NoError(t, err)
	return forms
}

func TestSeedKeysByIdentifier(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	n, _, err := seed(ctx, st, testForms(t), options{posts: 5, comments: 3, seed: 7})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	all, err := st.AllPosts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for _, p := range all {
		id, ok := media.ExtractID(p.URL)
		require.True(t, ok)
		assert.Equal(t, id, p.ID)
		assert.Equal(t, "https://cdn.test/v/"+id+".mp4", p.VideoURL)
	}
}

func TestSeedLegacyUsesSurrogateIDs(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, comments, err := seed(ctx, st, testForms(t), options{posts: 4, comments: 2, legacy: true, seed: 11})
	require.NoError(t, err)

	all, err := st.AllPosts(ctx)
	require.NoError(t, err)
	var counted int64
	for _, p := range all {
		id, ok := media.ExtractID(p.URL)
		require.True(t, ok)
		assert.NotEqual(t, id, p.ID)
		counted += p.CommentCount
	}
	assert.Equal(t, int64(comments), counted)
}
