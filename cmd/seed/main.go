// Command seed fills the database with fake gallery posts and comments.
// With -legacy it stores surrogate numeric ids so that migrate-ids has work to do.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/media"
	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/store"
	"github.com/cppla/grokshare/utils"
)

type options struct {
	posts    int
	comments int
	legacy   bool
	seed     int64
}

func main() {
	var opts options
	flag.IntVar(&opts.posts, "posts", 50, "number of posts to create")
	flag.IntVar(&opts.comments, "comments", 5, "maximum comments per post")
	flag.BoolVar(&opts.legacy, "legacy", false, "store surrogate numeric ids instead of identifiers")
	flag.Int64Var(&opts.seed, "seed", 0, "random seed, 0 picks one")
	flag.Parse()

	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	forms, err := media.ParseForms(cfg.MediaForms)
	if err != nil {
		utils.Logger.Fatal("invalid media forms", zap.Error(err))
	}
	db := config.InitDatabase(models.All()...)

	n, c, err := seed(context.Background(), store.New(db), forms, opts)
	if err != nil {
		utils.Logger.Error("seed failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Printf("created %d posts and %d comments\n", n, c)
}

// seed inserts fake rows and reports how many posts and comments were created.
func seed(ctx context.Context, st *store.GormStore, forms media.Forms, opts options) (int, int, error) {
	faker := gofakeit.New(opts.seed)
	now := time.Now()
	authors := make([]string, 8)
	for i := range authors {
		authors[i] = utils.AuthorRef(faker.Username())
	}

	posts, comments := 0, 0
	for i := 0; i < opts.posts; i++ {
		ident := faker.UUID()
		id := ident
		if opts.legacy {
			id = strconv.Itoa(faker.Number(100000, 999999999))
		}
		refs := forms.RefsFor(ident, nil)
		post := &models.Post{
			ID:        id,
			URL:       media.ShareURL(ident),
			Prompt:    faker.Sentence(faker.Number(4, 16)),
			AuthorRef: authors[faker.Number(0, len(authors)-1)],
			VideoURL:  refs.VideoURL,
			ImageURL:  refs.ImageURL,
			SiteName:  "Grok",
			Title:     "Grok Creation",
			NSFW:      faker.Number(1, 10) == 1,
			Clicks:    int64(faker.Number(0, 500)),
			Views:     int64(faker.Number(0, 2000)),
			CreatedAt: faker.DateRange(now.AddDate(0, 0, -30), now),
		}
		if err := st.InsertPost(ctx, post); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return posts, comments, fmt.Errorf("insert post %s: %w", id, err)
		}
		posts++

		for j := faker.Number(0, opts.comments); j > 0; j-- {
			c := &models.Comment{
				PostID:    post.ID,
				Content:   faker.Sentence(faker.Number(3, 20)),
				AuthorRef: authors[faker.Number(0, len(authors)-1)],
				CreatedAt: faker.DateRange(post.CreatedAt, now),
			}
			if err := st.CreateComment(ctx, c); err != nil {
				return posts, comments, fmt.Errorf("insert comment on %s: %w", post.ID, err)
			}
			comments++
		}
	}
	return posts, comments, nil
}
