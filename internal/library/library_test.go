package library

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/liveview"
	"github.com/dmitrijs2005/bookly/internal/models"
	"github.com/dmitrijs2005/bookly/internal/ratings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSession struct{ user *models.User }

func (s staticSession) Current() *models.User { return s.user }

type fakeUploader struct {
	mu    sync.Mutex
	names []string
	fail  map[string]error
}

func (f *fakeUploader) Upload(_ context.Context, file blob.File) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, file.Name)
	if err := f.fail[file.Name]; err != nil {
		return "", err
	}
	return "https://cdn.test/" + file.Name, nil
}

var alice = &models.User{ID: "u1", Email: "alice@example.com"}

func pdf(name string) *blob.File {
	return &blob.File{Name: name, ContentType: blob.ContentTypePDF, Size: 4, Body: strings.NewReader("%PDF")}
}

func eventually[T any](t *testing.T, v *liveview.View[T], cond func(liveview.Value[T]) bool) liveview.Value[T] {
	t.Helper()
	var got liveview.Value[T]
	require.Eventually(t, func() bool {
		got = v.Current()
		return cond(got)
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func addBook(t *testing.T, store docstore.Store, title string, category models.Category, rs ...models.Rating) string {
	t.Helper()
	id, err := store.Add(context.Background(), docstore.BooksCollection, models.BookFields(models.Book{Title: title, Category: category, Ratings: rs}))
	require.NoError(t, err)
	return id
}

func TestAddBook(t *testing.T) {
	store := docstore.NewMemoryStore()
	up := &fakeUploader{}
	lib := New(store, up, staticSession{alice})

	id, err := lib.AddBook(context.Background(), NewBook{
		Title:   "  Dune ",
		Author:  "Frank Herbert",
		Content: pdf("dune.pdf"),
		Cover:   &blob.File{Name: "dune.png", ContentType: "image/png", Body: strings.NewReader("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dune.pdf", "dune.png"}, up.names)

	doc, err := store.Get(context.Background(), docstore.BookPath(id))
	require.NoError(t, err)
	assert.Equal(t, docstore.Fields{
		"title":          "Dune",
		"author":         "Frank Herbert",
		"description":    "",
		"category":       "Romance",
		"pdfUrl":         "https://cdn.test/dune.pdf",
		"coverUrl":       "https://cdn.test/dune.png",
		"publisherUid":   "u1",
		"publisherEmail": "alice@example.com",
		"ratings":        []any{},
	}, doc.Fields)
}

func TestAddBook_CoverUploader(t *testing.T) {
	store := docstore.NewMemoryStore()
	content, covers := &fakeUploader{}, &fakeUploader{}
	lib := New(store, content, staticSession{alice}, WithCoverUploader(covers))

	_, err := lib.AddBook(context.Background(), NewBook{
		Title: "x", Author: "y", Category: models.CategoryHorror,
		Content: pdf("x.pdf"),
		Cover:   &blob.File{Name: "x.jpg", ContentType: "image/jpeg", Body: strings.NewReader("j")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x.pdf"}, content.names)
	assert.Equal(t, []string{"x.jpg"}, covers.names)
}

func TestAddBook_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   NewBook
		msg  string
	}{
		{"no title", NewBook{Author: "a", Content: pdf("a.pdf")}, "Title is required."},
		{"no author", NewBook{Title: "t", Content: pdf("a.pdf")}, "Author is required."},
		{"bad category", NewBook{Title: "t", Author: "a", Category: "Poetry", Content: pdf("a.pdf")}, "Please choose a valid category."},
		{"no content", NewBook{Title: "t", Author: "a"}, "Please upload a PDF file."},
		{"content not pdf", NewBook{Title: "t", Author: "a", Content: &blob.File{Name: "a.txt", ContentType: "text/plain"}}, "Please upload a PDF file."},
		{"cover not image", NewBook{Title: "t", Author: "a", Content: pdf("a.pdf"), Cover: &blob.File{Name: "c.pdf", ContentType: blob.ContentTypePDF}}, "Cover must be an image."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUploader{}
			lib := New(docstore.NewMemoryStore(), up, staticSession{alice})
			_, err := lib.AddBook(context.Background(), tt.in)
			require.ErrorIs(t, err, common.ErrValidation)
			assert.Equal(t, tt.msg, common.UserMessage(err))
			assert.Empty(t, up.names)
		})
	}

	_, err := New(docstore.NewMemoryStore(), &fakeUploader{}, staticSession{}).AddBook(context.Background(), NewBook{Title: "t", Author: "a", Content: pdf("a.pdf")})
	assert.Equal(t, "You must be logged in to add a book.", common.UserMessage(err))
}

func TestAddBook_UploadFailureWritesNothing(t *testing.T) {
	for _, failing := range []string{"a.pdf", "c.png"} {
		t.Run(failing, func(t *testing.T) {
			store := docstore.NewMemoryStore()
			up := &fakeUploader{fail: map[string]error{failing: errors.New("503 from provider")}}
			lib := New(store, up, staticSession{alice})

			v, err := liveview.Open(context.Background(), store, liveview.Collection(docstore.BooksCollection, docstore.Query{}), projectAll)
			require.NoError(t, err)
			defer v.Close()

			_, err = lib.AddBook(context.Background(), NewBook{
				Title: "t", Author: "a", Content: pdf("a.pdf"),
				Cover: &blob.File{Name: "c.png", ContentType: "image/png", Body: strings.NewReader("p")},
			})
			require.ErrorIs(t, err, common.ErrUpload)
			assert.Equal(t, "Failed to upload file.", common.UserMessage(err))

			got := eventually(t, v, func(val liveview.Value[[]models.Book]) bool { return val.State == liveview.Ready })
			assert.Empty(t, got.Data)
		})
	}
}

func TestAddBook_WriteFailure(t *testing.T) {
	store := docstore.NewMemoryStore()
	store.FailWrites(errors.New("deadline exceeded"))

	_, err := New(store, &fakeUploader{}, staticSession{alice}).AddBook(context.Background(), NewBook{Title: "t", Author: "a", Content: pdf("a.pdf")})
	require.ErrorIs(t, err, common.ErrRemoteWrite)
	assert.Equal(t, "Failed to add book. Please try again.", common.UserMessage(err))
}

func TestHome(t *testing.T) {
	store := docstore.NewMemoryStore()
	addBook(t, store, "meh", models.CategoryHorror, models.Rating{User: "a", Score: 2})
	addBook(t, store, "great", models.CategoryRomance, models.Rating{User: "a", Score: 5})
	for i := range 10 {
		addBook(t, store, "unrated"+string(rune('0'+i)), models.CategoryAdventure)
	}

	page, err := New(store, &fakeUploader{}, staticSession{}).Home(context.Background())
	require.NoError(t, err)
	defer page.Close()

	trending := eventually(t, page.Trending, func(v liveview.Value[[]models.Book]) bool { return v.State == liveview.Ready })
	require.Len(t, trending.Data, HomeTrending)
	assert.Equal(t, "great", trending.Data[0].Title)
	assert.Equal(t, "meh", trending.Data[1].Title)
	assert.Equal(t, "unrated0", trending.Data[2].Title)

	shelf := eventually(t, page.Shelf.View, func(v liveview.Value[[]models.Book]) bool { return v.State == liveview.Ready })
	require.Len(t, shelf.Data, 1)
	assert.Equal(t, models.CategoryRomance, page.Shelf.Category())

	require.NoError(t, page.Shelf.SetCategory(models.CategoryAdventure))
	shelf = eventually(t, page.Shelf.View, func(v liveview.Value[[]models.Book]) bool {
		return v.State == liveview.Ready && len(v.Data) == 10
	})
	assert.Equal(t, models.CategoryAdventure, shelf.Data[0].Category)
	assert.ErrorIs(t, page.Shelf.SetCategory("Poetry"), common.ErrValidation)
	assert.Equal(t, 2, store.Subscribers(docstore.BooksCollection))
}

func TestExplore(t *testing.T) {
	store := docstore.NewMemoryStore()
	for i := range 14 {
		addBook(t, store, "b"+string(rune('a'+i)), models.CategoryRomance, models.Rating{User: "u", Score: 1 + i%5})
	}

	lib := New(store, &fakeUploader{}, staticSession{}, WithRand(rand.New(rand.NewPCG(1, 1))))
	page, err := lib.Explore(context.Background())
	require.NoError(t, err)
	defer page.Close()

	got := eventually(t, page.Books, func(v liveview.Value[Explore]) bool { return v.State == liveview.Ready })
	assert.Len(t, got.Data.All, 14)
	assert.Len(t, got.Data.Trending, ExploreTrending)
	assert.Len(t, got.Data.Recommended, 10)
	assert.Equal(t, 5.0, got.Data.Trending[0].AverageRating)
	assert.ElementsMatch(t, got.Data.Recommended, dedupe(got.Data.Recommended))
}

func dedupe(bs []models.Book) []models.Book {
	seen := map[string]bool{}
	var out []models.Book
	for _, b := range bs {
		if !seen[b.ID] {
			seen[b.ID] = true
			out = append(out, b)
		}
	}
	return out
}

func TestBookPage_RateAndComment(t *testing.T) {
	store := docstore.NewMemoryStore()
	id := addBook(t, store, "Dune", models.CategoryAdventure, models.Rating{User: "alice@example.com", Score: 3})

	page, err := New(store, &fakeUploader{}, staticSession{alice}).Book(context.Background(), id)
	require.NoError(t, err)
	defer page.Close()

	eventually(t, page.Book, func(v liveview.Value[models.Book]) bool { return v.State == liveview.Ready })

	require.NoError(t, page.Rate(context.Background(), 5))
	book := eventually(t, page.Book, func(v liveview.Value[models.Book]) bool {
		return v.State == liveview.Ready && v.Data.AverageRating == 5
	})
	assert.Equal(t, []models.Rating{{User: "alice@example.com", Score: 5}}, book.Data.Ratings)

	state, pending, _ := page.RatingState()
	assert.Equal(t, ratings.Idle, state)
	assert.Zero(t, pending)

	_, err = page.Comment(context.Background(), "   ")
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = page.Comment(context.Background(), "hi")
	require.NoError(t, err)
	cs := eventually(t, page.Comments, func(v liveview.Value[[]models.Comment]) bool {
		return v.State == liveview.Ready && len(v.Data) == 1
	})
	assert.Equal(t, "hi", cs.Data[0].Text)
	assert.Equal(t, "alice@example.com", cs.Data[0].Author)
}

func TestBookPage_RateFailureKeepsScore(t *testing.T) {
	store := docstore.NewMemoryStore()
	id := addBook(t, store, "Dune", models.CategoryAdventure)

	page, err := New(store, &fakeUploader{}, staticSession{alice}).Book(context.Background(), id)
	require.NoError(t, err)
	defer page.Close()

	store.FailWrites(errors.New("offline"))
	require.ErrorIs(t, page.Rate(context.Background(), 4), common.ErrRemoteWrite)

	state, pending, err := page.RatingState()
	assert.Equal(t, ratings.Failed, state)
	assert.Equal(t, 4, pending)
	assert.ErrorIs(t, err, common.ErrRemoteWrite)

	page.DismissRatingError()
	state, _, _ = page.RatingState()
	assert.Equal(t, ratings.Idle, state)
}

func TestBookPage_NotFound(t *testing.T) {
	page, err := New(docstore.NewMemoryStore(), &fakeUploader{}, staticSession{}).Book(context.Background(), "missing")
	require.NoError(t, err)
	defer page.Close()

	got := eventually(t, page.Book, func(v liveview.Value[models.Book]) bool { return v.State == liveview.Failed })
	assert.Equal(t, "Book not found.", got.Message)
	assert.ErrorIs(t, got.Err, common.ErrNotFound)

	_, err = New(docstore.NewMemoryStore(), &fakeUploader{}, staticSession{}).Book(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
