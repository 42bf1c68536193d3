// Package library composes live views, ratings and comments into the pages
// the client renders: home, explore, a single book and the add-book form.
package library

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/comments"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/liveview"
	"github.com/dmitrijs2005/bookly/internal/logging"
	"github.com/dmitrijs2005/bookly/internal/models"
	"github.com/dmitrijs2005/bookly/internal/projector"
)

const (
	// HomeWindow is how many books the home page reads for its trending row.
	HomeWindow       = 50
	HomeTrending     = 8
	ExploreTrending  = 10
	loadBooksMessage = "Failed to load books."
	loadBookMessage  = "Failed to load book data."
)

// Session reports the signed-in user, or nil.
type Session interface {
	Current() *models.User
}

type Library struct {
	store    docstore.Store
	content  blob.Uploader
	covers   blob.Uploader
	session  Session
	comments *comments.Service
	log      logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Library)

// WithCoverUploader stores cover images with u instead of the content
// uploader.
func WithCoverUploader(u blob.Uploader) Option {
	return func(l *Library) { l.covers = u }
}

// WithRand fixes the source used for recommendations.
func WithRand(r *rand.Rand) Option {
	return func(l *Library) { l.rng = r }
}

func WithLogger(log logging.Logger) Option {
	return func(l *Library) { l.log = log }
}

func New(store docstore.Store, content blob.Uploader, session Session, opts ...Option) *Library {
	l := &Library{
		store:   store,
		content: content,
		covers:  content,
		session: session,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With("module", "library")
	l.comments = comments.New(store, l.log)
	return l
}

func (l *Library) openBooks(ctx context.Context, q docstore.Query, project liveview.Projection[[]models.Book]) (*liveview.View[[]models.Book], error) {
	return liveview.Open(ctx, l.store, liveview.Collection(docstore.BooksCollection, q), project,
		liveview.WithErrorMessage(loadBooksMessage),
		liveview.WithLogger(l.log),
	)
}

func projectAll(snap *docstore.Snapshot) ([]models.Book, error) {
	return projector.Project(snap.Docs), nil
}

func projectTrending(n int) liveview.Projection[[]models.Book] {
	return func(snap *docstore.Snapshot) ([]models.Book, error) {
		return projector.Trending(projector.Project(snap.Docs), n), nil
	}
}

// Shelf is a category-filtered list of books.
type Shelf struct {
	*liveview.View[[]models.Book]
}

// OpenShelf opens a shelf on category.
func (l *Library) OpenShelf(ctx context.Context, category models.Category) (*Shelf, error) {
	if !category.Valid() {
		return nil, invalidCategory()
	}
	v, err := l.openBooks(ctx, docstore.Query{Filter: categoryFilter(category)}, projectAll)
	if err != nil {
		return nil, err
	}
	return &Shelf{View: v}, nil
}

// SetCategory switches the shelf to another category.
func (s *Shelf) SetCategory(category models.Category) error {
	if !category.Valid() {
		return invalidCategory()
	}
	return s.SetFilter(categoryFilter(category))
}

// Category is the category currently shown.
func (s *Shelf) Category() models.Category {
	f := s.Filter()
	if f == nil {
		return ""
	}
	c, _ := f.Value.(string)
	return models.Category(c)
}

func categoryFilter(c models.Category) *docstore.Filter {
	return docstore.Where(models.FieldCategory, string(c))
}

// HomePage backs "/".
type HomePage struct {
	Trending *liveview.View[[]models.Book]
	Shelf    *Shelf
}

func (l *Library) Home(ctx context.Context) (*HomePage, error) {
	trending, err := l.openBooks(ctx, docstore.Query{Limit: HomeWindow}, projectTrending(HomeTrending))
	if err != nil {
		return nil, err
	}
	shelf, err := l.OpenShelf(ctx, models.DefaultCategory)
	if err != nil {
		trending.Close()
		return nil, err
	}
	return &HomePage{Trending: trending, Shelf: shelf}, nil
}

func (p *HomePage) Close() {
	p.Trending.Close()
	p.Shelf.Close()
}

// Explore is the derived content of the explore page.
type Explore struct {
	All         []models.Book
	Trending    []models.Book
	Recommended []models.Book
}

// ExplorePage backs "/explore".
type ExplorePage struct {
	Books *liveview.View[Explore]
	Shelf *Shelf
}

func (l *Library) Explore(ctx context.Context) (*ExplorePage, error) {
	project := func(snap *docstore.Snapshot) (Explore, error) {
		all := projector.Project(snap.Docs)
		return Explore{
			All:         all,
			Trending:    projector.Trending(all, ExploreTrending),
			Recommended: l.recommend(all),
		}, nil
	}

	books, err := liveview.Open(ctx, l.store, liveview.Collection(docstore.BooksCollection, docstore.Query{}), project,
		liveview.WithErrorMessage(loadBooksMessage),
		liveview.WithLogger(l.log),
	)
	if err != nil {
		return nil, err
	}
	shelf, err := l.OpenShelf(ctx, models.DefaultCategory)
	if err != nil {
		books.Close()
		return nil, err
	}
	return &ExplorePage{Books: books, Shelf: shelf}, nil
}

func (l *Library) recommend(books []models.Book) []models.Book {
	l.rngMu.Lock()
	defer l.rngMu.Unlock()
	return projector.Recommend(books, projector.RecommendCount, l.rng)
}

func (p *ExplorePage) Close() {
	p.Books.Close()
	p.Shelf.Close()
}
