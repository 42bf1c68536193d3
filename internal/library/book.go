package library

import (
	"context"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/liveview"
	"github.com/dmitrijs2005/bookly/internal/models"
	"github.com/dmitrijs2005/bookly/internal/projector"
	"github.com/dmitrijs2005/bookly/internal/ratings"
)

// BookPage backs "/book/{id}".
type BookPage struct {
	ID       string
	Book     *liveview.View[models.Book]
	Comments *liveview.View[[]models.Comment]

	lib     *Library
	ratings *ratings.Reconciler
}

func projectDocument(snap *docstore.Snapshot) (models.Book, error) {
	doc, ok := snap.Document()
	if !ok {
		return models.Book{}, common.Wrap(common.ErrNotFound, "Book not found.", nil)
	}
	return projector.ProjectBook(doc), nil
}

func (l *Library) Book(ctx context.Context, id string) (*BookPage, error) {
	if id == "" {
		return nil, common.Wrap(common.ErrNotFound, "Book not found.", nil)
	}

	book, err := liveview.Open(ctx, l.store, liveview.Document(docstore.BookPath(id)), projectDocument,
		liveview.WithErrorMessage(loadBookMessage),
		liveview.WithLogger(l.log),
	)
	if err != nil {
		return nil, err
	}
	cs, err := l.comments.Subscribe(ctx, id)
	if err != nil {
		book.Close()
		return nil, err
	}

	return &BookPage{
		ID:       id,
		Book:     book,
		Comments: cs,
		lib:      l,
		ratings:  ratings.New(l.store, l.log),
	}, nil
}

// Rate submits the signed-in user's score using the ratings currently shown.
func (p *BookPage) Rate(ctx context.Context, score int) error {
	book := models.Book{ID: p.ID}
	if cur := p.Book.Current(); cur.State == liveview.Ready {
		book = cur.Data
	}
	return p.ratings.Submit(ctx, book, p.lib.session.Current(), score)
}

// RatingState exposes the reconciler state and the score kept for a retry.
func (p *BookPage) RatingState() (ratings.State, int, error) {
	state, err := p.ratings.State()
	return state, p.ratings.Pending(), err
}

// DismissRatingError returns the reconciler to idle after a failure.
func (p *BookPage) DismissRatingError() {
	p.ratings.Dismiss()
}

// Comment adds a comment by the signed-in user.
func (p *BookPage) Comment(ctx context.Context, text string) (models.Comment, error) {
	return p.lib.comments.Add(ctx, p.ID, p.lib.session.Current(), text)
}

func (p *BookPage) Close() {
	p.Book.Close()
	p.Comments.Close()
}
