// Package comments adds comments to books and streams them newest first.
package comments

import (
	"context"
	"slices"
	"strings"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/liveview"
	"github.com/dmitrijs2005/bookly/internal/logging"
	"github.com/dmitrijs2005/bookly/internal/models"
)

// Query orders a book's comments by create time, newest first.
var Query = docstore.Query{OrderByCreateTime: docstore.Descending}

type Service struct {
	store docstore.Store
	log   logging.Logger
}

func New(store docstore.Store, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: store, log: log.With("module", "comments")}
}

// Add stores text, trimmed, as a new comment by user on the book. The store
// assigns the create time.
func (s *Service) Add(ctx context.Context, bookID string, user *models.User, text string) (models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, common.Validation("Comment cannot be empty.")
	}
	author := user.Identity()
	if author == "" {
		return models.Comment{}, common.Validation("You must be logged in to comment.")
	}
	if bookID == "" {
		return models.Comment{}, common.Validation("Book not found.")
	}

	c := models.Comment{BookID: bookID, Text: text, Author: author}
	id, err := s.store.Add(ctx, docstore.CommentsPath(bookID), models.CommentFields(c))
	if err != nil {
		s.log.Error(ctx, "add comment failed", "book", bookID, "error", err)
		return models.Comment{}, common.Wrap(common.ErrRemoteWrite, "Failed to add comment.", err)
	}
	c.ID = id
	return c, nil
}

// Subscribe opens a live view of the book's comments.
func (s *Service) Subscribe(ctx context.Context, bookID string) (*liveview.View[[]models.Comment], error) {
	return liveview.Open(ctx, s.store, liveview.Collection(docstore.CommentsPath(bookID), Query), Projection(bookID),
		liveview.WithErrorMessage("Failed to load comments."),
		liveview.WithLogger(s.log),
	)
}

// Projection maps a comments snapshot to an ordered list.
func Projection(bookID string) liveview.Projection[[]models.Comment] {
	return func(snap *docstore.Snapshot) ([]models.Comment, error) {
		out := make([]models.Comment, 0, len(snap.Docs))
		for _, d := range snap.Docs {
			out = append(out, models.CommentFromDocument(bookID, d))
		}
		return Order(out), nil
	}
}

// Order sorts comments newest first. Comments with equal create times keep
// their relative order.
func Order(cs []models.Comment) []models.Comment {
	slices.SortStableFunc(cs, func(a, b models.Comment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return cs
}
