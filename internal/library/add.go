package library

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/models"
)

// NewBook is the add-book form.
type NewBook struct {
	Title       string
	Author      string
	Description string
	Category    models.Category
	Content     *blob.File
	Cover       *blob.File
}

func invalidCategory() error {
	return common.Validation("Please choose a valid category.")
}

// Validate checks the form and fills in the default category.
func (b *NewBook) Validate() error {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.Description = strings.TrimSpace(b.Description)

	if b.Title == "" {
		return common.Validation("Title is required.")
	}
	if b.Author == "" {
		return common.Validation("Author is required.")
	}
	if b.Category == "" {
		b.Category = models.DefaultCategory
	}
	if !b.Category.Valid() {
		return invalidCategory()
	}
	if b.Content == nil || !blob.IsPDF(b.Content.ContentType) {
		return common.Validation("Please upload a PDF file.")
	}
	if b.Cover != nil && !blob.IsImage(b.Cover.ContentType) {
		return common.Validation("Cover must be an image.")
	}
	return nil
}

// AddBook uploads the content file, then the optional cover, then writes the
// book document. An upload failure stops the flow before anything is
// written.
func (l *Library) AddBook(ctx context.Context, in NewBook) (string, error) {
	user := l.session.Current()
	if user == nil {
		return "", common.Validation("You must be logged in to add a book.")
	}
	if err := in.Validate(); err != nil {
		return "", err
	}

	pdfURL, err := l.content.Upload(ctx, *in.Content)
	if err != nil {
		l.log.Error(ctx, "content upload failed", "file", in.Content.Name, "error", err)
		return "", common.Wrap(common.ErrUpload, "Failed to upload file.", err)
	}

	var coverURL string
	if in.Cover != nil {
		coverURL, err = l.covers.Upload(ctx, *in.Cover)
		if err != nil {
			l.log.Error(ctx, "cover upload failed", "file", in.Cover.Name, "error", err)
			return "", common.Wrap(common.ErrUpload, "Failed to upload file.", err)
		}
	}

	id, err := l.store.Add(ctx, docstore.BooksCollection, models.BookFields(models.Book{
		Title:          in.Title,
		Author:         in.Author,
		Description:    in.Description,
		Category:       in.Category,
		PdfURL:         pdfURL,
		CoverURL:       coverURL,
		PublisherUID:   user.ID,
		PublisherEmail: user.Email,
	}))
	if err != nil {
		l.log.Error(ctx, "add book failed", "error", err)
		return "", common.Wrap(common.ErrRemoteWrite, "Failed to add book. Please try again.", err)
	}

	l.log.Info(ctx, "book added", "book", id, "category", in.Category)
	return id, nil
}
