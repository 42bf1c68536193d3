package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/filex"
	"github.com/dmitrijs2005/bookly/internal/library"
	"github.com/dmitrijs2005/bookly/internal/models"
)

var getMultiline = GetMultiline

// AddBook runs the "/add" form: it reads the fields, opens the local files
// and hands everything to the library.
func (a *App) AddBook(ctx context.Context) error {
	fmt.Fprintln(a.out, "== Add a book ==")

	var in library.NewBook
	var err error
	if in.Title, err = getSimpleText(a.reader, "Title", a.out); err != nil {
		return err
	}
	if in.Author, err = getSimpleText(a.reader, "Author", a.out); err != nil {
		return err
	}
	if in.Description, err = getMultiline(a.reader, "Description", a.out); err != nil {
		return err
	}

	category, err := getSimpleText(a.reader, fmt.Sprintf("Category (%s) [%s]", categoryList(), models.DefaultCategory), a.out)
	if err != nil {
		return err
	}
	if category != "" {
		c, ok := parseCategory(category)
		if !ok {
			c = models.Category(category)
		}
		in.Category = c
	}

	pdfPath, err := getSimpleText(a.reader, "Path to the PDF file", a.out)
	if err != nil {
		return err
	}
	coverPath, err := getSimpleText(a.reader, "Path to a cover image (optional)", a.out)
	if err != nil {
		return err
	}

	if pdfPath != "" {
		f, err := filex.OpenLocal(pdfPath)
		if err != nil {
			a.log.Warn(ctx, "open content file", "path", pdfPath, "error", err)
			fmt.Fprintln(a.out, "Could not open the PDF file.")
			return err
		}
		defer f.Close()
		in.Content = localBlob(f)
	}
	if coverPath != "" {
		f, err := filex.OpenLocal(coverPath)
		if err != nil {
			a.log.Warn(ctx, "open cover file", "path", coverPath, "error", err)
			fmt.Fprintln(a.out, "Could not open the cover image.")
			return err
		}
		defer f.Close()
		in.Cover = localBlob(f)
	}

	fmt.Fprintln(a.out, "Uploading...")
	id, err := a.library.AddBook(ctx, in)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Book added (%s).\n", id)
	return nil
}

func localBlob(f *filex.LocalFile) *blob.File {
	return &blob.File{Name: f.Name, ContentType: f.ContentType, Size: f.Size, Body: f}
}
