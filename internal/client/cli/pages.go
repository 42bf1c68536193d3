package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/library"
	"github.com/dmitrijs2005/bookly/internal/liveview"
	"github.com/dmitrijs2005/bookly/internal/models"
	"github.com/dmitrijs2005/bookly/internal/ratings"
)

// renderTimeout bounds how long a render waits for a view to leave Loading.
var renderTimeout = 5 * time.Second

// page is an open browsing route.
type page interface {
	Render(w io.Writer)
	Close()
}

// shelfPage is a page with a category shelf.
type shelfPage interface {
	page
	Shelf() *library.Shelf
}

// waitReady returns the first value of v that is not Loading, or whatever
// is current once renderTimeout passes.
func waitReady[T any](v *liveview.View[T]) liveview.Value[T] {
	ch := make(chan liveview.Value[T], 1)
	cancel := v.OnChange(func(val liveview.Value[T]) {
		if val.State == liveview.Loading {
			return
		}
		select {
		case ch <- val:
		default:
		}
	})
	defer cancel()

	select {
	case val := <-ch:
		return val
	case <-time.After(renderTimeout):
		return v.Current()
	}
}

type homeView struct {
	p *library.HomePage
}

func (v homeView) Render(w io.Writer) {
	fmt.Fprintln(w, "== Bookly ==")
	renderBooks(w, "Trending", waitReady(v.p.Trending))
	renderShelf(w, v.p.Shelf)
}

func (v homeView) Shelf() *library.Shelf { return v.p.Shelf }
func (v homeView) Close()                { v.p.Close() }

type exploreView struct {
	p *library.ExplorePage
}

func (v exploreView) Render(w io.Writer) {
	fmt.Fprintln(w, "== Explore ==")
	val := waitReady(v.p.Books)
	renderBooks(w, "Trending", pick(val, func(e library.Explore) []models.Book { return e.Trending }))
	renderBooks(w, "Recommended for you", pick(val, func(e library.Explore) []models.Book { return e.Recommended }))
	renderShelf(w, v.p.Shelf)
	renderBooks(w, "All books", pick(val, func(e library.Explore) []models.Book { return e.All }))
}

func (v exploreView) Shelf() *library.Shelf { return v.p.Shelf }
func (v exploreView) Close()                { v.p.Close() }

type bookView struct {
	p *library.BookPage
}

func (v bookView) Render(w io.Writer) {
	val := waitReady(v.p.Book)
	switch val.State {
	case liveview.Ready:
		renderBook(w, val.Data)
	case liveview.Loading:
		fmt.Fprintln(w, "Loading...")
		return
	default:
		fmt.Fprintln(w, val.Message)
		return
	}

	state, pending, err := v.p.RatingState()
	switch state {
	case ratings.Submitting:
		fmt.Fprintln(w, "Submitting rating...")
	case ratings.Failed:
		fmt.Fprintf(w, "%s Type 'rate %d' to retry or 'dismiss'.\n", common.UserMessage(err), pending)
	}

	fmt.Fprintln(w)
	cs := waitReady(v.p.Comments)
	fmt.Fprintln(w, "Comments")
	switch cs.State {
	case liveview.Ready:
		if len(cs.Data) == 0 {
			fmt.Fprintln(w, "  No comments yet.")
		}
		for _, c := range cs.Data {
			fmt.Fprintf(w, "  %s (%s): %s\n", c.Author, formatTime(c.CreatedAt), c.Text)
		}
	case liveview.Loading:
		fmt.Fprintln(w, "  Loading...")
	default:
		fmt.Fprintln(w, "  "+cs.Message)
	}
}

func (v bookView) Close() { v.p.Close() }

func pick[T any](val liveview.Value[T], fn func(T) []models.Book) liveview.Value[[]models.Book] {
	out := liveview.Value[[]models.Book]{State: val.State, Message: val.Message, Err: val.Err}
	if val.State == liveview.Ready {
		out.Data = fn(val.Data)
	}
	return out
}

func renderShelf(w io.Writer, s *library.Shelf) {
	renderBooks(w, "Category: "+string(s.Category()), waitReady(s.View))
}

func renderBooks(w io.Writer, title string, val liveview.Value[[]models.Book]) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	switch val.State {
	case liveview.Loading:
		fmt.Fprintln(w, "  Loading...")
	case liveview.Failed, liveview.Closed:
		fmt.Fprintln(w, "  "+val.Message)
	case liveview.Ready:
		if len(val.Data) == 0 {
			fmt.Fprintln(w, "  No books yet.")
		}
		for _, b := range val.Data {
			fmt.Fprintf(w, "  [%s] %s by %s  %s\n", b.ID, b.Title, b.Author, formatRating(b))
		}
	}
}

func renderBook(w io.Writer, b models.Book) {
	fmt.Fprintf(w, "== %s ==\n", b.Title)
	fmt.Fprintf(w, "Author:    %s\n", b.Author)
	fmt.Fprintf(w, "Category:  %s\n", b.Category)
	fmt.Fprintf(w, "Rating:    %s\n", formatRating(b))
	if b.PublisherEmail != "" {
		fmt.Fprintf(w, "Added by:  %s\n", b.PublisherEmail)
	}
	if b.PdfURL != "" {
		fmt.Fprintf(w, "Read:      %s\n", b.PdfURL)
	}
	if b.CoverURL != "" {
		fmt.Fprintf(w, "Cover:     %s\n", b.CoverURL)
	}
	if b.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, b.Description)
	}
}

func formatRating(b models.Book) string {
	if len(b.Ratings) == 0 {
		return "not rated"
	}
	n := len(b.Ratings)
	return fmt.Sprintf("%.1f/5 (%d %s)", b.AverageRating, n, plural(n, "rating", "ratings"))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "just now"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// parseCategory matches name against the fixed categories, ignoring case.
func parseCategory(name string) (models.Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range models.Categories {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	return "", false
}

func categoryList() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
