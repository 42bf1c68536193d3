package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/client/client"
	"github.com/dmitrijs2005/bookly/internal/client/config"
	"github.com/dmitrijs2005/bookly/internal/client/session"
	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/filex"
	"github.com/dmitrijs2005/bookly/internal/library"
	"github.com/dmitrijs2005/bookly/internal/logging"
	"github.com/dmitrijs2005/bookly/internal/models"
)

// Session is the part of session.Manager the CLI drives.
type Session interface {
	Current() *models.User
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, email, password, confirm string) (*models.User, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*models.User, error)
	Logout(ctx context.Context) error
	Restore(ctx context.Context) (*models.User, error)
}

type App struct {
	config  *config.Config
	session Session
	library *library.Library
	log     logging.Logger
	reader  *bufio.Reader
	out     io.Writer
	closers []io.Closer

	route Route
	page  page
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()
	logger := logging.New(os.Stderr, "text", c.LogLevel)

	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	backend, err := client.NewBooklyClientService(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sess := session.NewManager(backend, client.NewRepositories(db).Metadata, logger)

	opts := []library.Option{library.WithLogger(logger)}
	if c.CoverUploadURL != "" {
		opts = append(opts, library.WithCoverUploader(blob.NewFormUploader(c.CoverUploadURL, c.CoverUploadPreset, nil)))
	}
	lib := library.New(backend, blob.NewPresignedUploader(backend, nil), sess, opts...)

	a := newApp(lib, sess, logger, os.Stdin, os.Stdout)
	a.config = c
	a.closers = []io.Closer{backend, dbCloser{db}}
	return a, nil
}

type dbCloser struct{ db *sql.DB }

func (d dbCloser) Close() error { return d.db.Close() }

func newApp(lib *library.Library, sess Session, log logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		session: sess,
		library: lib,
		log:     log.With("module", "cli"),
		reader:  bufio.NewReader(in),
		out:     out,
	}
}

// Run resumes a saved session, opens the home page and serves the REPL
// until the user quits or stdin ends.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	user, err := a.session.Restore(ctx)
	if err != nil {
		a.log.Warn(ctx, "could not restore session", "error", err)
	}
	if user != nil {
		fmt.Fprintf(a.out, "Welcome back, %s.\n", displayName(user))
	}

	_ = a.Navigate(ctx, "/")
	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) Close() {
	a.closePage()
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

func (a *App) isLoggedIn() bool {
	return a.session.Current() != nil
}

func (a *App) status() string {
	path := a.route.Path()
	if u := a.session.Current(); u != nil {
		return path + " " + displayName(u)
	}
	return path
}

func displayName(u *models.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Identity()
}

// Navigate parses path, applies the auth redirects and either opens a
// browsing page or runs a form. Forms that succeed return to "/".
func (a *App) Navigate(ctx context.Context, path string) error {
	route, err := ParseRoute(path)
	if err != nil {
		fmt.Fprintln(a.out, "Page not found.")
		return err
	}
	route = Guard(route, a.isLoggedIn())

	switch route.Name {
	case RouteLogin:
		return a.formDone(ctx, a.Login(ctx))
	case RouteSignup:
		return a.formDone(ctx, a.Signup(ctx))
	case RouteAdd:
		return a.formDone(ctx, a.AddBook(ctx))
	}

	p, err := a.open(ctx, route)
	if err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}
	a.closePage()
	a.route, a.page = route, p
	p.Render(a.out)
	return nil
}

func (a *App) formDone(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	return a.Navigate(ctx, "/")
}

func (a *App) open(ctx context.Context, r Route) (page, error) {
	switch r.Name {
	case RouteHome:
		p, err := a.library.Home(ctx)
		if err != nil {
			return nil, err
		}
		return homeView{p}, nil
	case RouteExplore:
		p, err := a.library.Explore(ctx)
		if err != nil {
			return nil, err
		}
		return exploreView{p}, nil
	case RouteBook:
		p, err := a.library.Book(ctx, r.BookID)
		if err != nil {
			return nil, err
		}
		return bookView{p}, nil
	}
	return nil, ErrUnknownRoute
}

func (a *App) closePage() {
	if a.page != nil {
		a.page.Close()
		a.page = nil
	}
}

// Show renders the current page again.
func (a *App) Show(ctx context.Context) error {
	if a.page == nil {
		return a.Navigate(ctx, "/")
	}
	a.page.Render(a.out)
	return nil
}

// SetCategory switches the shelf of the home or explore page. An empty
// name lists the categories.
func (a *App) SetCategory(ctx context.Context, name string) error {
	sp, ok := a.page.(shelfPage)
	if !ok {
		fmt.Fprintln(a.out, "This page has no categories.")
		return nil
	}
	if strings.TrimSpace(name) == "" {
		fmt.Fprintf(a.out, "Current: %s\nCategories: %s\n", sp.Shelf().Category(), categoryList())
		return nil
	}

	c, ok := parseCategory(name)
	if !ok {
		fmt.Fprintf(a.out, "Unknown category. Choose one of: %s\n", categoryList())
		return nil
	}
	if err := sp.Shelf().SetCategory(c); err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}
	renderShelf(a.out, sp.Shelf())
	return nil
}

func (a *App) bookPage() (bookView, bool) {
	bv, ok := a.page.(bookView)
	if !ok {
		fmt.Fprintln(a.out, "Open a book first: book <id>")
	}
	return bv, ok
}

func (a *App) Rate(ctx context.Context, arg string) error {
	bv, ok := a.bookPage()
	if !ok {
		return nil
	}
	score, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		fmt.Fprintln(a.out, "Usage: rate <1-5>")
		return nil
	}
	if err := bv.p.Rate(ctx, score); err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}
	fmt.Fprintf(a.out, "You rated this book %d.\n", score)
	return nil
}

func (a *App) DismissRatingError(ctx context.Context) error {
	bv, ok := a.bookPage()
	if !ok {
		return nil
	}
	bv.p.DismissRatingError()
	return nil
}

func (a *App) Comment(ctx context.Context, text string) error {
	bv, ok := a.bookPage()
	if !ok {
		return nil
	}
	if _, err := bv.p.Comment(ctx, text); err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}
	fmt.Fprintln(a.out, "Comment added.")
	return nil
}

// report prints the user-facing text of err unless input simply ended.
func (a *App) report(err error) error {
	if errors.Is(err, io.EOF) {
		return err
	}
	fmt.Fprintln(a.out, common.UserMessage(err))
	return err
}
