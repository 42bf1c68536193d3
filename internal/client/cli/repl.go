package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Navigate(ctx context.Context, path string) error
	Show(ctx context.Context) error
	SetCategory(ctx context.Context, name string) error
	Rate(ctx context.Context, score string) error
	DismissRatingError(ctx context.Context) error
	Comment(ctx context.Context, text string) error
	Google(ctx context.Context) error
	Logout(ctx context.Context) error
}

const (
	helpBrowse = "Pages: home, explore, book <id>, go <path>, show, category [name]"
	helpBook   = "On a book: rate <1-5>, dismiss, comment <text>"
	helpGuest  = "Account: login, signup, google, exit"
	helpUser   = "Account: add, logout, exit"
)

// runREPL starts a read–eval–print loop for the Bookly CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Forms started by a command read their fields
// from the same reader. The loop exits on EOF or when the user types "exit"
// or "quit".
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("bookly %s > ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		if cmd == "" {
			continue
		}

		switch cmd {
		case "help":
			printlnFn(helpBrowse)
			printlnFn(helpBook)
			if a.isLoggedIn() {
				printlnFn(helpUser)
			} else {
				printlnFn(helpGuest)
			}

		case "go":
			if arg == "" {
				printlnFn("Usage: go <path>")
				continue
			}
			_ = a.Navigate(ctx, arg)

		case "home":
			_ = a.Navigate(ctx, "/")

		case "explore":
			_ = a.Navigate(ctx, "/explore")

		case "book":
			if arg == "" {
				printlnFn("Usage: book <id>")
				continue
			}
			_ = a.Navigate(ctx, "/book/"+arg)

		case "add", "login", "signup":
			_ = a.Navigate(ctx, "/"+cmd)

		case "google":
			_ = a.Google(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "show", "s":
			_ = a.Show(ctx)

		case "category", "c":
			_ = a.SetCategory(ctx, arg)

		case "rate":
			_ = a.Rate(ctx, arg)

		case "dismiss":
			_ = a.DismissRatingError(ctx)

		case "comment":
			if arg == "" {
				printlnFn("Usage: comment <text>")
				continue
			}
			_ = a.Comment(ctx, arg)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
