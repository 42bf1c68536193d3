// Package cli provides the interactive Bookly command-line client.
//
// The client is organised around the same routes as the web app: "/" (home),
// "/explore", "/book/{id}", "/add", "/login" and "/signup". Browsing routes
// open live pages that are re-rendered on demand; the form routes prompt for
// their fields and return to "/" on success. Adding a book requires a
// signed-in user and redirects to the login form otherwise.
//
// The REPL is started via App.Run(ctx), which restores a saved session and
// blocks until the user exits. See runREPL for the command set.
package cli
