package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  []string
}

func (f *fakeExec) record(name, arg string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, arg)
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Navigate(ctx context.Context, path string) error {
	if path == "/login" {
		f.loggedIn = true
	}
	return f.record("navigate", path)
}
func (f *fakeExec) Show(ctx context.Context) error { return f.record("show", "") }
func (f *fakeExec) SetCategory(ctx context.Context, name string) error {
	return f.record("category", name)
}
func (f *fakeExec) Rate(ctx context.Context, score string) error { return f.record("rate", score) }
func (f *fakeExec) DismissRatingError(ctx context.Context) error { return f.record("dismiss", "") }
func (f *fakeExec) Comment(ctx context.Context, text string) error {
	return f.record("comment", text)
}
func (f *fakeExec) Google(ctx context.Context) error { return f.record("google", "") }
func (f *fakeExec) Logout(ctx context.Context) error {
	f.loggedIn = false
	return f.record("logout", "")
}

func silence(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, len(a))
		for i, v := range a {
			parts[i], _ = v.(string)
		}
		printed = append(printed, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &printed
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	silence(t)

	input := strings.Join([]string{
		"help",
		"home",
		"explore",
		"book b1",
		"go /book/b2",
		"",
		"category Short stories",
		"rate 4",
		"dismiss",
		"comment  Loved it, twice. ",
		"show",
		"login",
		"add",
		"signup",
		"google",
		"logout",
		"foobar",
		"exit",
		"home",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "/" }, rdr(input))

	assert.Equal(t, []string{
		"navigate", "navigate", "navigate", "navigate",
		"category", "rate", "dismiss", "comment", "show",
		"navigate", "navigate", "navigate", "google", "logout",
	}, exec.calls)
	assert.Equal(t, []string{
		"/", "/explore", "/book/b1", "/book/b2",
		"Short stories", "4", "", "Loved it, twice.", "",
		"/login", "/add", "/signup", "", "",
	}, exec.args)
}

func TestRunREPL_UsageAndQuit(t *testing.T) {
	printed := silence(t)

	exec := &fakeExec{loggedIn: true}
	runREPL(context.Background(), exec, func() string { return "s" }, rdr("book\ngo\ncomment\nquit\nhome\n"))

	assert.Empty(t, exec.calls)
	assert.Contains(t, *printed, "Usage: book <id>")
	assert.Contains(t, *printed, "Usage: go <path>")
	assert.Contains(t, *printed, "Usage: comment <text>")
	assert.Contains(t, *printed, "Bye!")
}

func TestRunREPL_HelpDependsOnSession(t *testing.T) {
	printed := silence(t)
	runREPL(context.Background(), &fakeExec{}, func() string { return "/" }, rdr("help\n"))
	assert.Contains(t, *printed, helpGuest)
	assert.NotContains(t, *printed, helpUser)

	printed = silence(t)
	runREPL(context.Background(), &fakeExec{loggedIn: true}, func() string { return "/" }, rdr("help\n"))
	assert.Contains(t, *printed, helpUser)
}

func TestRunREPL_PromptShowsStatus(t *testing.T) {
	printed := silence(t)
	runREPL(context.Background(), &fakeExec{}, func() string { return "/explore ann" }, rdr("exit\n"))
	assert.Equal(t, "bookly /explore ann > ", (*printed)[0])
}
