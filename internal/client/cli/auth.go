package cli

import (
	"context"
	"fmt"
)

// Test seams for prompting.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

// Login runs the "/login" form.
func (a *App) Login(ctx context.Context) error {
	fmt.Fprintln(a.out, "== Log in ==")
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}

	user, err := a.session.Login(ctx, email, password)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Logged in as %s.\n", displayName(user))
	return nil
}

// Signup runs the "/signup" form.
func (a *App) Signup(ctx context.Context) error {
	fmt.Fprintln(a.out, "== Sign up ==")
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	confirm, err := getPassword(a.reader, "Confirm password", a.out)
	if err != nil {
		return err
	}

	user, err := a.session.Register(ctx, email, password, confirm)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Welcome, %s.\n", displayName(user))
	return nil
}

// Google signs in with a Google ID token obtained elsewhere, e.g. from the
// web app's sign-in flow.
func (a *App) Google(ctx context.Context) error {
	if a.isLoggedIn() {
		return a.Navigate(ctx, "/")
	}
	token, err := getSimpleText(a.reader, "Paste your Google ID token", a.out)
	if err != nil {
		return err
	}

	user, err := a.session.LoginWithGoogle(ctx, token)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Logged in as %s.\n", displayName(user))
	return a.Navigate(ctx, "/")
}

func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "You are not logged in.")
		return nil
	}
	if err := a.session.Logout(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Logged out.")
	return a.Navigate(ctx, "/")
}
