package cli

import (
	"errors"
	"strings"
)

var ErrUnknownRoute = errors.New("unknown route")

type RouteName string

const (
	RouteHome    RouteName = "home"
	RouteExplore RouteName = "explore"
	RouteBook    RouteName = "book"
	RouteAdd     RouteName = "add"
	RouteLogin   RouteName = "login"
	RouteSignup  RouteName = "signup"
)

// Route is a parsed client path. BookID is set for RouteBook only.
type Route struct {
	Name   RouteName
	BookID string
}

func (r Route) Path() string {
	switch r.Name {
	case RouteHome:
		return "/"
	case RouteBook:
		return "/book/" + r.BookID
	}
	return "/" + string(r.Name)
}

// ParseRoute maps a path such as "/book/abc" to its Route. A missing leading
// slash and a trailing slash are tolerated.
func ParseRoute(path string) (Route, error) {
	path = strings.TrimSpace(path)
	path = "/" + strings.Trim(path, "/")

	switch path {
	case "/":
		return Route{Name: RouteHome}, nil
	case "/explore":
		return Route{Name: RouteExplore}, nil
	case "/add":
		return Route{Name: RouteAdd}, nil
	case "/login":
		return Route{Name: RouteLogin}, nil
	case "/signup":
		return Route{Name: RouteSignup}, nil
	}

	if id, ok := strings.CutPrefix(path, "/book/"); ok && id != "" && !strings.Contains(id, "/") {
		return Route{Name: RouteBook, BookID: id}, nil
	}
	return Route{}, ErrUnknownRoute
}

// Guard applies the auth redirects: the add form needs a user, and the login
// and signup forms are skipped for one.
func Guard(r Route, signedIn bool) Route {
	switch r.Name {
	case RouteAdd:
		if !signedIn {
			return Route{Name: RouteLogin}
		}
	case RouteLogin, RouteSignup:
		if signedIn {
			return Route{Name: RouteHome}
		}
	}
	return r
}
