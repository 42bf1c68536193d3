package client

import (
	"context"

	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/models"
)

// Client is everything the CLI needs from the backend: the document store,
// upload tickets and the account calls.
type Client interface {
	docstore.Store
	blob.Ticketer

	Close() error
	Ping(ctx context.Context) error

	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*models.User, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)

	Tokens() (access, refresh string)
	SetTokens(access, refresh string)
	OnTokens(fn func(access, refresh string))
}
