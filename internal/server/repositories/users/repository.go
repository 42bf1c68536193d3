// Package users provides the PostgreSQL-backed account repository.
package users

import (
	"context"

	"github.com/dmitrijs2005/bookly/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByGoogleSubject(ctx context.Context, subject string) (*models.User, error)
	LinkGoogle(ctx context.Context, userID, subject, displayName, photoURL string) error
}
