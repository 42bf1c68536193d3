package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/dbx"
	"github.com/dmitrijs2005/bookly/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectUser = `
		SELECT id, email, display_name, photo_url, COALESCE(google_subject, ''), salt, password_hash, created_at
		FROM users
	`

// Create inserts user and fills in its id and creation time. A duplicate
// email yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, display_name, photo_url, google_subject, salt, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	var subject sql.NullString
	if user.GoogleSubject != "" {
		subject = sql.NullString{String: user.GoogleSubject, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.DisplayName, user.PhotoURL, subject, user.Salt, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, selectUser+"WHERE email = $1", email)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, selectUser+"WHERE id = $1", id)
}

func (r *PostgresRepository) GetUserByGoogleSubject(ctx context.Context, subject string) (*models.User, error) {
	return r.getOne(ctx, selectUser+"WHERE google_subject = $1", subject)
}

// LinkGoogle attaches a Google subject to an existing account and refreshes
// the profile fields Google reports.
func (r *PostgresRepository) LinkGoogle(ctx context.Context, userID, subject, displayName, photoURL string) error {
	query := `
		UPDATE users
		SET google_subject = $2, display_name = $3, photo_url = $4
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID, subject, displayName, photoURL)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.PhotoURL, &user.GoogleSubject,
		&user.Salt, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
