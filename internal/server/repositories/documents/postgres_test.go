package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var docColumns = []string{"id", "fields", "create_time", "seq"}

func TestInsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+documents.*RETURNING\s+create_time,\s*seq`).
		WithArgs("books", "b1", []byte(`{"title":"Dune"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"create_time", "seq"}).AddRow(created, int64(7)))

	doc, err := repo.Insert(context.Background(), "books", "b1", docstore.Fields{"title": "Dune"})
	require.NoError(t, err)
	assert.Equal(t, "books/b1", doc.Path)
	assert.Equal(t, int64(7), doc.Seq)
	assert.Equal(t, created, doc.CreateTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+documents`).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Insert(context.Background(), "books", "b1", docstore.Fields{})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT\s+id,\s*fields.*WHERE\s+collection\s*=\s*\$1\s+AND\s+id\s*=\s*\$2$`).
		WithArgs("books/b1/comments", "c1").
		WillReturnRows(sqlmock.NewRows(docColumns).AddRow("c1", []byte(`{"text":"hi","user":"a@x.io"}`), created, int64(3)))

	doc, err := repo.Get(context.Background(), "books/b1/comments", "c1")
	require.NoError(t, err)
	assert.Equal(t, "books/b1/comments/c1", doc.Path)
	assert.Equal(t, docstore.Fields{"text": "hi", "user": "a@x.io"}, doc.Fields)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FOR\s+UPDATE`).WithArgs("books", "nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetForUpdate(context.Background(), "books", "nope")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_BadJSON(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+documents`).
		WillReturnRows(sqlmock.NewRows(docColumns).AddRow("b1", []byte(`{`), time.Now(), int64(1)))

	_, err := repo.Get(context.Background(), "books", "b1")
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+documents\s+SET\s+fields\s*=\s*\$3`).
		WithArgs("books", "b1", []byte(`{"ratings":[]}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateFields(context.Background(), "books", "b1", docstore.Fields{"ratings": []any{}}))

	mock.ExpectExec(`UPDATE\s+documents`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.UpdateFields(context.Background(), "books", "gone", docstore.Fields{}), common.ErrorNotFound)
}

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name  string
		q     docstore.Query
		query string
		args  []any
	}{
		{
			name:  "insertion order",
			q:     docstore.Query{},
			query: selectDocument + "WHERE collection = $1 ORDER BY seq ASC",
			args:  []any{"books"},
		},
		{
			name:  "filter and desc",
			q:     docstore.Query{Filter: docstore.Where("category", "Horror"), OrderByCreateTime: docstore.Descending},
			query: selectDocument + "WHERE collection = $1 AND fields->$2 = $3::jsonb ORDER BY create_time DESC, seq DESC",
			args:  []any{"books", "category", `"Horror"`},
		},
		{
			name:  "asc with limit",
			q:     docstore.Query{OrderByCreateTime: docstore.Ascending, Limit: 50},
			query: selectDocument + "WHERE collection = $1 ORDER BY create_time ASC, seq ASC LIMIT $2",
			args:  []any{"books", 50},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := buildListQuery("books", tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.query, query)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)FROM\s+documents.*fields->\$2\s*=\s*\$3::jsonb.*LIMIT\s+\$4`).
		WithArgs("books", "category", `"Romance"`, 2).
		WillReturnRows(sqlmock.NewRows(docColumns).
			AddRow("b2", []byte(`{"title":"B"}`), now, int64(2)).
			AddRow("b1", []byte(`{"title":"A"}`), now, int64(1)))

	docs, err := repo.List(context.Background(), "books", docstore.Query{
		Filter:            docstore.Where("category", "Romance"),
		OrderByCreateTime: docstore.Descending,
		Limit:             2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "books/b2", docs[0].Path)
	assert.Equal(t, "A", docs[1].Fields["title"])
}

func TestList_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+documents`).WillReturnRows(sqlmock.NewRows(docColumns))

	docs, err := repo.List(context.Background(), "books", docstore.Query{})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestList_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+documents`).WillReturnError(errors.New("db down"))

	_, err := repo.List(context.Background(), "books", docstore.Query{})
	require.ErrorContains(t, err, "db down")
}

func TestNotify(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`SELECT\s+pg_notify\(\$1,\s*\$2\)`).
		WithArgs(NotifyChannel, "books").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Notify(context.Background(), "books"))
	require.NoError(t, mock.ExpectationsWereMet())
}
