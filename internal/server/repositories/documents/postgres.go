// Package documents stores schemaless documents in a single JSONB table keyed
// by (collection, id) and announces changes over LISTEN/NOTIFY.
package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/dbx"
	"github.com/dmitrijs2005/bookly/internal/docstore"
)

// NotifyChannel is the Postgres channel carrying changed collection paths.
const NotifyChannel = "bookly_documents"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectDocument = `
		SELECT id, fields, create_time, seq
		FROM documents
	`

// Insert stores a new document and returns it with the create time and
// sequence number assigned by the database.
func (r *PostgresRepository) Insert(ctx context.Context, collection, id string, fields docstore.Fields) (*docstore.Document, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3)
		RETURNING create_time, seq
	`
	doc := &docstore.Document{ID: id, Path: docstore.DocumentPath(collection, id), Fields: fields}
	if err := r.db.QueryRowContext(ctx, query, collection, id, data).Scan(&doc.CreateTime, &doc.Seq); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}

func (r *PostgresRepository) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	return r.getOne(ctx, selectDocument+"WHERE collection = $1 AND id = $2", collection, id)
}

// GetForUpdate locks the row until the surrounding transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, collection, id string) (*docstore.Document, error) {
	return r.getOne(ctx, selectDocument+"WHERE collection = $1 AND id = $2 FOR UPDATE", collection, id)
}

func (r *PostgresRepository) UpdateFields(ctx context.Context, collection, id string, fields docstore.Fields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		UPDATE documents
		SET fields = $3
		WHERE collection = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query, collection, id, data)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// List returns the documents of collection that q selects, in q's order.
func (r *PostgresRepository) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	query, args, err := buildListQuery(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	docs := make([]docstore.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows, collection)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return docs, nil
}

// Notify announces a change in collection to every listening server.
func (r *PostgresRepository) Notify(ctx context.Context, collection string) error {
	if _, err := r.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, collection); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func buildListQuery(collection string, q docstore.Query) (string, []any, error) {
	var b strings.Builder
	args := []any{collection}

	b.WriteString(selectDocument)
	b.WriteString("WHERE collection = $1")

	if q.Filter != nil {
		value, err := json.Marshal(q.Filter.Value)
		if err != nil {
			return "", nil, fmt.Errorf("marshal filter value: %w", err)
		}
		args = append(args, q.Filter.Field, string(value))
		b.WriteString(" AND fields->$2 = $3::jsonb")
	}

	switch q.OrderByCreateTime {
	case docstore.Ascending:
		b.WriteString(" ORDER BY create_time ASC, seq ASC")
	case docstore.Descending:
		b.WriteString(" ORDER BY create_time DESC, seq DESC")
	default:
		b.WriteString(" ORDER BY seq ASC")
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner, collection string) (*docstore.Document, error) {
	var (
		doc  docstore.Document
		data []byte
	)
	if err := s.Scan(&doc.ID, &data, &doc.CreateTime, &doc.Seq); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s/%s: %w", collection, doc.ID, err)
	}
	doc.Path = docstore.DocumentPath(collection, doc.ID)
	return &doc, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query, collection, id string) (*docstore.Document, error) {
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, collection, id), collection)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}
