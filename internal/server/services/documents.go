package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/dbx"
	"github.com/dmitrijs2005/bookly/internal/docstore"
	"github.com/dmitrijs2005/bookly/internal/logging"
	"github.com/dmitrijs2005/bookly/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DocumentService is the Postgres-backed docstore.Store. Writes announce the
// changed collection through pg_notify and to the local hub; subscriptions
// reload from the database when announced.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hub         *Hub
	log         logging.Logger
	newID       func() string
}

var _ docstore.Store = (*DocumentService)(nil)

func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *DocumentService {
	if log == nil {
		log = logging.Nop()
	}
	s := &DocumentService{db: db, repomanager: m, log: log, newID: uuid.NewString}
	s.hub = NewHub(s.load, log)
	return s
}

// Hub exposes the change hub so a listener can feed it remote signals.
func (s *DocumentService) Hub() *Hub {
	return s.hub
}

func (s *DocumentService) Get(ctx context.Context, docPath string) (*docstore.Document, error) {
	collection, id, err := docstore.SplitDocumentPath(docPath)
	if err != nil {
		return nil, err
	}
	doc, err := s.repomanager.Documents(s.db).Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error loading document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if !docstore.IsCollectionPath(collection) {
		return "", common.Validation("Invalid collection path.")
	}
	normalized, err := docstore.NormalizeFields(fields)
	if err != nil {
		return "", common.Wrap(common.ErrValidation, "Invalid field value.", err)
	}

	repo := s.repomanager.Documents(s.db)
	id := s.newID()
	if _, err := repo.Insert(ctx, collection, id, normalized); err != nil {
		return "", fmt.Errorf("error inserting document: %w", err)
	}

	s.announce(ctx, repo.Notify, collection)
	return id, nil
}

// Update applies patch under a row lock so concurrent patches on the same
// document serialize.
func (s *DocumentService) Update(ctx context.Context, docPath string, patch docstore.Patch) error {
	collection, id, err := docstore.SplitDocumentPath(docPath)
	if err != nil {
		return err
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Documents(tx)

		doc, err := repo.GetForUpdate(ctx, collection, id)
		if err != nil {
			return err
		}
		fields, err := patch.Apply(doc.Fields)
		if err != nil {
			return err
		}
		if err := repo.UpdateFields(ctx, collection, id, fields); err != nil {
			return err
		}
		return repo.Notify(ctx, collection)
	})
	if err != nil {
		var ue *common.Error
		if errors.Is(err, common.ErrorNotFound) || errors.As(err, &ue) {
			return err
		}
		return fmt.Errorf("error updating document: %w", err)
	}

	s.hub.Changed(collection)
	return nil
}

func (s *DocumentService) Subscribe(ctx context.Context, collection string, q docstore.Query, fn docstore.SnapshotFunc) (docstore.Unsubscribe, error) {
	if !docstore.IsCollectionPath(collection) {
		return nil, common.Validation("Invalid collection path.")
	}
	if q.Limit < 0 {
		return nil, common.Validation("Limit must not be negative.")
	}
	switch q.OrderByCreateTime {
	case "", docstore.Ascending, docstore.Descending:
	default:
		return nil, common.Validation("Unsupported order.")
	}
	return s.hub.Watch(ctx, Target{Collection: collection, Query: q}, fn), nil
}

func (s *DocumentService) SubscribeDocument(ctx context.Context, docPath string, fn docstore.SnapshotFunc) (docstore.Unsubscribe, error) {
	collection, id, err := docstore.SplitDocumentPath(docPath)
	if err != nil {
		return nil, err
	}
	return s.hub.Watch(ctx, Target{Collection: collection, DocumentID: id}, fn), nil
}

func (s *DocumentService) load(ctx context.Context, t Target) (*docstore.Snapshot, error) {
	repo := s.repomanager.Documents(s.db)

	if t.DocumentID != "" {
		doc, err := repo.Get(ctx, t.Collection, t.DocumentID)
		switch {
		case err == nil:
			return snapshotOf(t, []docstore.Document{*doc}), nil
		case errors.Is(err, common.ErrorNotFound):
			return snapshotOf(t, nil), nil
		default:
			return nil, err
		}
	}

	docs, err := repo.List(ctx, t.Collection, t.Query)
	if err != nil {
		return nil, err
	}
	return snapshotOf(t, docs), nil
}

// announce tells other servers and local subscribers that collection
// changed. A failed pg_notify only affects other servers and is logged.
func (s *DocumentService) announce(ctx context.Context, notify func(context.Context, string) error, collection string) {
	if err := notify(ctx, collection); err != nil {
		s.log.Warn(ctx, "change notification failed", "collection", collection, "error", err)
	}
	s.hub.Changed(collection)
}
