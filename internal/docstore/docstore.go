// Package docstore defines the contract Bookly has with its remote document
// database: schemaless documents grouped in collections, single-document
// patches and push-based snapshot subscriptions.
//
// Collections are addressed by paths with an odd number of segments
// ("books", "books/{id}/comments"), documents by paths with an even number
// ("books/{id}"). A subscription delivers full snapshots, never diffs.
//
// The package ships an in-memory Store used by tests and by the CLI offline
// mode; the server implements the same interface on Postgres and the client
// implements it over gRPC.
package docstore

import (
	"context"
	"time"
)

// Fields holds document data as JSON values.
type Fields map[string]any

// Document is one stored document. CreateTime and Seq are assigned by the
// store when the document is added; Seq grows with every insertion and breaks
// ties between equal create times.
type Document struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Fields     Fields    `json:"fields"`
	CreateTime time.Time `json:"createTime"`
	Seq        int64     `json:"seq"`
}

// Snapshot is a full point-in-time materialization of a subscription target.
// For a document subscription Docs holds zero (missing) or one element.
type Snapshot struct {
	Target   string     `json:"target"`
	Docs     []Document `json:"docs"`
	ReadTime time.Time  `json:"readTime"`
}

// Document returns the single document of a document snapshot.
func (s *Snapshot) Document() (Document, bool) {
	if s == nil || len(s.Docs) == 0 {
		return Document{}, false
	}
	return s.Docs[0], true
}

// SnapshotFunc receives snapshots of one subscription, in order, on a
// goroutine owned by the store. A non-nil err is terminal: no snapshot
// follows it.
type SnapshotFunc func(snap *Snapshot, err error)

// Unsubscribe releases a subscription. It is safe to call more than once and
// from inside a SnapshotFunc.
type Unsubscribe func()

// Store is the remote document database as the application sees it.
type Store interface {
	// Get returns the document at docPath or common.ErrorNotFound.
	Get(ctx context.Context, docPath string) (*Document, error)

	// Add inserts a new document into collection and returns its id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)

	// Update applies patch to the document at docPath atomically.
	Update(ctx context.Context, docPath string, patch Patch) error

	// Subscribe streams snapshots of collection restricted by q until the
	// returned Unsubscribe is called or ctx is done.
	Subscribe(ctx context.Context, collection string, q Query, fn SnapshotFunc) (Unsubscribe, error)

	// SubscribeDocument streams snapshots of a single document.
	SubscribeDocument(ctx context.Context, docPath string, fn SnapshotFunc) (Unsubscribe, error)
}
