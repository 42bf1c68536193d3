package documents

import (
	"context"

	"github.com/dmitrijs2005/bookly/internal/docstore"
)

// Repository persists documents grouped by collection path.
type Repository interface {
	Insert(ctx context.Context, collection, id string, fields docstore.Fields) (*docstore.Document, error)
	Get(ctx context.Context, collection, id string) (*docstore.Document, error)
	GetForUpdate(ctx context.Context, collection, id string) (*docstore.Document, error)
	UpdateFields(ctx context.Context, collection, id string, fields docstore.Fields) error
	List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error)
	Notify(ctx context.Context, collection string) error
}
