// Package documents provides PostgreSQL-backed storage for collection
// documents. One repository instance serves exactly one collection table.
package documents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sitekeeper/internal/models"
)

// Repository is the per-collection storage contract. Implementations are
// bound to a dbx.DBTX, so the same repository code runs inside or outside a
// transaction; multi-statement operations (bulk replace, singleton replace)
// are composed by the service layer under dbx.WithTx.
type Repository interface {
	// List returns every document ordered by creation time; ascending for
	// catalog-ordered collections, descending otherwise.
	List(ctx context.Context, ascending bool) ([]models.Document, error)

	// GetByID returns one document or common.ErrEntityNotFound.
	GetByID(ctx context.Context, id string) (models.Document, error)

	// Create inserts a document with the given application id, stamping the
	// creation time. Duplicate ids return common.ErrDuplicateID.
	Create(ctx context.Context, doc models.Document) (models.Document, error)

	// CreateWithTime is Create with an explicit creation timestamp. Used by
	// bulk replace to space rows so listings reproduce payload order.
	CreateWithTime(ctx context.Context, doc models.Document, at time.Time) (models.Document, error)

	// ReplaceByID fully replaces the stored fields of one document, keeping
	// its creation time. Returns common.ErrEntityNotFound for unknown ids.
	ReplaceByID(ctx context.Context, id string, doc models.Document) (models.Document, error)

	// DeleteByID removes one document or returns common.ErrEntityNotFound.
	DeleteByID(ctx context.Context, id string) error

	// DeleteAll clears the collection.
	DeleteAll(ctx context.Context) error

	// AppendComment appends one comment to the document's nested comment
	// list. Comments are append-only.
	AppendComment(ctx context.Context, id string, comment models.Comment) error
}
