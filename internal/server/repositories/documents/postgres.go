package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/dbx"
	"github.com/dmitrijs2005/sitekeeper/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or
// *sql.Tx) for a single collection table. Table names come only from the
// closed registry, never from request input.
type PostgresRepository struct {
	db    dbx.DBTX
	table string
}

// NewPostgresRepository constructs a repository for one collection table
// bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX, table string) *PostgresRepository {
	return &PostgresRepository{db: db, table: table}
}

// encode strips the store-managed fields and marshals the rest for the
// jsonb column.
func encode(doc models.Document) ([]byte, error) {
	fields := doc.Clone()
	delete(fields, models.FieldID)
	delete(fields, models.FieldCreatedAt)
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// decode rebuilds a document from a row, re-attaching id and createdAt.
func decode(id string, data []byte, createdAt time.Time) (models.Document, error) {
	doc := models.Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	doc[models.FieldID] = id
	doc[models.FieldCreatedAt] = createdAt.UTC().Format(time.RFC3339Nano)
	return doc, nil
}

func (r *PostgresRepository) List(ctx context.Context, ascending bool) ([]models.Document, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	query := fmt.Sprintf(`SELECT id, data, created_at FROM %s ORDER BY created_at %s, id %s`, r.table, direction, direction)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	result := []models.Document{}
	for rows.Next() {
		var (
			id        string
			data      []byte
			createdAt time.Time
		)
		if err := rows.Scan(&id, &data, &createdAt); err != nil {
			return nil, err
		}
		doc, err := decode(id, data, createdAt)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (models.Document, error) {
	query := fmt.Sprintf(`SELECT data, created_at FROM %s WHERE id = $1`, r.table)

	var (
		data      []byte
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select document: %w", err)
	}
	return decode(id, data, createdAt)
}

func (r *PostgresRepository) Create(ctx context.Context, doc models.Document) (models.Document, error) {
	return r.CreateWithTime(ctx, doc, time.Now().UTC())
}

func (r *PostgresRepository) CreateWithTime(ctx context.Context, doc models.Document, at time.Time) (models.Document, error) {
	data, err := encode(doc)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, data, created_at) VALUES ($1, $2, $3)`, r.table)
	_, err = r.db.ExecContext(ctx, query, doc.ID(), data, at)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: %s", common.ErrDuplicateID, doc.ID())
		}
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	stored := doc.Clone()
	stored[models.FieldCreatedAt] = at.UTC().Format(time.RFC3339Nano)
	return stored, nil
}

func (r *PostgresRepository) ReplaceByID(ctx context.Context, id string, doc models.Document) (models.Document, error) {
	data, err := encode(doc)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`UPDATE %s SET data = $2 WHERE id = $1 RETURNING created_at`, r.table)

	var createdAt time.Time
	err = r.db.QueryRowContext(ctx, query, id, data).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return decode(id, data, createdAt)
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrEntityNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, r.table)
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AppendComment(ctx context.Context, id string, comment models.Comment) error {
	payload, err := json.Marshal(comment)
	if err != nil {
		return fmt.Errorf("failed to encode comment: %w", err)
	}

	// New comments go to the front: the list is displayed newest-first.
	query := fmt.Sprintf(`
		UPDATE %s
		SET data = jsonb_set(data, '{comments}', $2::jsonb || COALESCE(data->'comments', '[]'::jsonb), true)
		WHERE id = $1`, r.table)

	res, err := r.db.ExecContext(ctx, query, id, payload)
	if err != nil {
		return fmt.Errorf("failed to append comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrEntityNotFound
	}
	return nil
}
