package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sitekeeper/internal/common"
	"github.com/dmitrijs2005/sitekeeper/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db, "projects"), mock, db
}

func TestList_OrdersAndDecodes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "data", "created_at"}).
		AddRow("p2", []byte(`{"title":"Second"}`), now.Add(time.Minute)).
		AddRow("p1", []byte(`{"title":"First"}`), now)

	mock.ExpectQuery(`SELECT id, data, created_at FROM projects ORDER BY created_at DESC, id DESC`).
		WillReturnRows(rows)

	docs, err := repo.List(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID() != "p2" || docs[1].ID() != "p1" {
		t.Fatalf("unexpected order: %s, %s", docs[0].ID(), docs[1].ID())
	}
	if docs[0]["title"] != "Second" {
		t.Fatalf("unexpected title: %v", docs[0]["title"])
	}
	if docs[0][models.FieldCreatedAt] == "" {
		t.Fatalf("createdAt must be re-attached")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestList_AscendingForCatalogCollections(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, data, created_at FROM projects ORDER BY created_at ASC, id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at"}))

	docs, err := repo.List(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty result, got %d", len(docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT data, created_at FROM projects WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateWithTime_StripsManagedFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO projects \(id, data, created_at\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs("p1", []byte(`{"title":"Demo"}`), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc := models.Document{"id": "p1", "title": "Demo", "createdAt": "client junk"}
	stored, err := repo.CreateWithTime(context.Background(), doc, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored[models.FieldCreatedAt] != at.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected createdAt: %v", stored[models.FieldCreatedAt])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE projects SET data = \$2 WHERE id = \$1 RETURNING created_at`).
		WithArgs("missing", []byte(`{"title":"x"}`)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ReplaceByID(context.Background(), "missing", models.Document{"title": "x"})
	if !errors.Is(err, common.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceByID_Idempotent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	payload := models.Document{"title": "Same"}

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`UPDATE projects SET data = \$2 WHERE id = \$1 RETURNING created_at`).
			WithArgs("p1", []byte(`{"title":"Same"}`)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	}

	first, err := repo.ReplaceByID(context.Background(), "p1", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := repo.ReplaceByID(context.Background(), "p1", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first["title"] != second["title"] || first[models.FieldCreatedAt] != second[models.FieldCreatedAt] {
		t.Fatalf("replace-by-id must be idempotent: %v vs %v", first, second)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteByID_RowsAffected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM projects WHERE id = \$1`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DeleteByID(context.Background(), "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(`DELETE FROM projects WHERE id = \$1`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteByID(context.Background(), "p1"); !errors.Is(err, common.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendComment_UpdatesNestedArray(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE projects\s+SET data = jsonb_set\(data, '\{comments\}', \$2::jsonb \|\| COALESCE\(data->'comments', '\[\]'::jsonb\), true\)\s+WHERE id = \$1`).
		WithArgs("v1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AppendComment(context.Background(), "v1", models.Comment{
		Author:    "ann",
		Text:      "nice",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
