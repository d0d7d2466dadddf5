package files

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+files\b`).
		WithArgs("f1", "u1", "report", "report.pdf", int64(1000), "application/pdf",
			"users/2026/8/30/key", true, "ref", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.File{
		ID: "f1", OwnerID: "u1", DisplayName: "report", OriginalName: "report.pdf",
		Size: 1000, MimeType: "application/pdf", StorageKey: "users/2026/8/30/key",
		Encrypted: true, KeyRef: "ref", UploadStatus: models.UploadPending,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "owner_id", "display_name", "original_name", "size",
		"mime_type", "storage_key", "encrypted", "key_ref", "upload_status", "created_at", "updated_at"}).
		AddRow("f1", "u1", "report", "report.pdf", int64(1000), "application/pdf",
			"k", false, "", "completed", now, now)

	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+files\s+WHERE\s+id=\$1`).
		WithArgs("f1").
		WillReturnRows(rows)

	f, err := repo.GetByID(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.OwnerID != "u1" || f.Size != 1000 {
		t.Fatalf("bad scan: %+v", f)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+files\s+WHERE\s+id=\$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkUploaded(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+files\s+SET\s+upload_status='completed'`
	mock.ExpectExec(q).WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := repo.MarkUploaded(ctx, "f1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.MarkUploaded(ctx, "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCurrent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+files\s+SET\s+size=\$2,\s*storage_key=\$3`).
		WithArgs("f1", int64(2048), "newkey").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateCurrent(context.Background(), "f1", 2048, "newkey"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
