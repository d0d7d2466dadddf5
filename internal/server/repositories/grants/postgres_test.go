package grants

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

func grantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "file_id", "recipient_id", "recipient_email", "group_id", "permissions",
		"expires_at", "max_access_count", "access_count", "password_hash", "revoked",
		"created_by", "created_at",
	})
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+share_grants\b.*VALUES\b`

	mock.ExpectExec(q).
		WithArgs("g1", "f1", nil, "a@example.com", nil, "VIEW,DOWNLOAD",
			nil, nil, nil, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.ShareGrant{
		ID:             "g1",
		FileID:         "f1",
		RecipientEmail: "a@example.com",
		Permissions:    models.NewPermissionSet(models.PermissionView, models.PermissionDownload),
		CreatedBy:      "u1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+share_grants\s+WHERE\s+id=\$1`).
		WithArgs("missing").
		WillReturnRows(grantRows())

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByID_ScansOptionalFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := time.Now().Add(time.Hour).UTC()
	rows := grantRows().AddRow(
		"g1", "f1", "u2", nil, nil, "VIEW",
		expires, int64(5), int64(2), nil, false, "u1", time.Now())

	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+share_grants\s+WHERE\s+id=\$1`).
		WithArgs("g1").
		WillReturnRows(rows)

	g, err := repo.GetByID(context.Background(), "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.RecipientID != "u2" || g.RecipientEmail != "" {
		t.Fatalf("bad target scan: %+v", g)
	}
	if g.ExpiresAt == nil || !g.ExpiresAt.Equal(expires) {
		t.Fatalf("bad expiry scan: %v", g.ExpiresAt)
	}
	if g.MaxAccessCount == nil || *g.MaxAccessCount != 5 || g.AccessCount != 2 {
		t.Fatalf("bad quota scan: %+v", g)
	}
	if !g.Permissions.Has(models.PermissionView) || len(g.Permissions) != 1 {
		t.Fatalf("bad permission scan: %v", g.Permissions)
	}
}

func TestConsumeAccess_Consumed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+share_grants\s+SET\s+access_count\s*=\s*access_count\s*\+\s*1\b`

	mock.ExpectExec(q).WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.ConsumeAccess(context.Background(), "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected access to be consumed")
	}
}

func TestConsumeAccess_NotLive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+share_grants\s+SET\s+access_count\s*=\s*access_count\s*\+\s*1\b`

	mock.ExpectExec(q).WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ConsumeAccess(context.Background(), "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no consumption for dead grant")
	}
}

func TestRevoke(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+share_grants\s+SET\s+revoked=TRUE\s+WHERE\s+id=\$1`

	// revoking twice succeeds both times: the row still matches by id
	mock.ExpectExec(q).WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := repo.Revoke(ctx, "g1"); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := repo.Revoke(ctx, "g1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := repo.Revoke(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepairIdentity_ReturnsCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+share_grants\s+SET\s+recipient_id=\$2\s+WHERE\s+recipient_email=\$1\s+AND\s+recipient_id\s+IS\s+NULL`

	mock.ExpectExec(q).WithArgs("a@example.com", "u9").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q).WithArgs("a@example.com", "u9").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	n, err := repo.RepairIdentity(ctx, "a@example.com", "u9")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 repaired, got %d (%v)", n, err)
	}
	// second run finds nothing pending
	n, err = repo.RepairIdentity(ctx, "a@example.com", "u9")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 repaired on rerun, got %d (%v)", n, err)
	}
}

func TestListMatching_ScansAllPaths(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := grantRows().
		AddRow("g1", "f1", "u2", nil, nil, "VIEW", nil, nil, int64(0), nil, false, "u1", now).
		AddRow("g2", "f1", nil, nil, "grp1", "DOWNLOAD", nil, nil, int64(0), nil, false, "u1", now)

	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+share_grants\s+WHERE\s+file_id=\$1\s+AND\s+revoked=FALSE`).
		WithArgs("f1", "u2", "a@example.com").
		WillReturnRows(rows)

	got, err := repo.ListMatching(context.Background(), "f1", "u2", "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(got))
	}
	if got[1].GroupID != "grp1" || !got[1].Permissions.Has(models.PermissionDownload) {
		t.Fatalf("bad group grant scan: %+v", got[1])
	}
}
