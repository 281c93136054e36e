package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cardvault/internal/common"
	"github.com/dmitrijs2005/cardvault/internal/server/models"
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

	q := `(?s)^INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*$`

	expires := time.Now().Add(14 * 24 * time.Hour)
	mock.ExpectExec(q).
		WithArgs("id-1", "u1", "hash123", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.RefreshToken{
		ID: "id-1", UserID: "u1", TokenHash: "hash123", ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+refresh_tokens\b`

	mock.ExpectExec(q).
		WithArgs("id-1", "u1", "hash123", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.RefreshToken{
		ID: "id-1", UserID: "u1", TokenHash: "hash123", ExpiresAt: time.Now(),
	})
	if err == nil || !regexp.MustCompile(`error performing sql request: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByHashForUpdate_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*user_id,\s*token_hash,\s*created_at,\s*expires_at,\s*revoked\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s+FOR\s+UPDATE\s*$`

	created := time.Now().Add(-time.Hour)
	expires := time.Now().Add(10 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "created_at", "expires_at", "revoked"}).
		AddRow("id-1", "u1", "hash123", created, expires, false)

	mock.ExpectQuery(q).
		WithArgs("hash123").
		WillReturnRows(rows)

	got, err := repo.FindByHashForUpdate(context.Background(), "hash123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "id-1" || got.UserID != "u1" || got.Revoked || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestFindByHashForUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*user_id,.*FROM\s+refresh_tokens\b`

	mock.ExpectQuery(q).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHashForUpdate(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindByHashForUpdate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*user_id,.*FROM\s+refresh_tokens\b`

	mock.ExpectQuery(q).
		WithArgs("hash123").
		WillReturnError(errors.New("db err"))

	_, err := repo.FindByHashForUpdate(context.Background(), "hash123")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "id-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRevoke_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*true\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Revoke(context.Background(), "id-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRevoke_IdempotentOnMissingRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*true\b`

	// zero rows affected is still success
	mock.ExpectExec(q).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Revoke(context.Background(), "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRevokeAllForUser_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*true\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+revoked\s*=\s*false\s*$`

	mock.ExpectExec(q).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.RevokeAllForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnforceCap_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+id\s+IN\s*\(.*ORDER\s+BY\s+created_at\s+DESC\s+OFFSET\s+\$2.*\)\s*$`

	mock.ExpectExec(q).
		WithArgs("u1", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.EnforceCap(context.Background(), "u1", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnforceCap_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+id\s+IN\b`

	mock.ExpectExec(q).
		WithArgs("u1", 5).
		WillReturnError(errors.New("db err"))

	err := repo.EnforceCap(context.Background(), "u1", 5)
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDeleteExpired_ReturnsCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<\s*\$1\s*$`

	now := time.Now()
	mock.ExpectExec(q).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 deleted rows, got %d", n)
	}
}
