package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"filevault/internal/common"
	"filevault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func fileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "name", "type", "is_public", "parent_id", "storage_key", "created_at"})
}

func TestCreate_File_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+files\b.*RETURNING\s+created_at`

	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs(sqlmock.AnyArg(), "u1", "pic.png", "image", false, "0", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	file, err := repo.Create(context.Background(), &models.File{
		OwnerID:    "u1",
		Name:       "pic.png",
		Type:       "image",
		ParentID:   "0",
		StorageKey: "key-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.ID == "" {
		t.Fatal("expected a generated id")
	}
	if !file.CreatedAt.Equal(now) {
		t.Fatalf("created_at not populated: %v", file.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_Folder_NullStorageKey(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+files\b.*RETURNING\s+created_at`

	mock.ExpectQuery(q).
		WithArgs(sqlmock.AnyArg(), "u1", "docs", "folder", false, "0", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	_, err := repo.Create(context.Background(), &models.File{
		OwnerID:  "u1",
		Name:     "docs",
		Type:     "folder",
		ParentID: "0",
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

	mock.ExpectQuery(`INSERT\s+INTO\s+files`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.File{OwnerID: "u1", Name: "x", Type: "file", ParentID: "0", StorageKey: "k"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM files WHERE id = \$1$`).
		WithArgs("f1").
		WillReturnRows(fileRows().AddRow("f1", "u1", "pic.png", "image", true, "0", "key-1", time.Now()))

	file, err := repo.GetByID(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.ID != "f1" || file.OwnerID != "u1" || file.StorageKey != "key-1" || !file.IsPublic {
		t.Fatalf("unexpected file: %+v", file)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM files WHERE id = \$1$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetByIDAndOwner_ScopesOnOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM files WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("f1", "u2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIDAndOwner(context.Background(), "f1", "u2")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound for foreign owner, got %v", err)
	}
}

func TestListByOwnerAndParent_PageArithmetic(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT .* FROM files.*WHERE owner_id = \$1 AND parent_id = \$2.*ORDER BY created_at, id.*LIMIT \$3 OFFSET \$4`

	mock.ExpectQuery(q).
		WithArgs("u1", "0", PageSize, 2*PageSize).
		WillReturnRows(fileRows().
			AddRow("f1", "u1", "a", "file", false, "0", "k1", time.Now()).
			AddRow("f2", "u1", "b", "folder", false, "0", nil, time.Now()))

	list, err := repo.ListByOwnerAndParent(context.Background(), "u1", "0", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("want 2 rows, got %d", len(list))
	}
	if list[1].StorageKey != "" {
		t.Fatalf("folder must have empty storage key, got %q", list[1].StorageKey)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListByOwnerAndParent_NegativePageClamped(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM files`).
		WithArgs("u1", "0", PageSize, 0).
		WillReturnRows(fileRows())

	if _, err := repo.ListByOwnerAndParent(context.Background(), "u1", "0", -3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetPublic_ReturnsUpdatedDocument(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE files SET is_public = \$3.*WHERE id = \$1 AND owner_id = \$2.*RETURNING`

	mock.ExpectQuery(q).
		WithArgs("f1", "u1", true).
		WillReturnRows(fileRows().AddRow("f1", "u1", "pic.png", "image", true, "0", "key-1", time.Now()))

	file, err := repo.SetPublic(context.Background(), "f1", "u1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !file.IsPublic {
		t.Fatal("expected post-update document with is_public=true")
	}
}

func TestSetPublic_NoMatchingRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE files SET is_public`).
		WithArgs("f1", "intruder", true).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.SetPublic(context.Background(), "f1", "intruder", true)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM files`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Fatalf("want 42, got %d", n)
	}
}
