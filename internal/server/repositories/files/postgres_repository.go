package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"filevault/internal/common"
	"filevault/internal/dbx"
	"filevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// fileColumns is the scan order shared by every SELECT in this repository.
const fileColumns = `id, owner_id, name, type, is_public, parent_id, storage_key, created_at`

func scanFile(row *sql.Row) (*models.File, error) {
	f := &models.File{}
	var storageKey sql.NullString
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Type, &f.IsPublic, &f.ParentID, &storageKey, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.StorageKey = storageKey.String
	return f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {

	if file.ID == "" {
		file.ID = uuid.New().String()
	}

	query :=
		`INSERT INTO files (id, owner_id, name, type, is_public, parent_id, storage_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at
		 `

	var storageKey any
	if file.StorageKey != "" {
		storageKey = file.StorageKey
	}

	err := r.db.QueryRowContext(ctx, query,
		file.ID, file.OwnerID, file.Name, file.Type, file.IsPublic, file.ParentID, storageKey).Scan(&file.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND owner_id = $2`

	file, err := scanFile(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) ListByOwnerAndParent(ctx context.Context, ownerID, parentID string, page int) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		 WHERE owner_id = $1 AND parent_id = $2
		 ORDER BY created_at, id
		 LIMIT $3 OFFSET $4`

	if page < 0 {
		page = 0
	}

	rows, err := r.db.QueryContext(ctx, query, ownerID, parentID, PageSize, page*PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f := &models.File{}
		var storageKey sql.NullString
		err := rows.Scan(&f.ID, &f.OwnerID, &f.Name, &f.Type, &f.IsPublic, &f.ParentID, &storageKey, &f.CreatedAt)
		if err != nil {
			return nil, err
		}
		f.StorageKey = storageKey.String
		result = append(result, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) SetPublic(ctx context.Context, id, ownerID string, value bool) (*models.File, error) {
	// Single conditional UPDATE: the row is matched on id AND owner in the
	// same statement that mutates it, so no reader can observe a torn write
	// and "not found" is indistinguishable from "not owned".
	query := `UPDATE files SET is_public = $3
		 WHERE id = $1 AND owner_id = $2
		 RETURNING ` + fileColumns

	file, err := scanFile(r.db.QueryRowContext(ctx, query, id, ownerID, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
