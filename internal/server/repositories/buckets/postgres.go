package buckets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/dbx"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
)

// UniqueNameConstraint is the constraint behind DuplicateBucketError.
const UniqueNameConstraint = "buckets_user_id_bucket_name_key"

const bucketColumns = `id, user_id, name, bucket_name, region, access_key_id, encrypted_secret_key, is_default, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBucket(s scanner) (*models.Bucket, error) {
	b := &models.Bucket{}
	err := s.Scan(&b.ID, &b.UserID, &b.Name, &b.BucketName, &b.Region,
		&b.AccessKeyID, &b.EncryptedSecretKey, &b.IsDefault, &b.CreatedAt)
	return b, err
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*models.Bucket, error) {
	query :=
		`SELECT ` + bucketColumns + ` FROM buckets
		 WHERE user_id = $1
		 ORDER BY is_default DESC, created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Bucket, 0)
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, b *models.Bucket) (*models.Bucket, error) {
	query :=
		`INSERT INTO buckets (user_id, name, bucket_name, region, access_key_id, encrypted_secret_key, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		b.UserID, b.Name, b.BucketName, b.Region, b.AccessKeyID, b.EncryptedSecretKey, b.IsDefault).
		Scan(&b.ID, &b.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, UniqueNameConstraint) {
			return nil, &common.DuplicateBucketError{BucketName: b.BucketName}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return b, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.Bucket, error) {
	query :=
		`SELECT ` + bucketColumns + ` FROM buckets
		 WHERE user_id = $1 AND id = $2
		 `

	return r.one(r.db.QueryRowContext(ctx, query, userID, id))
}

// FindActive returns the default connection, or the oldest one when no
// connection is marked default.
func (r *PostgresRepository) FindActive(ctx context.Context, userID string) (*models.Bucket, error) {
	query :=
		`SELECT ` + bucketColumns + ` FROM buckets
		 WHERE user_id = $1
		 ORDER BY is_default DESC, created_at ASC
		 LIMIT 1
		 `

	return r.one(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) one(row *sql.Row) (*models.Bucket, error) {
	b, err := scanBucket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) Count(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM buckets WHERE user_id = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ExistsByName(ctx context.Context, userID, bucketName string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM buckets WHERE user_id = $1 AND bucket_name = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, bucketName).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) ClearDefaults(ctx context.Context, userID string) error {
	query :=
		`UPDATE buckets SET is_default = FALSE
		 WHERE user_id = $1 AND is_default
		 `

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetDefault(ctx context.Context, userID, id string) error {
	query :=
		`UPDATE buckets SET is_default = TRUE
		 WHERE user_id = $1 AND id = $2
		 `

	return r.execOne(ctx, query, userID, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM buckets WHERE user_id = $1 AND id = $2`

	return r.execOne(ctx, query, userID, id)
}

// execOne runs a statement that must touch exactly one owned row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// ListSecrets locks and returns every stored secret blob.
func (r *PostgresRepository) ListSecrets(ctx context.Context) ([]models.SecretRecord, error) {
	query :=
		`SELECT id, encrypted_secret_key FROM buckets
		 ORDER BY created_at
		 FOR UPDATE
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.SecretRecord
	for rows.Next() {
		var rec models.SecretRecord
		if err := rows.Scan(&rec.ID, &rec.EncryptedSecretKey); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) UpdateSecret(ctx context.Context, id, encrypted string) error {
	query := `UPDATE buckets SET encrypted_secret_key = $2 WHERE id = $1`

	return r.execOne(ctx, query, id, encrypted)
}
