// Package services contains server-side business logic: the bucket
// registry, the object namespace, share links, and user accounts.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/dbx"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/dmitrijs2005/bucketvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bucketvault/internal/server/storage"
	"github.com/google/uuid"
)

// SecretCipher encrypts bucket secret keys at rest. *cryptox.Cipher
// satisfies it.
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// BucketService owns the per-user registry of bucket connections.
//
// Writes that touch the default flag or the quota run in one transaction
// that first locks the owning user row, so concurrent adds and default
// switches for the same user are serialized.
type BucketService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      SecretCipher
	logger      logging.Logger
}

func NewBucketService(db *sql.DB, m repomanager.RepositoryManager, cipher SecretCipher, logger logging.Logger) *BucketService {
	return &BucketService{
		db:          db,
		repomanager: m,
		cipher:      cipher,
		logger:      logger.With("module", "buckets"),
	}
}

// List returns the user's connections, default first, then newest first.
func (s *BucketService) List(ctx context.Context, userID string) ([]models.BucketSummary, error) {
	list, err := s.repomanager.Buckets(s.db).List(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]models.BucketSummary, 0, len(list))
	for _, b := range list {
		result = append(result, b.Summary())
	}
	return result, nil
}

func validateNewBucket(in *models.NewBucket) error {
	in.Name = strings.TrimSpace(in.Name)
	in.BucketName = strings.TrimSpace(in.BucketName)
	in.Region = strings.TrimSpace(in.Region)
	in.AccessKeyID = strings.TrimSpace(in.AccessKeyID)

	required := []struct {
		field string
		value string
	}{
		{"name", in.Name},
		{"bucketName", in.BucketName},
		{"region", in.Region},
		{"accessKeyId", in.AccessKeyID},
		{"secretAccessKey", strings.TrimSpace(in.SecretKey)},
	}
	for _, r := range required {
		if r.value == "" {
			return common.NewValidationError(r.field, "is required")
		}
	}
	return nil
}

// Add registers a new connection. The first connection a user adds always
// becomes the default; later ones only when requested, in which case every
// other default is cleared in the same transaction.
func (s *BucketService) Add(ctx context.Context, userID string, in models.NewBucket) (*models.BucketSummary, error) {
	if err := validateNewBucket(&in); err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(in.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("error encrypting secret key: %w", err)
	}

	var created *models.Bucket

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		usersRepo := s.repomanager.Users(tx)
		bucketsRepo := s.repomanager.Buckets(tx)

		limit, err := usersRepo.LockForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}

		exists, err := bucketsRepo.ExistsByName(ctx, userID, in.BucketName)
		if err != nil {
			return err
		}
		if exists {
			return &common.DuplicateBucketError{BucketName: in.BucketName}
		}

		count, err := bucketsRepo.Count(ctx, userID)
		if err != nil {
			return err
		}
		if err := CheckQuota(count, limit); err != nil {
			return err
		}

		decision := DecideDefault(count, in.IsDefault)
		if decision.ClearOthers {
			if err := bucketsRepo.ClearDefaults(ctx, userID); err != nil {
				return err
			}
		}

		created, err = bucketsRepo.Create(ctx, &models.Bucket{
			UserID:             userID,
			Name:               in.Name,
			BucketName:         in.BucketName,
			Region:             in.Region,
			AccessKeyID:        in.AccessKeyID,
			EncryptedSecretKey: encrypted,
			IsDefault:          decision.MakeDefault,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "bucket added", "user_id", userID, "bucket_id", created.ID, "default", created.IsDefault)

	summary := created.Summary()
	return &summary, nil
}

// SetDefault makes bucketID the user's only default connection.
func (s *BucketService) SetDefault(ctx context.Context, userID, bucketID string) error {
	if !isValidID(bucketID) {
		return common.ErrorNotFound
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		bucketsRepo := s.repomanager.Buckets(tx)

		if _, err := s.repomanager.Users(tx).LockForUpdate(ctx, userID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}

		if _, err := bucketsRepo.GetByID(ctx, userID, bucketID); err != nil {
			return err
		}

		if err := bucketsRepo.ClearDefaults(ctx, userID); err != nil {
			return err
		}

		return bucketsRepo.SetDefault(ctx, userID, bucketID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "default bucket changed", "user_id", userID, "bucket_id", bucketID)
	return nil
}

// Remove deletes the local connection record only. Objects in the bucket
// are untouched, and no other connection is promoted to default.
func (s *BucketService) Remove(ctx context.Context, userID, bucketID string) error {
	if !isValidID(bucketID) {
		return common.ErrorNotFound
	}

	if err := s.repomanager.Buckets(s.db).Delete(ctx, userID, bucketID); err != nil {
		return err
	}

	s.logger.Info(ctx, "bucket removed", "user_id", userID, "bucket_id", bucketID)
	return nil
}

// ResolveActive returns the connection a request should use: bucketID when
// given, otherwise the default, otherwise the oldest connection.
func (s *BucketService) ResolveActive(ctx context.Context, userID, bucketID string) (*models.Bucket, error) {
	repo := s.repomanager.Buckets(s.db)

	if bucketID != "" {
		if !isValidID(bucketID) {
			return nil, common.ErrorNotFound
		}
		return repo.GetByID(ctx, userID, bucketID)
	}

	b, err := repo.FindActive(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNotConfigured
		}
		return nil, err
	}
	return b, nil
}

// DecryptedCredentials unlocks the connection's secret key. The result must
// not outlive the request that asked for it.
func (s *BucketService) DecryptedCredentials(b *models.Bucket) (storage.Credentials, error) {
	secret, err := s.cipher.Decrypt(b.EncryptedSecretKey)
	if err != nil {
		return storage.Credentials{}, err
	}

	return storage.Credentials{
		AccessKeyID: b.AccessKeyID,
		SecretKey:   secret,
		Region:      b.Region,
		BucketName:  b.BucketName,
	}, nil
}

// Rekey re-encrypts every stored secret from one cipher to another in a
// single transaction. Any row that does not decrypt under from aborts the
// whole rotation. It returns the number of rows rewritten.
func (s *BucketService) Rekey(ctx context.Context, from, to SecretCipher) (int, error) {
	var n int

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Buckets(tx)

		records, err := repo.ListSecrets(ctx)
		if err != nil {
			return err
		}

		for _, rec := range records {
			plain, err := from.Decrypt(rec.EncryptedSecretKey)
			if err != nil {
				return fmt.Errorf("bucket %s: %w", rec.ID, err)
			}

			blob, err := to.Encrypt(plain)
			if err != nil {
				return fmt.Errorf("bucket %s: %w", rec.ID, err)
			}

			if err := repo.UpdateSecret(ctx, rec.ID, blob); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "bucket secrets re-encrypted", "count", n)
	return n, nil
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
