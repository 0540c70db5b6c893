package services

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/dmitrijs2005/bucketvault/internal/server/storage"
)

// BucketResolver picks the connection for a request and unlocks it.
// *BucketService satisfies it.
type BucketResolver interface {
	ResolveActive(ctx context.Context, userID, bucketID string) (*models.Bucket, error)
	DecryptedCredentials(b *models.Bucket) (storage.Credentials, error)
}

// Download is an open object stream. The caller must close Body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	FileName      string
}

// FileService runs object operations against the bucket a request selects.
type FileService struct {
	buckets        BucketResolver
	connector      storage.Connector
	namespace      *ObjectNamespace
	share          *ShareLinkIssuer
	maxUploadBytes int64
	logger         logging.Logger
}

func NewFileService(buckets BucketResolver, connector storage.Connector, namespace *ObjectNamespace,
	share *ShareLinkIssuer, maxUploadBytes int64, logger logging.Logger) *FileService {
	return &FileService{
		buckets:        buckets,
		connector:      connector,
		namespace:      namespace,
		share:          share,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("module", "files"),
	}
}

func (s *FileService) open(ctx context.Context, userID, bucketID string) (storage.Backend, error) {
	b, err := s.buckets.ResolveActive(ctx, userID, bucketID)
	if err != nil {
		return nil, err
	}

	creds, err := s.buckets.DecryptedCredentials(b)
	if err != nil {
		s.logger.Warn(ctx, "bucket credentials unreadable", "user_id", userID, "bucket_id", b.ID, "error", err)
		return nil, err
	}

	return s.connector.Open(ctx, creds)
}

func (s *FileService) List(ctx context.Context, userID, bucketID, folder string, filter Filter) ([]models.ObjectEntry, error) {
	backend, err := s.open(ctx, userID, bucketID)
	if err != nil {
		return nil, err
	}
	return s.namespace.List(ctx, backend, PrefixForPath(folder), filter)
}

func (s *FileService) CreateFolder(ctx context.Context, userID, bucketID, parentPath, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", common.NewValidationError("folderName", "is required")
	}

	backend, err := s.open(ctx, userID, bucketID)
	if err != nil {
		return "", err
	}
	return s.namespace.CreateFolder(ctx, backend, parentPath, name)
}

func (s *FileService) Share(ctx context.Context, userID, bucketID, key string, ttl time.Duration) (*models.ShareGrant, error) {
	if key == "" {
		return nil, common.NewValidationError("key", "is required")
	}

	backend, err := s.open(ctx, userID, bucketID)
	if err != nil {
		return nil, err
	}
	return s.share.Issue(ctx, backend, key, ttl)
}

// DownloadFileName is the last key segment, or "download" for keys that
// end in the delimiter.
func DownloadFileName(key string) string {
	if i := strings.LastIndex(key, Delimiter); i >= 0 {
		key = key[i+1:]
	}
	if key == "" {
		return "download"
	}
	return key
}

func (s *FileService) Download(ctx context.Context, userID, bucketID, key string) (*Download, error) {
	if key == "" {
		return nil, common.NewValidationError("key", "is required")
	}

	backend, err := s.open(ctx, userID, bucketID)
	if err != nil {
		return nil, err
	}

	r, err := backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	name := DownloadFileName(key)
	contentType := r.ContentType
	if contentType == "" {
		contentType = MimeType(name)
	}

	return &Download{
		Body:          r.Body,
		ContentType:   contentType,
		ContentLength: r.ContentLength,
		FileName:      name,
	}, nil
}

// Upload stores one object named fileName under folder. The stored content
// type is inferred from the name when contentType is empty.
func (s *FileService) Upload(ctx context.Context, userID, bucketID, folder, fileName string,
	body io.Reader, size int64, contentType string) (*models.ObjectEntry, error) {

	name := path.Base(strings.ReplaceAll(fileName, "\\", Delimiter))
	if name == "" || name == "." || name == ".." || name == Delimiter {
		return nil, common.NewValidationError("file", "has no usable name")
	}
	if size < 0 {
		return nil, common.NewValidationError("file", "size is unknown")
	}
	if s.maxUploadBytes > 0 && size > s.maxUploadBytes {
		return nil, common.NewValidationError("file", "is too large")
	}

	backend, err := s.open(ctx, userID, bucketID)
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = MimeType(name)
	}

	key := PrefixForPath(folder) + name
	if err := backend.Put(ctx, key, body, size, contentType); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "object uploaded", "user_id", userID, "key", key, "size", size)

	return &models.ObjectEntry{
		Key:          key,
		Name:         name,
		Size:         size,
		LastModified: time.Now(),
		MimeType:     contentType,
	}, nil
}

// Delete removes a single object. Folders are not deleted recursively.
func (s *FileService) Delete(ctx context.Context, userID, bucketID, key string) error {
	if key == "" {
		return common.NewValidationError("key", "is required")
	}

	backend, err := s.open(ctx, userID, bucketID)
	if err != nil {
		return err
	}

	if err := backend.Delete(ctx, key); err != nil {
		return err
	}

	s.logger.Info(ctx, "object deleted", "user_id", userID, "key", key)
	return nil
}

// TestConnection checks unsaved credentials with a one-key listing.
func (s *FileService) TestConnection(ctx context.Context, creds storage.Credentials) error {
	required := []struct {
		field string
		value string
	}{
		{"accessKeyId", creds.AccessKeyID},
		{"secretAccessKey", creds.SecretKey},
		{"region", creds.Region},
		{"bucketName", creds.BucketName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return common.NewValidationError(r.field, "is required")
		}
	}

	backend, err := s.connector.Open(ctx, creds)
	if err != nil {
		return err
	}

	_, err = backend.List(ctx, storage.ListInput{MaxKeys: 1})
	return err
}
