// Package http exposes the bucket registry and object operations as a JSON
// API over chi.
package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/auth"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/dmitrijs2005/bucketvault/internal/server/services"
	"github.com/dmitrijs2005/bucketvault/internal/server/storage"
)

type UserService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

type BucketService interface {
	List(ctx context.Context, userID string) ([]models.BucketSummary, error)
	Add(ctx context.Context, userID string, in models.NewBucket) (*models.BucketSummary, error)
	SetDefault(ctx context.Context, userID, bucketID string) error
	Remove(ctx context.Context, userID, bucketID string) error
}

type FileService interface {
	List(ctx context.Context, userID, bucketID, folder string, filter services.Filter) ([]models.ObjectEntry, error)
	CreateFolder(ctx context.Context, userID, bucketID, parentPath, name string) (string, error)
	Share(ctx context.Context, userID, bucketID, key string, ttl time.Duration) (*models.ShareGrant, error)
	Download(ctx context.Context, userID, bucketID, key string) (*services.Download, error)
	Upload(ctx context.Context, userID, bucketID, folder, fileName string, body io.Reader, size int64, contentType string) (*models.ObjectEntry, error)
	Delete(ctx context.Context, userID, bucketID, key string) error
	TestConnection(ctx context.Context, creds storage.Credentials) error
}

// Handler holds the API endpoints. Protected endpoints expect Authenticate
// to have run.
type Handler struct {
	users          UserService
	buckets        BucketService
	files          FileService
	maxUploadBytes int64
	logger         logging.Logger
}

func NewHandler(us UserService, bs BucketService, fs FileService, maxUploadBytes int64, logger logging.Logger) *Handler {
	return &Handler{
		users:          us,
		buckets:        bs,
		files:          fs,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("module", "http"),
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// fail writes err and logs it when it was not a client mistake.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := WriteError(w, r, err); status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err,
			"request_id", RequestIDFromContext(r.Context()))
	}
}

// userID is always present behind Authenticate.
func userID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
