package services

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/auth"
	"github.com/dmitrijs2005/bucketvault/internal/server/config"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/dmitrijs2005/bucketvault/internal/server/repositories/repomanager"
)

type LoginResult struct {
	Token string
	User  *models.User
}

type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	defaultBucketLimit          int
	logger                      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		defaultBucketLimit:          cfg.DefaultBucketLimit,
		logger:                      logger.With("module", "users"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with the configured default bucket limit.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	switch {
	case name == "":
		return nil, common.NewValidationError("name", "is required")
	case email == "":
		return nil, common.NewValidationError("email", "is required")
	case password == "":
		return nil, common.NewValidationError("password", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, common.NewValidationError("email", "is not a valid address")
	}

	salt, verifier := auth.NewVerifier(password)

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:       email,
		Name:        name,
		Salt:        salt,
		Verifier:    verifier,
		BucketLimit: s.defaultBucketLimit,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the password and mints an access token. Unknown emails and
// wrong passwords both yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// keep timing close to the found-user path
			auth.CheckPassword(password, common.GenerateRandByteArray(32), nil)
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	if !auth.CheckPassword(password, user.Salt, user.Verifier) {
		return nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &LoginResult{Token: token, User: user}, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	count, err := s.repomanager.Buckets(s.db).Count(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		CreatedAt:   user.CreatedAt,
		BucketLimit: user.BucketLimit,
		BucketCount: count,
		HasS3Config: count > 0,
	}, nil
}

// SetBucketLimit changes a user's quota. Lowering it below the current
// count keeps existing connections but blocks new ones.
func (s *UserService) SetBucketLimit(ctx context.Context, email string, limit int) error {
	if limit < UnlimitedBuckets {
		return common.NewValidationError("limit", "must be -1 (unlimited) or a non-negative number")
	}

	if err := s.repomanager.Users(s.db).SetBucketLimit(ctx, normalizeEmail(email), limit); err != nil {
		return err
	}

	s.logger.Info(ctx, "bucket limit changed", "limit", limit)
	return nil
}
