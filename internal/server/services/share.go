package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/models"
	"github.com/dmitrijs2005/bucketvault/internal/server/storage"
)

// MaxShareTTL is the longest lifetime a SigV4 presigned URL may have.
const MaxShareTTL = 7 * 24 * time.Hour

// ShareLinkIssuer hands out presigned download URLs. Links are not stored
// and cannot be revoked before they expire.
type ShareLinkIssuer struct {
	defaultTTL time.Duration
	logger     logging.Logger
	now        func() time.Time
}

func NewShareLinkIssuer(defaultTTL time.Duration, logger logging.Logger) *ShareLinkIssuer {
	if defaultTTL <= 0 || defaultTTL > MaxShareTTL {
		defaultTTL = MaxShareTTL
	}
	return &ShareLinkIssuer{
		defaultTTL: defaultTTL,
		logger:     logger.With("module", "share"),
		now:        time.Now,
	}
}

// Issue returns a link to key valid for ttl (the issuer default when ttl is
// zero). The key is checked with a HEAD request first; that check is best
// effort and races with concurrent deletes.
func (s *ShareLinkIssuer) Issue(ctx context.Context, backend storage.Backend, key string, ttl time.Duration) (*models.ShareGrant, error) {
	if key == "" {
		return nil, common.NewValidationError("key", "is required")
	}

	switch {
	case ttl == 0:
		ttl = s.defaultTTL
	case ttl < 0:
		return nil, common.NewValidationError("ttl", "must be positive")
	case ttl > MaxShareTTL:
		return nil, common.NewValidationError("ttl", "must not exceed 7 days")
	}

	if _, err := backend.Head(ctx, key); err != nil {
		return nil, err
	}

	issued := s.now()
	url, err := backend.PresignGet(ctx, key, ttl)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "share link issued", "key", key, "ttl", ttl.String())

	return &models.ShareGrant{URL: url, ExpiresAt: issued.Add(ttl)}, nil
}
