// Package sessions issues, verifies and revokes bearer session tokens.
// Tokens themselves are stateless JWTs; revocation is kept in the volatile
// cache as a denylist entry whose TTL equals the token's remaining validity,
// so an entry never outlives the token it blocks and never expires before it.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
)

const denylistKeyPrefix = "blacklistedToken:"

// Cache is the slice of the volatile cache client the session manager needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Manager gates requests on token validity and handles the token lifecycle:
// Active -> Expired (time-driven) or Active -> Revoked (explicit logout),
// both terminal. Verify is a pure read over that state.
type Manager struct {
	cache         Cache
	logger        logging.Logger
	jwtSecret     []byte
	tokenValidity time.Duration
}

func NewManager(cache Cache, logger logging.Logger, cfg *config.Config) *Manager {
	return &Manager{
		cache:         cache,
		logger:        logger.With("module", "sessions"),
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.AccessTokenValidityDuration,
	}
}

func denylistKey(token string) string {
	return denylistKeyPrefix + token
}

// IssueToken creates a signed token for userID with the configured validity
// window. No state is recorded anywhere.
func (m *Manager) IssueToken(userID int64) (string, error) {
	return auth.GenerateToken(userID, m.jwtSecret, m.tokenValidity)
}

// Verify checks the token and returns the user id it was issued for.
// The denylist is consulted before the signature: the revoke-then-retry
// pattern is common and the lookup is cheaper than a cryptographic check.
//
// Rejections: common.ErrTokenMissing, ErrTokenRevoked, ErrTokenExpired,
// ErrTokenInvalid, or ErrCacheUnavailable when the denylist cannot be read
// (fail closed; a revoked token must not slip through during an outage).
func (m *Manager) Verify(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, common.ErrTokenMissing
	}

	_, err := m.cache.Get(ctx, denylistKey(token))
	switch {
	case err == nil:
		return 0, common.ErrTokenRevoked
	case errors.Is(err, common.ErrCacheMiss):
		// not revoked
	case errors.Is(err, common.ErrCacheUnavailable):
		return 0, common.ErrCacheUnavailable
	default:
		return 0, common.ErrorInternal
	}

	return auth.GetUserIDFromToken(token, m.jwtSecret)
}

// Revoke denylists the token for its remaining validity window. Revoking an
// already expired token is a no-op success, so logout is idempotent. A cache
// failure is surfaced loudly: silently "succeeding" would leave a
// supposedly-logged-out token valid.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrTokenMissing
	}

	claims, err := auth.DecodeToken(token, m.jwtSecret)
	if err != nil {
		return common.ErrTokenInvalid
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		m.logger.Debug(ctx, "revoke of naturally expired token", "user_id", claims.UserID)
		return nil
	}

	if err := m.cache.Set(ctx, denylistKey(token), "true", remaining); err != nil {
		m.logger.Error(ctx, "failed to write denylist entry", "error", err)
		return err
	}

	return nil
}
