package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/authgrid/authgrid/internal/auth/secret"
	"github.com/authgrid/authgrid/internal/auth/storage"
	"github.com/authgrid/authgrid/internal/common/cnst"
	"github.com/authgrid/authgrid/internal/common/errorx"

	"go.uber.org/zap"
)

// TokenManager mints access/refresh token pairs and enforces the
// at-most-one-token-per-(client, user) invariant. The delete-then-
// insert sequence in Issue is serialized per pair with a keyed mutex;
// the store's unique constraints catch whatever an external writer
// might race in.
type TokenManager struct {
	logger *zap.Logger
	store  storage.Store
	ttl    time.Duration

	locks sync.Map // pair key -> *sync.Mutex
}

// NewTokenManager creates a token manager over the given store. ttl is
// the access token lifetime.
func NewTokenManager(logger *zap.Logger, store storage.Store, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = cnst.DefaultTokenTTL
	}
	return &TokenManager{
		logger: logger.Named("auth.tokens"),
		store:  store,
		ttl:    ttl,
	}
}

func pairKey(clientID string, userID uint64) string {
	return clientID + "/" + strconv.FormatUint(userID, 10)
}

func (m *TokenManager) pairLock(clientID string, userID uint64) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(pairKey(clientID, userID), &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Issue supersedes any existing tokens for the (client, user) pair and
// mints a fresh pair. Generation collisions are retried a bounded
// number of times before failing with a server error.
func (m *TokenManager) Issue(ctx context.Context, clientID string, userID uint64, scopes []string) (*storage.Token, error) {
	mu := m.pairLock(clientID, userID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := m.store.ListTokens(ctx, clientID, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 1 {
		// The invariant only breaks if a writer bypassed this manager;
		// surface it instead of repairing silently.
		m.logger.Error("duplicate active tokens for pair",
			zap.String("client_id", clientID),
			zap.Uint64("user_id", userID),
			zap.Int("count", len(existing)))
		return nil, errorx.ErrInternal
	}

	if err := m.store.DeleteTokens(ctx, clientID, userID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < cnst.GenerateRetries; attempt++ {
		accessToken, err := secret.Generate(cnst.AccessTokenLength)
		if err != nil {
			return nil, err
		}
		refreshToken, err := secret.Generate(cnst.RefreshTokenLength)
		if err != nil {
			return nil, err
		}

		token := &storage.Token{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    cnst.TokenTypeBearer,
			ClientID:     clientID,
			UserID:       userID,
			Scopes:       scopes,
			ExpiresAt:    time.Now().Add(m.ttl).Unix(),
		}

		err = m.store.SaveToken(ctx, token)
		if errors.Is(err, errorx.ErrConflict) {
			m.logger.Warn("token generation collision, retrying",
				zap.String("client_id", clientID),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return token, nil
	}

	m.logger.Error("token generation retry budget exhausted",
		zap.String("client_id", clientID),
		zap.Uint64("user_id", userID))
	return nil, errorx.ErrInternal
}

// Lookup resolves a token by exactly one of the two token strings.
// Expired tokens are not found.
func (m *TokenManager) Lookup(ctx context.Context, accessToken, refreshToken string) (*storage.Token, error) {
	switch {
	case accessToken != "" && refreshToken == "":
		return m.store.GetTokenByAccess(ctx, accessToken)
	case refreshToken != "" && accessToken == "":
		return m.store.GetTokenByRefresh(ctx, refreshToken)
	default:
		return nil, errorx.ErrInvalidRequest
	}
}

// Refresh exchanges a live refresh token for a fresh pair; the old pair
// is superseded by the issue step.
func (m *TokenManager) Refresh(ctx context.Context, refreshToken string) (*storage.Token, error) {
	old, err := m.store.GetTokenByRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return m.Issue(ctx, old.ClientID, old.UserID, old.Scopes)
}

// RevokeAll deletes every token for the (client, user) pair. Used by
// Issue implicitly and exposed for explicit logout.
func (m *TokenManager) RevokeAll(ctx context.Context, clientID string, userID uint64) error {
	mu := m.pairLock(clientID, userID)
	mu.Lock()
	defer mu.Unlock()

	return m.store.DeleteTokens(ctx, clientID, userID)
}
