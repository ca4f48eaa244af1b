package auth

import (
	"context"
	"time"

	"github.com/authgrid/authgrid/internal/auth/storage"
	"github.com/authgrid/authgrid/internal/common/cnst"
	"github.com/authgrid/authgrid/internal/common/errorx"

	"go.uber.org/zap"
)

// GrantManager issues and redeems short-lived authorization grants.
// A grant is redeemable exactly once: Redeem deletes it before
// returning, so a replayed code fails as not found.
type GrantManager struct {
	logger *zap.Logger
	store  storage.Store
	ttl    time.Duration
}

// NewGrantManager creates a grant manager over the given store.
func NewGrantManager(logger *zap.Logger, store storage.Store) *GrantManager {
	return &GrantManager{
		logger: logger.Named("auth.grants"),
		store:  store,
		ttl:    cnst.GrantTTL,
	}
}

// Issue creates and persists a grant bound to the client and, for
// user-delegated flows, the user. An unexpired grant with the same
// (client, code) already in the store is a conflict, never a silent
// duplicate.
func (m *GrantManager) Issue(ctx context.Context, clientID, code, redirectURI string, scopes []string, userID uint64) (*storage.Grant, error) {
	grant := &storage.Grant{
		Code:        code,
		ClientID:    clientID,
		UserID:      userID,
		RedirectURI: redirectURI,
		Scopes:      scopes,
		ExpiresAt:   time.Now().Add(m.ttl).Unix(),
	}

	if err := m.store.SaveGrant(ctx, grant); err != nil {
		return nil, err
	}

	m.logger.Debug("issued authorization grant",
		zap.String("client_id", clientID),
		zap.Uint64("user_id", userID))
	return grant, nil
}

// Redeem looks up a grant by exact (client, code) and consumes it. An
// expired grant is indistinguishable from a missing one.
func (m *GrantManager) Redeem(ctx context.Context, clientID, code string) (*storage.Grant, error) {
	grant, err := m.store.GetGrant(ctx, clientID, code)
	if err != nil {
		return nil, err
	}

	if grant.Expired(time.Now()) {
		_ = m.store.DeleteGrant(ctx, clientID, code)
		return nil, errorx.ErrInvalidGrant
	}

	// Consume before returning so the code cannot be replayed.
	if err := m.store.DeleteGrant(ctx, clientID, code); err != nil {
		return nil, err
	}

	return grant, nil
}
