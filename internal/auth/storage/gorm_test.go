package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/authgrid/authgrid/internal/common/config"
	"github.com/authgrid/authgrid/internal/common/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGorm(t *testing.T) *GormStorage {
	t.Helper()
	cfg := &config.DatabaseConfig{Type: "sqlite", DBName: filepath.Join(t.TempDir(), "auth.db")}
	s, err := NewGormStorage(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGormStorage_UnsupportedType(t *testing.T) {
	_, err := NewGormStorage(&config.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)
}

func TestGormStorage_ClientScopeEncoding(t *testing.T) {
	s := newTestGorm(t)
	ctx := context.Background()

	c := &Client{
		ID:            "c1",
		Secret:        "s1",
		Name:          "app",
		UserID:        9,
		RedirectURIs:  []string{"http://a/cb", "http://b/cb"},
		DefaultScopes: []string{"read", "write"},
	}
	require.NoError(t, s.CreateClient(ctx, c))
	assert.ErrorIs(t, s.CreateClient(ctx, &Client{ID: "c1"}), errorx.ErrConflict)

	got, err := s.GetClient(ctx, "c1")
	require.NoError(t, err)
	// delimited text round-trips back into ordered slices
	assert.Equal(t, []string{"http://a/cb", "http://b/cb"}, got.RedirectURIs)
	assert.Equal(t, []string{"read", "write"}, got.DefaultScopes)
	assert.EqualValues(t, 9, got.UserID)
}

func TestGormStorage_GrantConflictAndExpiry(t *testing.T) {
	s := newTestGorm(t)
	ctx := context.Background()

	live := &Grant{Code: "abc", ClientID: "c1", UserID: 1, RedirectURI: "http://a/cb", Scopes: []string{"read"}, ExpiresAt: time.Now().Add(100 * time.Second).Unix()}
	require.NoError(t, s.SaveGrant(ctx, live))
	assert.ErrorIs(t, s.SaveGrant(ctx, &Grant{Code: "abc", ClientID: "c1", ExpiresAt: live.ExpiresAt}), errorx.ErrConflict)

	got, err := s.GetGrant(ctx, "c1", "abc")
	require.NoError(t, err)
	assert.Equal(t, "http://a/cb", got.RedirectURI)

	require.NoError(t, s.DeleteGrant(ctx, "c1", "abc"))
	_, err = s.GetGrant(ctx, "c1", "abc")
	assert.ErrorIs(t, err, errorx.ErrInvalidGrant)

	// expired rows are replaced, not conflicting
	stale := &Grant{Code: "old", ClientID: "c1", ExpiresAt: time.Now().Add(-time.Second).Unix()}
	require.NoError(t, s.SaveGrant(ctx, stale))
	_, err = s.GetGrant(ctx, "c1", "old")
	assert.ErrorIs(t, err, errorx.ErrInvalidGrant)
	fresh := &Grant{Code: "old", ClientID: "c1", ExpiresAt: time.Now().Add(time.Minute).Unix()}
	assert.NoError(t, s.SaveGrant(ctx, fresh))
}

func TestGormStorage_TokenUniqueIndexes(t *testing.T) {
	s := newTestGorm(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Unix()

	tok := &Token{AccessToken: "at", RefreshToken: "rt", TokenType: "bearer", ClientID: "c1", UserID: 2, Scopes: []string{"read"}, ExpiresAt: exp}
	require.NoError(t, s.SaveToken(ctx, tok))

	// access token, refresh token and the (client, user) pair are all
	// unique columns; any collision is a conflict
	assert.ErrorIs(t, s.SaveToken(ctx, &Token{AccessToken: "at", RefreshToken: "r2", ClientID: "c9", UserID: 9, ExpiresAt: exp}), errorx.ErrConflict)
	assert.ErrorIs(t, s.SaveToken(ctx, &Token{AccessToken: "a2", RefreshToken: "rt", ClientID: "c9", UserID: 9, ExpiresAt: exp}), errorx.ErrConflict)
	assert.ErrorIs(t, s.SaveToken(ctx, &Token{AccessToken: "a3", RefreshToken: "r3", ClientID: "c1", UserID: 2, ExpiresAt: exp}), errorx.ErrConflict)

	byAccess, err := s.GetTokenByAccess(ctx, "at")
	require.NoError(t, err)
	byRefresh, err := s.GetTokenByRefresh(ctx, "rt")
	require.NoError(t, err)
	assert.Equal(t, byAccess.AccessToken, byRefresh.AccessToken)
	assert.Equal(t, []string{"read"}, byAccess.Scopes)

	require.NoError(t, s.DeleteTokens(ctx, "c1", 2))
	toks, err := s.ListTokens(ctx, "c1", 2)
	require.NoError(t, err)
	assert.Empty(t, toks)
	_, err = s.GetTokenByAccess(ctx, "at")
	assert.ErrorIs(t, err, errorx.ErrTokenNotFound)
}

func TestGormStorage_ExpiredTokenFiltered(t *testing.T) {
	s := newTestGorm(t)
	ctx := context.Background()

	tok := &Token{AccessToken: "stale", RefreshToken: "stale-r", ClientID: "c1", UserID: 1, ExpiresAt: time.Now().Add(-time.Minute).Unix()}
	require.NoError(t, s.SaveToken(ctx, tok))

	_, err := s.GetTokenByAccess(ctx, "stale")
	assert.ErrorIs(t, err, errorx.ErrTokenExpired)
	_, err = s.GetTokenByAccess(ctx, "stale")
	assert.ErrorIs(t, err, errorx.ErrTokenNotFound)
}
