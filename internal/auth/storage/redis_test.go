package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/authgrid/authgrid/internal/common/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *RedisStorage {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStorage(mr.Addr(), "", 0)
	require.NoError(t, err)
	return s
}

func TestRedisStorage_ConnectFailure(t *testing.T) {
	_, err := NewRedisStorage("127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

func TestRedisStorage_ClientRoundTrip(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	_, err := s.GetClient(ctx, "missing")
	assert.ErrorIs(t, err, errorx.ErrInvalidClient)

	c := &Client{ID: "c1", Secret: "s1", Name: "app", RedirectURIs: []string{"http://app/cb"}, DefaultScopes: []string{"read"}}
	require.NoError(t, s.CreateClient(ctx, c))
	assert.ErrorIs(t, s.CreateClient(ctx, &Client{ID: "c1"}), errorx.ErrConflict)

	got, err := s.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, got.DefaultScopes)
}

func TestRedisStorage_GrantLifecycle(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	g := &Grant{Code: "abc", ClientID: "c1", UserID: 3, Scopes: []string{"read", "write"}, ExpiresAt: time.Now().Add(100 * time.Second).Unix()}
	require.NoError(t, s.SaveGrant(ctx, g))
	assert.ErrorIs(t, s.SaveGrant(ctx, &Grant{Code: "abc", ClientID: "c1", ExpiresAt: g.ExpiresAt}), errorx.ErrConflict)

	got, err := s.GetGrant(ctx, "c1", "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, got.Scopes)

	require.NoError(t, s.DeleteGrant(ctx, "c1", "abc"))
	_, err = s.GetGrant(ctx, "c1", "abc")
	assert.ErrorIs(t, err, errorx.ErrInvalidGrant)
	assert.ErrorIs(t, s.DeleteGrant(ctx, "c1", "abc"), errorx.ErrInvalidGrant)
}

func TestRedisStorage_TokenIndexes(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Unix()

	tok := &Token{AccessToken: "at", RefreshToken: "rt", TokenType: "bearer", ClientID: "c1", UserID: 4, Scopes: []string{"read"}, ExpiresAt: exp}
	require.NoError(t, s.SaveToken(ctx, tok))

	byAccess, err := s.GetTokenByAccess(ctx, "at")
	require.NoError(t, err)
	byRefresh, err := s.GetTokenByRefresh(ctx, "rt")
	require.NoError(t, err)
	assert.Equal(t, byAccess.AccessToken, byRefresh.AccessToken)

	assert.ErrorIs(t, s.SaveToken(ctx, &Token{AccessToken: "at", RefreshToken: "x", ExpiresAt: exp}), errorx.ErrConflict)
	assert.ErrorIs(t, s.SaveToken(ctx, &Token{AccessToken: "y", RefreshToken: "rt", ExpiresAt: exp}), errorx.ErrConflict)

	toks, err := s.ListTokens(ctx, "c1", 4)
	require.NoError(t, err)
	assert.Len(t, toks, 1)

	require.NoError(t, s.DeleteTokens(ctx, "c1", 4))
	_, err = s.GetTokenByAccess(ctx, "at")
	assert.ErrorIs(t, err, errorx.ErrTokenNotFound)
	_, err = s.GetTokenByRefresh(ctx, "rt")
	assert.ErrorIs(t, err, errorx.ErrTokenNotFound)
}

func TestRedisStorage_ExpiredTokenFiltered(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStorage(mr.Addr(), "", 0)
	require.NoError(t, err)
	ctx := context.Background()

	// ExpiresAt in the past; the stored TTL is clamped to 1s, so the
	// expiry check in Go has to catch it first.
	tok := &Token{AccessToken: "stale", RefreshToken: "stale-r", ClientID: "c1", ExpiresAt: time.Now().Add(-time.Minute).Unix()}
	require.NoError(t, s.SaveToken(ctx, tok))

	_, err = s.GetTokenByAccess(ctx, "stale")
	assert.ErrorIs(t, err, errorx.ErrTokenExpired)
}
