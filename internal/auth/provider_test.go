package auth

import (
	"context"
	"testing"
	"time"

	"github.com/authgrid/authgrid/internal/auth/storage"
	"github.com/authgrid/authgrid/internal/common/cnst"
	"github.com/authgrid/authgrid/internal/common/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T) (OAuth2, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStorage()
	p := NewProvider(zap.NewNop(), store, testDirectory(t), testJWTService(t), time.Hour)
	require.NoError(t, store.CreateClient(context.Background(), &storage.Client{
		ID:            "c1",
		Secret:        "s1",
		Name:          "test client",
		RedirectURIs:  []string{"https://app.example/cb"},
		DefaultScopes: []string{"read"},
	}))
	return p, store
}

func TestProvider_AuthorizationCodeFlow(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	authz, err := p.Authorize(ctx, &AuthorizeRequest{
		ClientID:     "c1",
		RedirectURI:  "https://app.example/cb",
		ResponseType: "code",
		Scopes:       []string{"read", "write"},
		State:        "xyz",
		UserID:       5,
	})
	require.NoError(t, err)
	assert.Len(t, authz.Code, cnst.AuthorizationCodeLength)
	assert.Equal(t, "xyz", authz.State)

	resp, err := p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeAuthorizationCode,
		ClientID:     "c1",
		ClientSecret: "s1",
		Code:         authz.Code,
		RedirectURI:  "https://app.example/cb",
	})
	require.NoError(t, err)
	assert.Len(t, resp.AccessToken, cnst.AccessTokenLength)
	assert.Len(t, resp.RefreshToken, cnst.RefreshTokenLength)
	assert.Equal(t, cnst.TokenTypeBearer, resp.TokenType)
	assert.Equal(t, "read write", resp.Scope)
	assert.Greater(t, resp.ExpiresIn, int64(3500))

	// the code is single use
	_, err = p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeAuthorizationCode,
		ClientID:     "c1",
		ClientSecret: "s1",
		Code:         authz.Code,
		RedirectURI:  "https://app.example/cb",
	})
	assert.ErrorIs(t, err, errorx.ErrInvalidGrant)
}

func TestProvider_AuthorizeValidation(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Authorize(ctx, &AuthorizeRequest{ClientID: "c1", ResponseType: "code"})
	assert.ErrorIs(t, err, errorx.ErrInvalidRequest)

	_, err = p.Authorize(ctx, &AuthorizeRequest{
		ClientID: "c1", RedirectURI: "https://app.example/cb", ResponseType: "token",
	})
	assert.ErrorIs(t, err, errorx.ErrUnsupportedGrantType)

	_, err = p.Authorize(ctx, &AuthorizeRequest{
		ClientID: "c1", RedirectURI: "https://evil.example/cb", ResponseType: "code",
	})
	assert.ErrorIs(t, err, errorx.ErrInvalidRedirectURI)

	_, err = p.Authorize(ctx, &AuthorizeRequest{
		ClientID: "missing", RedirectURI: "https://app.example/cb", ResponseType: "code",
	})
	assert.ErrorIs(t, err, errorx.ErrInvalidClient)
}

func TestProvider_AuthorizeDefaultScopes(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	authz, err := p.Authorize(ctx, &AuthorizeRequest{
		ClientID:     "c1",
		RedirectURI:  "https://app.example/cb",
		ResponseType: "code",
		UserID:       5,
	})
	require.NoError(t, err)

	resp, err := p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeAuthorizationCode,
		ClientID:     "c1",
		ClientSecret: "s1",
		Code:         authz.Code,
		RedirectURI:  "https://app.example/cb",
	})
	require.NoError(t, err)
	assert.Equal(t, "read", resp.Scope)
}

func TestProvider_RedirectMismatchOnRedeem(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	authz, err := p.Authorize(ctx, &AuthorizeRequest{
		ClientID:     "c1",
		RedirectURI:  "https://app.example/cb",
		ResponseType: "code",
		UserID:       5,
	})
	require.NoError(t, err)

	_, err = p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeAuthorizationCode,
		ClientID:     "c1",
		ClientSecret: "s1",
		Code:         authz.Code,
		RedirectURI:  "https://app.example/other",
	})
	assert.ErrorIs(t, err, errorx.ErrInvalidGrant)
}

func TestProvider_PasswordGrant(t *testing.T) {
	p, store := newTestProvider(t)
	ctx := context.Background()

	resp, err := p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypePassword,
		ClientID:     "c1",
		ClientSecret: "s1",
		Username:     "admin",
		Password:     "secret",
		Scopes:       []string{"write"},
	})
	require.NoError(t, err)
	assert.Equal(t, "write", resp.Scope)

	rows, err := store.ListTokens(ctx, "c1", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0].UserID)

	_, err = p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypePassword,
		ClientID:     "c1",
		ClientSecret: "s1",
		Username:     "admin",
		Password:     "wrong",
	})
	assert.ErrorIs(t, err, errorx.ErrUnauthorized)
}

func TestProvider_ClientCredentialsGrant(t *testing.T) {
	p, store := newTestProvider(t)
	ctx := context.Background()

	resp, err := p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeClientCredentials,
		ClientID:     "c1",
		ClientSecret: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, "read", resp.Scope)

	rows, err := store.ListTokens(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestProvider_RefreshTokenGrant(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	first, err := p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeClientCredentials,
		ClientID:     "c1",
		ClientSecret: "s1",
	})
	require.NoError(t, err)

	second, err := p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeRefreshToken,
		ClientID:     "c1",
		ClientSecret: "s1",
		RefreshToken: first.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, first.Scope, second.Scope)

	// rotation invalidated the old pair
	assert.ErrorIs(t, p.ValidateToken(ctx, first.AccessToken), errorx.ErrTokenNotFound)
	_, err = p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeRefreshToken,
		ClientID:     "c1",
		ClientSecret: "s1",
		RefreshToken: first.RefreshToken,
	})
	assert.ErrorIs(t, err, errorx.ErrTokenNotFound)

	assert.NoError(t, p.ValidateToken(ctx, second.AccessToken))
}

func TestProvider_RefreshTokenOfAnotherClient(t *testing.T) {
	p, store := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, store.CreateClient(ctx, &storage.Client{ID: "c2", Secret: "s2"}))

	issued, err := p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeClientCredentials,
		ClientID:     "c1",
		ClientSecret: "s1",
	})
	require.NoError(t, err)

	_, err = p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeRefreshToken,
		ClientID:     "c2",
		ClientSecret: "s2",
		RefreshToken: issued.RefreshToken,
	})
	assert.ErrorIs(t, err, errorx.ErrInvalidClient)
}

func TestProvider_UnknownGrantType(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.Token(context.Background(), &TokenRequest{
		GrantType:    "implicit",
		ClientID:     "c1",
		ClientSecret: "s1",
	})
	assert.ErrorIs(t, err, errorx.ErrUnsupportedGrantType)
}

func TestProvider_TokenBadClientSecret(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.Token(context.Background(), &TokenRequest{
		GrantType:    cnst.GrantTypeClientCredentials,
		ClientID:     "c1",
		ClientSecret: "wrong",
	})
	assert.ErrorIs(t, err, errorx.ErrInvalidClient)
}

func TestProvider_Revoke(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	issued, err := p.Token(ctx, &TokenRequest{
		GrantType:    cnst.GrantTypeClientCredentials,
		ClientID:     "c1",
		ClientSecret: "s1",
	})
	require.NoError(t, err)

	// revocation by refresh token takes the whole pair down
	require.NoError(t, p.Revoke(ctx, issued.RefreshToken))
	assert.ErrorIs(t, p.ValidateToken(ctx, issued.AccessToken), errorx.ErrTokenNotFound)

	assert.ErrorIs(t, p.Revoke(ctx, issued.AccessToken), errorx.ErrTokenNotFound)
}

func TestProvider_LoginAndRegister(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	creds, err := p.RegisterClient(ctx, &RegisterClientRequest{
		Username:   "admin",
		Password:   "secret",
		ClientName: "cli",
	})
	require.NoError(t, err)

	artifact, err := p.Login(ctx, creds.ClientID, creds.ClientSecret)
	require.NoError(t, err)
	assert.NotEmpty(t, artifact)

	_, err = p.Login(ctx, creds.ClientID, "wrong")
	assert.ErrorIs(t, err, errorx.ErrInvalidClient)
}
