package auth

import (
	"context"
	"crypto/subtle"
	"net/url"
	"strings"
	"time"

	"github.com/authgrid/authgrid/internal/auth/jwt"
	"github.com/authgrid/authgrid/internal/auth/secret"
	"github.com/authgrid/authgrid/internal/auth/storage"
	"github.com/authgrid/authgrid/internal/common/cnst"
	"github.com/authgrid/authgrid/internal/common/errorx"

	"go.uber.org/zap"
)

// provider wires the gateway and the grant/token managers into the
// OAuth2 boundary surface.
type provider struct {
	logger  *zap.Logger
	store   storage.Store
	grants  *GrantManager
	tokens  *TokenManager
	gateway *Gateway
}

var _ OAuth2 = (*provider)(nil)

// NewProvider constructs the credential engine over the given store and
// user directory. tokenTTL is the access token lifetime; zero selects
// the default.
func NewProvider(logger *zap.Logger, store storage.Store, users UserDirectory, jwtSvc *jwt.Service, tokenTTL time.Duration) OAuth2 {
	return &provider{
		logger:  logger.Named("auth.oauth2"),
		store:   store,
		grants:  NewGrantManager(logger, store),
		tokens:  NewTokenManager(logger, store, tokenTTL),
		gateway: NewGateway(logger, store, users, jwtSvc),
	}
}

// Authorize handles an approved authorization request and hands back a
// single-use grant code.
func (p *provider) Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizationResponse, error) {
	if req.ClientID == "" || req.RedirectURI == "" || req.ResponseType == "" {
		return nil, errorx.ErrInvalidRequest
	}
	if req.ResponseType != "code" {
		return nil, errorx.ErrUnsupportedGrantType
	}

	client, err := p.store.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	if len(client.RedirectURIs) > 0 && !isValidRedirectURI(req.RedirectURI, client.RedirectURIs) {
		return nil, errorx.ErrInvalidRedirectURI
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = client.DefaultScopes
	}

	code, err := secret.Generate(cnst.AuthorizationCodeLength)
	if err != nil {
		return nil, err
	}

	if _, err := p.grants.Issue(ctx, client.ID, code, req.RedirectURI, scopes, req.UserID); err != nil {
		return nil, err
	}

	return &AuthorizationResponse{Code: code, State: req.State}, nil
}

// Token handles the token request for every supported grant type.
func (p *provider) Token(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := p.store.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(req.ClientSecret)) != 1 {
		return nil, errorx.ErrInvalidClient
	}

	switch req.GrantType {
	case cnst.GrantTypeAuthorizationCode:
		return p.handleAuthorizationCodeGrant(ctx, req, client)
	case cnst.GrantTypePassword:
		return p.handlePasswordGrant(ctx, req, client)
	case cnst.GrantTypeClientCredentials:
		return p.handleClientCredentialsGrant(ctx, req, client)
	case cnst.GrantTypeRefreshToken:
		return p.handleRefreshTokenGrant(ctx, req, client)
	default:
		return nil, errorx.ErrUnsupportedGrantType
	}
}

func (p *provider) handleAuthorizationCodeGrant(ctx context.Context, req *TokenRequest, client *storage.Client) (*TokenResponse, error) {
	grant, err := p.grants.Redeem(ctx, client.ID, req.Code)
	if err != nil {
		return nil, err
	}

	if grant.RedirectURI != "" && grant.RedirectURI != req.RedirectURI {
		return nil, errorx.ErrInvalidGrant
	}

	token, err := p.tokens.Issue(ctx, client.ID, grant.UserID, grant.Scopes)
	if err != nil {
		return nil, err
	}
	return envelope(token), nil
}

func (p *provider) handlePasswordGrant(ctx context.Context, req *TokenRequest, client *storage.Client) (*TokenResponse, error) {
	user, err := p.gateway.VerifyUser(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = client.DefaultScopes
	}

	token, err := p.tokens.Issue(ctx, client.ID, user.ID, scopes)
	if err != nil {
		return nil, err
	}
	return envelope(token), nil
}

func (p *provider) handleClientCredentialsGrant(ctx context.Context, req *TokenRequest, client *storage.Client) (*TokenResponse, error) {
	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = client.DefaultScopes
	}

	// No resource owner; the pair key is (client, 0).
	token, err := p.tokens.Issue(ctx, client.ID, 0, scopes)
	if err != nil {
		return nil, err
	}
	return envelope(token), nil
}

func (p *provider) handleRefreshTokenGrant(ctx context.Context, req *TokenRequest, client *storage.Client) (*TokenResponse, error) {
	old, err := p.tokens.Lookup(ctx, "", req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if old.ClientID != client.ID {
		return nil, errorx.ErrInvalidClient
	}

	token, err := p.tokens.Issue(ctx, old.ClientID, old.UserID, old.Scopes)
	if err != nil {
		return nil, err
	}
	return envelope(token), nil
}

// Revoke invalidates the whole pair the given token belongs to, looked
// up by either token string.
func (p *provider) Revoke(ctx context.Context, tokenStr string) error {
	token, err := p.tokens.Lookup(ctx, tokenStr, "")
	if err != nil {
		token, err = p.tokens.Lookup(ctx, "", tokenStr)
	}
	if err != nil {
		return err
	}
	return p.tokens.RevokeAll(ctx, token.ClientID, token.UserID)
}

// ValidateToken resolves an access token; expired tokens fail.
func (p *provider) ValidateToken(ctx context.Context, accessToken string) error {
	_, err := p.tokens.Lookup(ctx, accessToken, "")
	return err
}

// Login delegates to the gateway.
func (p *provider) Login(ctx context.Context, clientID, clientSecret string) (string, error) {
	return p.gateway.AuthenticateClient(ctx, clientID, clientSecret)
}

// RegisterClient delegates to the gateway.
func (p *provider) RegisterClient(ctx context.Context, req *RegisterClientRequest) (*ClientCredentials, error) {
	return p.gateway.RegisterClient(ctx, req)
}

func envelope(token *storage.Token) *TokenResponse {
	expiresIn := token.ExpiresAt - time.Now().Unix()
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: token.RefreshToken,
		Scope:        strings.Join(token.Scopes, " "),
	}
}

func isValidRedirectURI(redirectURI string, allowedURIs []string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}

	for _, allowed := range allowedURIs {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}

		if u.Scheme == allowedURL.Scheme &&
			u.Host == allowedURL.Host &&
			strings.HasPrefix(u.Path, allowedURL.Path) {
			return true
		}
	}

	return false
}
