// Package auth is the credential issuance and lifecycle engine: client
// authentication, authorization-grant issuance and redemption, token
// minting and rotation, and expiry enforcement. All state lives in the
// injected storage.Store; the package holds no process-wide singletons.
package auth

import (
	"context"

	"github.com/authgrid/authgrid/internal/common/cnst"
)

// OAuth2 is the boundary surface consumed by the HTTP layer.
type OAuth2 interface {
	// Authorize issues an authorization grant for an approved request.
	Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizationResponse, error)

	// Token redeems a grant, user credentials, client credentials or a
	// refresh token for a token envelope.
	Token(ctx context.Context, req *TokenRequest) (*TokenResponse, error)

	// Revoke invalidates the token pair the given token string belongs
	// to, by either token string.
	Revoke(ctx context.Context, token string) error

	// ValidateToken resolves an access token to its live token row.
	ValidateToken(ctx context.Context, accessToken string) error

	// Login authenticates a client and returns an opaque login artifact.
	Login(ctx context.Context, clientID, clientSecret string) (string, error)

	// RegisterClient creates a new client owned by the authenticated
	// user. The returned secret is not retrievable again.
	RegisterClient(ctx context.Context, req *RegisterClientRequest) (*ClientCredentials, error)
}

// AuthorizeRequest carries an approved authorization request. UserID is
// the authenticated resource owner, 0 for user-less flows.
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scopes       []string
	State        string
	UserID       uint64
}

// AuthorizationResponse represents the response from the authorization endpoint
type AuthorizationResponse struct {
	Code  string
	State string
}

// TokenRequest carries a token-endpoint request. Fields beyond
// GrantType, ClientID and ClientSecret are grant-type specific.
type TokenRequest struct {
	GrantType    cnst.GrantType
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	Username     string
	Password     string
	RefreshToken string
	Scopes       []string
}

// TokenResponse is the token envelope returned to callers.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// RegisterClientRequest carries a client registration guarded by user
// credentials.
type RegisterClientRequest struct {
	Username     string
	Password     string
	ClientName   string
	RedirectURIs []string
	Scopes       []string
}

// ClientCredentials is returned from registration exactly once.
type ClientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// User is the gateway's view of an account holder.
type User struct {
	ID           uint64
	Username     string
	PasswordHash string
}

// UserDirectory resolves account holders for registration and the
// password grant. Implementations report a missing user with
// errorx.ErrUnauthorized and keep store failures distinct.
type UserDirectory interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}
