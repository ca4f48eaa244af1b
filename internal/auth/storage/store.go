package storage

import (
	"context"
	"time"
)

// Store is the entity store consumed by the credential engine. Rows are
// keyed by the opaque credential strings; uniqueness constraints on
// generated values surface as errorx.ErrConflict so callers can retry
// generation. Lookups never return expired rows.
type Store interface {
	GetClient(ctx context.Context, clientID string) (*Client, error)
	CreateClient(ctx context.Context, client *Client) error

	SaveGrant(ctx context.Context, grant *Grant) error
	GetGrant(ctx context.Context, clientID, code string) (*Grant, error)
	DeleteGrant(ctx context.Context, clientID, code string) error

	SaveToken(ctx context.Context, token *Token) error
	GetTokenByAccess(ctx context.Context, accessToken string) (*Token, error)
	GetTokenByRefresh(ctx context.Context, refreshToken string) (*Token, error)
	ListTokens(ctx context.Context, clientID string, userID uint64) ([]*Token, error)
	DeleteTokens(ctx context.Context, clientID string, userID uint64) error
}

// Client represents a registered consumer application. The secret is
// returned to the owner exactly once at registration time.
type Client struct {
	ID            string   `json:"client_id"`
	Secret        string   `json:"client_secret"`
	Name          string   `json:"name"`
	UserID        uint64   `json:"user_id"`
	RedirectURIs  []string `json:"redirect_uris"`
	DefaultScopes []string `json:"default_scopes"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
}

// ClientType is always public in this deployment; no confidential
// client distinction is enforced.
func (c *Client) ClientType() string { return "public" }

// DefaultRedirectURI returns the first registered redirect URI, or ""
// when the client registered none.
func (c *Client) DefaultRedirectURI() string {
	if len(c.RedirectURIs) == 0 {
		return ""
	}
	return c.RedirectURIs[0]
}

// Grant represents a single-use authorization code bound to a client
// and, for user-delegated flows, a user. UserID 0 means no user.
type Grant struct {
	Code        string   `json:"code"`
	ClientID    string   `json:"client_id"`
	UserID      uint64   `json:"user_id"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes"`
	ExpiresAt   int64    `json:"expires_at"`
	CreatedAt   int64    `json:"created_at"`
}

// Expired reports whether the grant is past its lifetime.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt < now.Unix()
}

// Token represents an issued bearer credential pair. At most one row
// exists per (ClientID, UserID) pair at any time.
type Token struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ClientID     string   `json:"client_id"`
	UserID       uint64   `json:"user_id"`
	Scopes       []string `json:"scopes"`
	ExpiresAt    int64    `json:"expires_at"`
	CreatedAt    int64    `json:"created_at"`
}

// Expired reports whether the token is past its lifetime.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt < now.Unix()
}
