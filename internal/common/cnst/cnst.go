package cnst

import "time"

// Credential lengths are fixed by the registration contract: callers
// receive the id/secret exactly once and persist them client-side.
const (
	ClientIDLength     = 40
	ClientSecretLength = 50

	AuthorizationCodeLength = 40
	AccessTokenLength       = 40
	RefreshTokenLength      = 40
)

const (
	// TokenTypeBearer is the only token type issued.
	TokenTypeBearer = "bearer"

	// GrantTTL is the lifetime of an authorization grant.
	GrantTTL = 100 * time.Second

	// DefaultTokenTTL is the access token lifetime when the config does
	// not override it.
	DefaultTokenTTL = 3600 * time.Second

	// GenerateRetries bounds credential regeneration after a uniqueness
	// conflict before giving up with a server error.
	GenerateRetries = 3
)

// GrantType identifies a token-endpoint grant type.
type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypePassword          GrantType = "password"
	GrantTypeClientCredentials GrantType = "client_credentials"
	GrantTypeRefreshToken      GrantType = "refresh_token"
)
