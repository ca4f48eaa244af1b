package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/authgrid/authgrid/internal/auth/jwt"
	"github.com/authgrid/authgrid/internal/auth/secret"
	"github.com/authgrid/authgrid/internal/auth/storage"
	"github.com/authgrid/authgrid/internal/common/cnst"
	"github.com/authgrid/authgrid/internal/common/errorx"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Gateway validates client and user credentials at the system boundary.
// Credential failures are terminal for the request and distinct from
// store failures.
type Gateway struct {
	logger *zap.Logger
	store  storage.Store
	users  UserDirectory
	jwtSvc *jwt.Service
}

// NewGateway creates a new authentication gateway.
func NewGateway(logger *zap.Logger, store storage.Store, users UserDirectory, jwtSvc *jwt.Service) *Gateway {
	return &Gateway{
		logger: logger.Named("auth.gateway"),
		store:  store,
		users:  users,
		jwtSvc: jwtSvc,
	}
}

// AuthenticateClient validates a client id/secret pair and returns a
// login artifact. The artifact establishes a session; it carries no
// authorization claims. Read-only.
func (g *Gateway) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (string, error) {
	client, err := g.store.GetClient(ctx, clientID)
	if err != nil {
		return "", err
	}

	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
		g.logger.Warn("client secret mismatch", zap.String("client_id", clientID))
		return "", errorx.ErrInvalidClient
	}

	return g.jwtSvc.GenerateToken(clientID)
}

// RegisterClient authenticates the owning user and creates a new client
// with freshly generated credentials. The secret is returned exactly
// once; it is not retrievable afterwards.
func (g *Gateway) RegisterClient(ctx context.Context, req *RegisterClientRequest) (*ClientCredentials, error) {
	user, err := g.VerifyUser(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < cnst.GenerateRetries; attempt++ {
		clientID, err := secret.Generate(cnst.ClientIDLength)
		if err != nil {
			return nil, err
		}
		clientSecret, err := secret.Generate(cnst.ClientSecretLength)
		if err != nil {
			return nil, err
		}

		client := &storage.Client{
			ID:            clientID,
			Secret:        clientSecret,
			Name:          req.ClientName,
			UserID:        user.ID,
			RedirectURIs:  req.RedirectURIs,
			DefaultScopes: req.Scopes,
		}

		err = g.store.CreateClient(ctx, client)
		if errors.Is(err, errorx.ErrConflict) {
			g.logger.Warn("client id collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		g.logger.Info("registered client",
			zap.String("client_id", clientID),
			zap.String("name", req.ClientName),
			zap.Uint64("user_id", user.ID))
		return &ClientCredentials{ClientID: clientID, ClientSecret: clientSecret}, nil
	}

	g.logger.Error("client id generation retry budget exhausted")
	return nil, errorx.ErrInternal
}

// VerifyUser checks a username/password pair against the directory. A
// missing user and a wrong password are both authentication failures;
// store failures pass through untouched.
func (g *Gateway) VerifyUser(ctx context.Context, username, password string) (*User, error) {
	user, err := g.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		g.logger.Warn("user password mismatch", zap.String("username", username))
		return nil, errorx.ErrUnauthorized
	}

	return user, nil
}
