package storage

import (
	"context"
	"sync"
	"time"

	"github.com/authgrid/authgrid/internal/common/errorx"
)

// MemoryStorage implements the Store interface using in-memory maps.
// A single mutex covers every map so delete-then-insert sequences
// observe a consistent view.
type MemoryStorage struct {
	mu sync.Mutex

	clients map[string]*Client
	grants  map[string]*Grant
	tokens  map[string]*Token // keyed by access token
	refresh map[string]string // refresh token -> access token
}

// NewMemoryStorage creates a new memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		clients: make(map[string]*Client),
		grants:  make(map[string]*Grant),
		tokens:  make(map[string]*Token),
		refresh: make(map[string]string),
	}
}

func grantKey(clientID, code string) string {
	return clientID + "\x00" + code
}

// GetClient retrieves a client by ID
func (s *MemoryStorage) GetClient(ctx context.Context, clientID string) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[clientID]; ok {
		return client, nil
	}
	return nil, errorx.ErrInvalidClient
}

// CreateClient creates a new client
func (s *MemoryStorage) CreateClient(ctx context.Context, client *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return errorx.ErrConflict
	}

	now := time.Now().Unix()
	client.CreatedAt = now
	client.UpdatedAt = now
	s.clients[client.ID] = client
	return nil
}

// SaveGrant saves an authorization grant
func (s *MemoryStorage) SaveGrant(ctx context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey(grant.ClientID, grant.Code)
	if existing, ok := s.grants[key]; ok && !existing.Expired(time.Now()) {
		return errorx.ErrConflict
	}

	grant.CreatedAt = time.Now().Unix()
	s.grants[key] = grant
	return nil
}

// GetGrant retrieves a grant by (client, code). An expired grant is
// dropped and reported as not found.
func (s *MemoryStorage) GetGrant(ctx context.Context, clientID, code string) (*Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey(clientID, code)
	grant, ok := s.grants[key]
	if !ok {
		return nil, errorx.ErrInvalidGrant
	}
	if grant.Expired(time.Now()) {
		delete(s.grants, key)
		return nil, errorx.ErrInvalidGrant
	}
	return grant, nil
}

// DeleteGrant deletes a grant
func (s *MemoryStorage) DeleteGrant(ctx context.Context, clientID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey(clientID, code)
	if _, exists := s.grants[key]; !exists {
		return errorx.ErrInvalidGrant
	}

	delete(s.grants, key)
	return nil
}

// SaveToken saves a token pair. A collision on either token string is a
// conflict; callers regenerate and retry.
func (s *MemoryStorage) SaveToken(ctx context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token.AccessToken]; exists {
		return errorx.ErrConflict
	}
	if _, exists := s.refresh[token.RefreshToken]; exists {
		return errorx.ErrConflict
	}

	token.CreatedAt = time.Now().Unix()
	s.tokens[token.AccessToken] = token
	s.refresh[token.RefreshToken] = token.AccessToken
	return nil
}

// GetTokenByAccess retrieves a token by its access token string.
func (s *MemoryStorage) GetTokenByAccess(ctx context.Context, accessToken string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[accessToken]
	if !ok {
		return nil, errorx.ErrTokenNotFound
	}
	if token.Expired(time.Now()) {
		s.dropTokenLocked(token)
		return nil, errorx.ErrTokenExpired
	}
	return token, nil
}

// GetTokenByRefresh retrieves a token by its refresh token string.
func (s *MemoryStorage) GetTokenByRefresh(ctx context.Context, refreshToken string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accessToken, ok := s.refresh[refreshToken]
	if !ok {
		return nil, errorx.ErrTokenNotFound
	}
	token, ok := s.tokens[accessToken]
	if !ok {
		delete(s.refresh, refreshToken)
		return nil, errorx.ErrTokenNotFound
	}
	if token.Expired(time.Now()) {
		s.dropTokenLocked(token)
		return nil, errorx.ErrTokenExpired
	}
	return token, nil
}

// ListTokens returns all tokens for a (client, user) pair.
func (s *MemoryStorage) ListTokens(ctx context.Context, clientID string, userID uint64) ([]*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Token
	for _, token := range s.tokens {
		if token.ClientID == clientID && token.UserID == userID {
			out = append(out, token)
		}
	}
	return out, nil
}

// DeleteTokens deletes all tokens for a (client, user) pair.
func (s *MemoryStorage) DeleteTokens(ctx context.Context, clientID string, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, token := range s.tokens {
		if token.ClientID == clientID && token.UserID == userID {
			s.dropTokenLocked(token)
		}
	}
	return nil
}

func (s *MemoryStorage) dropTokenLocked(token *Token) {
	delete(s.tokens, token.AccessToken)
	delete(s.refresh, token.RefreshToken)
}
