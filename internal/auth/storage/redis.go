package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/authgrid/authgrid/internal/common/errorx"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the Store interface using Redis. Grants and
// tokens carry a TTL matching their expiry, so Redis reclaims expired
// rows on its own.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(addr string, password string, db int) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStorage{
		client: client,
	}, nil
}

// key prefixes for different types of data
const (
	clientPrefix  = "auth:client:"
	grantPrefix   = "auth:grant:"
	tokenPrefix   = "auth:token:"
	refreshPrefix = "auth:refresh:"
	pairPrefix    = "auth:pair:"
)

func redisGrantKey(clientID, code string) string {
	return grantPrefix + clientID + ":" + code
}

func redisPairKey(clientID string, userID uint64) string {
	return pairPrefix + clientID + ":" + strconv.FormatUint(userID, 10)
}

func ttlUntil(expiresAt int64) time.Duration {
	ttl := time.Until(time.Unix(expiresAt, 0))
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

// GetClient retrieves a client by ID
func (s *RedisStorage) GetClient(ctx context.Context, clientID string) (*Client, error) {
	data, err := s.client.Get(ctx, clientPrefix+clientID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errorx.ErrInvalidClient
		}
		return nil, err
	}

	var client Client
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, err
	}
	return &client, nil
}

// CreateClient creates a new client
func (s *RedisStorage) CreateClient(ctx context.Context, client *Client) error {
	now := time.Now().Unix()
	client.CreatedAt = now
	client.UpdatedAt = now

	data, err := json.Marshal(client)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, clientPrefix+client.ID, data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errorx.ErrConflict
	}
	return nil
}

// SaveGrant saves an authorization grant with a TTL matching its expiry.
func (s *RedisStorage) SaveGrant(ctx context.Context, grant *Grant) error {
	grant.CreatedAt = time.Now().Unix()
	data, err := json.Marshal(grant)
	if err != nil {
		return err
	}

	// An unexpired duplicate still holds the key; SetNX refuses it.
	ok, err := s.client.SetNX(ctx, redisGrantKey(grant.ClientID, grant.Code), data, ttlUntil(grant.ExpiresAt)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errorx.ErrConflict
	}
	return nil
}

// GetGrant retrieves a grant by (client, code).
func (s *RedisStorage) GetGrant(ctx context.Context, clientID, code string) (*Grant, error) {
	data, err := s.client.Get(ctx, redisGrantKey(clientID, code)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errorx.ErrInvalidGrant
		}
		return nil, err
	}

	var grant Grant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, err
	}

	if grant.Expired(time.Now()) {
		s.client.Del(ctx, redisGrantKey(clientID, code))
		return nil, errorx.ErrInvalidGrant
	}

	return &grant, nil
}

// DeleteGrant deletes a grant
func (s *RedisStorage) DeleteGrant(ctx context.Context, clientID, code string) error {
	deleted, err := s.client.Del(ctx, redisGrantKey(clientID, code)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return errorx.ErrInvalidGrant
	}
	return nil
}

// SaveToken saves a token pair and indexes it by refresh token and by
// (client, user) pair.
func (s *RedisStorage) SaveToken(ctx context.Context, token *Token) error {
	token.CreatedAt = time.Now().Unix()
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}

	ttl := ttlUntil(token.ExpiresAt)
	ok, err := s.client.SetNX(ctx, tokenPrefix+token.AccessToken, data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errorx.ErrConflict
	}

	ok, err = s.client.SetNX(ctx, refreshPrefix+token.RefreshToken, token.AccessToken, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		s.client.Del(ctx, tokenPrefix+token.AccessToken)
		return errorx.ErrConflict
	}

	return s.client.SAdd(ctx, redisPairKey(token.ClientID, token.UserID), token.AccessToken).Err()
}

// GetTokenByAccess retrieves a token by its access token string.
func (s *RedisStorage) GetTokenByAccess(ctx context.Context, accessToken string) (*Token, error) {
	data, err := s.client.Get(ctx, tokenPrefix+accessToken).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errorx.ErrTokenNotFound
		}
		return nil, err
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}

	if token.Expired(time.Now()) {
		s.dropToken(ctx, &token)
		return nil, errorx.ErrTokenExpired
	}

	return &token, nil
}

// GetTokenByRefresh retrieves a token by its refresh token string.
func (s *RedisStorage) GetTokenByRefresh(ctx context.Context, refreshToken string) (*Token, error) {
	accessToken, err := s.client.Get(ctx, refreshPrefix+refreshToken).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errorx.ErrTokenNotFound
		}
		return nil, err
	}
	return s.GetTokenByAccess(ctx, accessToken)
}

// ListTokens returns all live tokens for a (client, user) pair.
func (s *RedisStorage) ListTokens(ctx context.Context, clientID string, userID uint64) ([]*Token, error) {
	members, err := s.client.SMembers(ctx, redisPairKey(clientID, userID)).Result()
	if err != nil {
		return nil, err
	}

	var out []*Token
	for _, accessToken := range members {
		data, err := s.client.Get(ctx, tokenPrefix+accessToken).Bytes()
		if err != nil {
			// Expired members linger in the set until the pair is
			// deleted; skip them.
			continue
		}
		var token Token
		if err := json.Unmarshal(data, &token); err != nil {
			continue
		}
		out = append(out, &token)
	}
	return out, nil
}

// DeleteTokens deletes all tokens for a (client, user) pair.
func (s *RedisStorage) DeleteTokens(ctx context.Context, clientID string, userID uint64) error {
	pairKey := redisPairKey(clientID, userID)
	members, err := s.client.SMembers(ctx, pairKey).Result()
	if err != nil {
		return err
	}

	for _, accessToken := range members {
		data, err := s.client.Get(ctx, tokenPrefix+accessToken).Bytes()
		if err == nil {
			var token Token
			if json.Unmarshal(data, &token) == nil {
				s.client.Del(ctx, refreshPrefix+token.RefreshToken)
			}
		}
		s.client.Del(ctx, tokenPrefix+accessToken)
	}

	return s.client.Del(ctx, pairKey).Err()
}

func (s *RedisStorage) dropToken(ctx context.Context, token *Token) {
	s.client.Del(ctx, tokenPrefix+token.AccessToken)
	s.client.Del(ctx, refreshPrefix+token.RefreshToken)
	s.client.SRem(ctx, redisPairKey(token.ClientID, token.UserID), token.AccessToken)
}
