package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/authgrid/authgrid/internal/common/config"
	"github.com/authgrid/authgrid/internal/common/errorx"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// GormStorage implements the Store interface on a relational database.
// Unique indexes on the generated credential columns back the codec's
// conflict contract; the composite unique index on (client_id, user_id)
// backs the single-active-token invariant at the store level.
type GormStorage struct {
	db *gorm.DB
}

type clientRecord struct {
	ClientID      string `gorm:"column:client_id;primaryKey;size:40"`
	ClientSecret  string `gorm:"column:client_secret;size:50;not null"`
	Name          string `gorm:"size:255"`
	UserID        uint64 `gorm:"index"`
	RedirectURIs  string `gorm:"column:redirect_uris;type:text"`
	DefaultScopes string `gorm:"column:default_scopes;type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (clientRecord) TableName() string { return "clients" }

type grantRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	ClientID    string `gorm:"size:40;uniqueIndex:idx_grants_client_code"`
	Code        string `gorm:"size:255;uniqueIndex:idx_grants_client_code"`
	UserID      uint64
	RedirectURI string `gorm:"size:255"`
	Scopes      string `gorm:"type:text"`
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (grantRecord) TableName() string { return "grants" }

type tokenRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	AccessToken  string `gorm:"size:255;uniqueIndex"`
	RefreshToken string `gorm:"size:255;uniqueIndex"`
	TokenType    string `gorm:"size:40"`
	ClientID     string `gorm:"size:40;uniqueIndex:idx_tokens_pair"`
	UserID       uint64 `gorm:"uniqueIndex:idx_tokens_pair"`
	Scopes       string `gorm:"type:text"`
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

func (tokenRecord) TableName() string { return "tokens" }

// NewGormStorage opens the configured database and migrates the
// credential tables.
func NewGormStorage(cfg *config.DatabaseConfig) (*GormStorage, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&clientRecord{}, &grantRecord{}, &tokenRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &GormStorage{db: db}, nil
}

func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Type {
	case "sqlite":
		if dir := filepath.Dir(cfg.DBName); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(cfg.DBName), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Close closes the underlying database connection.
func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Scopes and redirect URIs are stored whitespace-joined; the delimited
// encoding never leaves this file.

func joinWords(words []string) string { return strings.Join(words, " ") }

func splitWords(s string) []string { return strings.Fields(s) }

func mapStoreErr(err error, notFound error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errorx.ErrConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errorx.ErrStoreUnavailable
	default:
		return err
	}
}

// GetClient retrieves a client by ID
func (s *GormStorage) GetClient(ctx context.Context, clientID string) (*Client, error) {
	var rec clientRecord
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&rec).Error
	if err != nil {
		return nil, mapStoreErr(err, errorx.ErrInvalidClient)
	}
	return &Client{
		ID:            rec.ClientID,
		Secret:        rec.ClientSecret,
		Name:          rec.Name,
		UserID:        rec.UserID,
		RedirectURIs:  splitWords(rec.RedirectURIs),
		DefaultScopes: splitWords(rec.DefaultScopes),
		CreatedAt:     rec.CreatedAt.Unix(),
		UpdatedAt:     rec.UpdatedAt.Unix(),
	}, nil
}

// CreateClient creates a new client
func (s *GormStorage) CreateClient(ctx context.Context, client *Client) error {
	now := time.Now()
	client.CreatedAt = now.Unix()
	client.UpdatedAt = now.Unix()
	rec := clientRecord{
		ClientID:      client.ID,
		ClientSecret:  client.Secret,
		Name:          client.Name,
		UserID:        client.UserID,
		RedirectURIs:  joinWords(client.RedirectURIs),
		DefaultScopes: joinWords(client.DefaultScopes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return mapStoreErr(err, errorx.ErrInvalidClient)
	}
	return nil
}

// SaveGrant saves an authorization grant. A live duplicate of
// (client_id, code) is a conflict; an expired one is replaced.
func (s *GormStorage) SaveGrant(ctx context.Context, grant *Grant) error {
	grant.CreatedAt = time.Now().Unix()
	rec := grantRecord{
		ID:          uuid.New().String(),
		ClientID:    grant.ClientID,
		Code:        grant.Code,
		UserID:      grant.UserID,
		RedirectURI: grant.RedirectURI,
		Scopes:      joinWords(grant.Scopes),
		ExpiresAt:   time.Unix(grant.ExpiresAt, 0),
		CreatedAt:   time.Unix(grant.CreatedAt, 0),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing grantRecord
		err := tx.Where("client_id = ? AND code = ?", grant.ClientID, grant.Code).First(&existing).Error
		switch {
		case err == nil:
			if existing.ExpiresAt.After(time.Now()) {
				return errorx.ErrConflict
			}
			if err := tx.Delete(&existing).Error; err != nil {
				return mapStoreErr(err, errorx.ErrInvalidGrant)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return mapStoreErr(err, errorx.ErrInvalidGrant)
		}
		if err := tx.Create(&rec).Error; err != nil {
			return mapStoreErr(err, errorx.ErrInvalidGrant)
		}
		return nil
	})
}

// GetGrant retrieves a grant by (client, code). Expired rows are
// deleted and reported as not found.
func (s *GormStorage) GetGrant(ctx context.Context, clientID, code string) (*Grant, error) {
	var rec grantRecord
	err := s.db.WithContext(ctx).Where("client_id = ? AND code = ?", clientID, code).First(&rec).Error
	if err != nil {
		return nil, mapStoreErr(err, errorx.ErrInvalidGrant)
	}

	if rec.ExpiresAt.Before(time.Now()) {
		s.db.WithContext(ctx).Delete(&rec)
		return nil, errorx.ErrInvalidGrant
	}

	return &Grant{
		Code:        rec.Code,
		ClientID:    rec.ClientID,
		UserID:      rec.UserID,
		RedirectURI: rec.RedirectURI,
		Scopes:      splitWords(rec.Scopes),
		ExpiresAt:   rec.ExpiresAt.Unix(),
		CreatedAt:   rec.CreatedAt.Unix(),
	}, nil
}

// DeleteGrant deletes a grant
func (s *GormStorage) DeleteGrant(ctx context.Context, clientID, code string) error {
	res := s.db.WithContext(ctx).Where("client_id = ? AND code = ?", clientID, code).Delete(&grantRecord{})
	if res.Error != nil {
		return mapStoreErr(res.Error, errorx.ErrInvalidGrant)
	}
	if res.RowsAffected == 0 {
		return errorx.ErrInvalidGrant
	}
	return nil
}

// SaveToken saves a token pair.
func (s *GormStorage) SaveToken(ctx context.Context, token *Token) error {
	now := time.Now()
	token.CreatedAt = now.Unix()
	rec := tokenRecord{
		ID:           uuid.New().String(),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ClientID:     token.ClientID,
		UserID:       token.UserID,
		Scopes:       joinWords(token.Scopes),
		ExpiresAt:    time.Unix(token.ExpiresAt, 0),
		CreatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return mapStoreErr(err, errorx.ErrTokenNotFound)
	}
	return nil
}

// GetTokenByAccess retrieves a token by its access token string.
func (s *GormStorage) GetTokenByAccess(ctx context.Context, accessToken string) (*Token, error) {
	return s.getToken(ctx, "access_token = ?", accessToken)
}

// GetTokenByRefresh retrieves a token by its refresh token string.
func (s *GormStorage) GetTokenByRefresh(ctx context.Context, refreshToken string) (*Token, error) {
	return s.getToken(ctx, "refresh_token = ?", refreshToken)
}

func (s *GormStorage) getToken(ctx context.Context, query, value string) (*Token, error) {
	var rec tokenRecord
	err := s.db.WithContext(ctx).Where(query, value).First(&rec).Error
	if err != nil {
		return nil, mapStoreErr(err, errorx.ErrTokenNotFound)
	}

	if rec.ExpiresAt.Before(time.Now()) {
		s.db.WithContext(ctx).Delete(&rec)
		return nil, errorx.ErrTokenExpired
	}

	return recordToToken(&rec), nil
}

// ListTokens returns all tokens for a (client, user) pair.
func (s *GormStorage) ListTokens(ctx context.Context, clientID string, userID uint64) ([]*Token, error) {
	var recs []tokenRecord
	err := s.db.WithContext(ctx).Where("client_id = ? AND user_id = ?", clientID, userID).Find(&recs).Error
	if err != nil {
		return nil, mapStoreErr(err, errorx.ErrTokenNotFound)
	}
	out := make([]*Token, 0, len(recs))
	for i := range recs {
		out = append(out, recordToToken(&recs[i]))
	}
	return out, nil
}

// DeleteTokens deletes all tokens for a (client, user) pair.
func (s *GormStorage) DeleteTokens(ctx context.Context, clientID string, userID uint64) error {
	err := s.db.WithContext(ctx).Where("client_id = ? AND user_id = ?", clientID, userID).Delete(&tokenRecord{}).Error
	if err != nil {
		return mapStoreErr(err, errorx.ErrTokenNotFound)
	}
	return nil
}

func recordToToken(rec *tokenRecord) *Token {
	return &Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
		ClientID:     rec.ClientID,
		UserID:       rec.UserID,
		Scopes:       splitWords(rec.Scopes),
		ExpiresAt:    rec.ExpiresAt.Unix(),
		CreatedAt:    rec.CreatedAt.Unix(),
	}
}
