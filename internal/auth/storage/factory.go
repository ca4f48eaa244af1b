package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/authgrid/authgrid/internal/common/config"
)

// NewStore creates a new credential store based on configuration
func NewStore(logger *zap.Logger, cfg *config.StorageConfig) (Store, error) {
	logger.Info("Initializing credential storage", zap.String("type", cfg.Type))
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage(), nil
	case "redis":
		return NewRedisStorage(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case "database":
		return NewGormStorage(&cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported credential storage type: %s", cfg.Type)
	}
}
