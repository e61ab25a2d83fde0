package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

// DocumentStore loads and saves the whole dataset. There is no partial
// update: Save replaces everything previously stored.
type DocumentStore interface {
	Load(ctx context.Context) (*models.Document, error)
	Save(ctx context.Context, doc *models.Document) error
	Close(ctx context.Context) error
}

// Open builds the backend selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (DocumentStore, error) {
	switch cfg.Store.Driver {
	case config.DriverFile:
		return NewFileStore(cfg.Store.Path)
	case config.DriverMemory:
		return NewMemoryStore(nil), nil
	case config.DriverMongoDB:
		return NewMongoStore(ctx, &cfg.MongoDB)
	case config.DriverRedis:
		return NewRedisStore(ctx, &cfg.Redis, cfg.Store.Key)
	case config.DriverMySQL:
		return NewSQLStore(&cfg.MySQL, cfg.Store.Key, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
