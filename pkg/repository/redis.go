package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

// RedisStore keeps the dataset as one JSON value under key.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(ctx context.Context, cfg *config.RedisConfig, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, key: key}, nil
}

func (r *RedisStore) Load(ctx context.Context) (*models.Document, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return doc.Normalize(), nil
}

func (r *RedisStore) Save(ctx context.Context, doc *models.Document) error {
	data, err := json.Marshal(doc.Clone().Normalize())
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close(ctx context.Context) error {
	return r.client.Close()
}
