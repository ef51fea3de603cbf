// Package kvstore is the single-user key-value store that holds schedules,
// preferences and other small JSON blobs.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sadlamp/internal/config"
	appLog "sadlamp/internal/log"
)

// Well-known keys.
const (
	KeySchedules       = "schedules"
	KeyUserPreferences = "userPreferences"
	KeyUserLocation    = "userLocation"
	KeyCurrentDay      = "currentDay"
	KeyLastReminder    = "lastReminder"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a string-keyed blob store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key owned by this store.
	Clear(ctx context.Context) error
	Close() error
}

// LoadJSON decodes the value at key into v. It reports false with a nil
// error when the key does not exist.
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it at key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		appLog.Info("kvstore: using in-memory store")
		return NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s := NewRedisStore(client, cfg.Redis.Prefix)
		if err := s.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("kvstore: redis %s: %w", cfg.Redis.Addr, err)
		}
		appLog.Info("kvstore: using redis store", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB, "prefix", cfg.Redis.Prefix)
		return s, nil
	default:
		s, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		appLog.Info("kvstore: using file store", "path", cfg.Path)
		return s, nil
	}
}
