// Package storage opens the persistence backends selected by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
	"github.com/medsim/diagnosis-gateway/internal/storage/memory"
	"github.com/medsim/diagnosis-gateway/internal/storage/redis"
	"github.com/medsim/diagnosis-gateway/internal/storage/sqldb"
)

// Re-export storage interfaces from core/ports for convenience.
type (
	UserStore    = ports.UserStore
	SessionStore = ports.SessionStore
	MemoryStore  = ports.MemoryStore
)

// Backend bundles the stores the gateway runs against. Memories may live in
// a different backend than users and sessions.
type Backend struct {
	Users    UserStore
	Sessions SessionStore
	Memories MemoryStore

	closers []io.Closer
}

// Close releases every opened backend.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// NewBackend wraps an existing store, e.g. one built by a test.
func NewBackend(store ports.Store) *Backend {
	return &Backend{Users: store, Sessions: store, Memories: store, closers: []io.Closer{store}}
}

// Open creates the stores described by cfg.
func Open(ctx context.Context, storageCfg config.StorageConfig, memoryCfg config.MemoryConfig, logger *slog.Logger) (*Backend, error) {
	var store ports.Store
	switch storageCfg.Type {
	case "memory":
		store = memory.New()
	case "sqlite", "postgres":
		s, err := sqldb.New(sqldb.Config{
			Driver: storageCfg.Database.Driver,
			DSN:    storageCfg.Database.DSN,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", storageCfg.Type, err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageCfg.Type)
	}
	logger.Info("storage opened", slog.String("type", storageCfg.Type))

	b := NewBackend(store)

	if memoryCfg.Backend == "redis" {
		rs, err := redis.New(ctx, redis.Config{
			URL:       memoryCfg.Redis.URL,
			KeyPrefix: memoryCfg.Redis.KeyPrefix,
			TTL:       memoryCfg.Redis.TTL,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open redis memory store: %w", err)
		}
		b.Memories = rs
		b.closers = append(b.closers, rs)
		logger.Info("agent memories stored in redis", slog.String("key_prefix", memoryCfg.Redis.KeyPrefix))
	}

	return b, nil
}
