// Package redis provides a Redis-backed agent memory store.
//
// Memories live in sorted sets keyed "<prefix>:<table>:<user_id>", scored by
// insertion time in nanoseconds.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
)

// MemoryStore implements ports.MemoryStore on Redis.
type MemoryStore struct {
	client    *goredis.Client
	keyPrefix string
	ttl       time.Duration
}

var _ ports.MemoryStore = (*MemoryStore)(nil)

// Config configures the Redis memory store.
type Config struct {
	URL       string
	KeyPrefix string
	// TTL expires a user's memories after inactivity; zero disables expiry.
	TTL time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*MemoryStore, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewFromClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *goredis.Client, keyPrefix string, ttl time.Duration) *MemoryStore {
	if keyPrefix == "" {
		keyPrefix = "diagnosis:memory"
	}
	return &MemoryStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

type storedMemory struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *MemoryStore) key(table, userID string) string {
	return fmt.Sprintf("%s:%s:%s", m.keyPrefix, table, userID)
}

func (m *MemoryStore) AddMemory(ctx context.Context, table, userID, content string) error {
	now := time.Now().UTC()
	value, err := json.Marshal(storedMemory{ID: uuid.New().String(), Content: content, CreatedAt: now})
	if err != nil {
		return fmt.Errorf("failed to serialize memory: %w", err)
	}

	key := m.key(table, userID)
	pipe := m.client.TxPipeline()
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: string(value)})
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	return nil
}

func (m *MemoryStore) RecentMemories(ctx context.Context, table, userID string, n int) ([]domain.Memory, error) {
	if n <= 0 {
		return nil, nil
	}

	values, err := m.client.ZRevRange(ctx, m.key(table, userID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read memories: %w", err)
	}

	memories := make([]domain.Memory, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		var sm storedMemory
		if err := json.Unmarshal([]byte(values[i]), &sm); err != nil {
			return nil, fmt.Errorf("failed to deserialize memory: %w", err)
		}
		memories = append(memories, domain.Memory{
			UserID:    userID,
			Content:   sm.Content,
			CreatedAt: sm.CreatedAt,
		})
	}
	return memories, nil
}

func (m *MemoryStore) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		pattern := fmt.Sprintf("%s:%s:*", m.keyPrefix, table)
		iter := m.client.Scan(ctx, 0, pattern, 100).Iterator()

		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := m.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the Redis client.
func (m *MemoryStore) Close() error {
	return m.client.Close()
}
