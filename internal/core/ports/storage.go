package ports

import (
	"context"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// UserStore persists registered users.
type UserStore interface {
	// CreateUser inserts a user and returns its id. Duplicate usernames fail
	// with domain.ErrUserExists.
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)

	// GetUserByUsername returns domain.ErrUserNotFound when absent.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// SessionStore keeps agent run history per session.
type SessionStore interface {
	AppendRun(ctx context.Context, run *domain.AgentRun) error

	// RecentRuns returns up to n runs for the session, oldest first.
	RecentRuns(ctx context.Context, agent domain.AgentKind, sessionID string, n int) ([]domain.AgentRun, error)
}

// MemoryStore keeps per-user agent memories in named tables.
type MemoryStore interface {
	AddMemory(ctx context.Context, table, userID, content string) error

	// RecentMemories returns up to n memories for the user, oldest first.
	RecentMemories(ctx context.Context, table, userID string, n int) ([]domain.Memory, error)

	// Truncate removes every memory from the given tables.
	Truncate(ctx context.Context, tables ...string) error
}

// Store is the full relational backend.
type Store interface {
	UserStore
	SessionStore
	MemoryStore
	Close() error
}
