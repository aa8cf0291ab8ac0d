// Package memory provides an in-process implementation of the storage ports.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
)

// Store is an in-memory implementation of UserStore, SessionStore and MemoryStore.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*ports.User
	nextUser int64
	runs     map[string][]domain.AgentRun // keyed by agent + session
	memories map[string][]domain.Memory   // keyed by table + user
	nextMem  int64
}

var _ ports.Store = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		users:    make(map[string]*ports.User),
		runs:     make(map[string][]domain.AgentRun),
		memories: make(map[string][]domain.Memory),
	}
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return 0, fmt.Errorf("username %q: %w", username, domain.ErrUserExists)
	}

	s.nextUser++
	s.users[username] = &ports.User{ID: s.nextUser, Username: username, PasswordHash: passwordHash}
	return s.nextUser, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.users[username]
	if !exists {
		return nil, fmt.Errorf("username %q: %w", username, domain.ErrUserNotFound)
	}
	cp := *u
	return &cp, nil
}

// DeleteUser removes a user. Tokens issued to the user stop verifying.
func (s *Store) DeleteUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
}

func (s *Store) AppendRun(ctx context.Context, run *domain.AgentRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	key := string(run.Agent) + "/" + run.SessionID
	s.runs[key] = append(s.runs[key], *run)
	return nil
}

func (s *Store) RecentRuns(ctx context.Context, agent domain.AgentKind, sessionID string, n int) ([]domain.AgentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lastN(s.runs[string(agent)+"/"+sessionID], n), nil
}

func (s *Store) AddMemory(ctx context.Context, table, userID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMem++
	key := table + "/" + userID
	s.memories[key] = append(s.memories[key], domain.Memory{
		ID:        s.nextMem,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *Store) RecentMemories(ctx context.Context, table, userID string, n int) ([]domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lastN(s.memories[table+"/"+userID], n), nil
}

func (s *Store) Truncate(ctx context.Context, tables ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.memories {
		for _, t := range tables {
			if len(key) > len(t) && key[:len(t)+1] == t+"/" {
				delete(s.memories, key)
			}
		}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// lastN copies up to the final n items, oldest first.
func lastN[T any](items []T, n int) []T {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if len(items) > n {
		items = items[len(items)-n:]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
