package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

func TestStore_Users(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if id != 1 {
		t.Errorf("CreateUser() id = %d, want 1", id)
	}

	if _, err := s.CreateUser(ctx, "alice", "other"); !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("duplicate CreateUser() error = %v, want ErrUserExists", err)
	}

	s.DeleteUser("alice")
	if _, err := s.GetUserByUsername(ctx, "alice"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUserByUsername() after delete error = %v, want ErrUserNotFound", err)
	}
}

func TestStore_RecentRuns(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = s.AppendRun(ctx, &domain.AgentRun{Agent: domain.SymptomAnalyzer, SessionID: "s1", Input: fmt.Sprint(i)})
	}

	runs, _ := s.RecentRuns(ctx, domain.SymptomAnalyzer, "s1", 3)
	if len(runs) != 3 || runs[0].Input != "1" || runs[2].Input != "3" {
		t.Errorf("RecentRuns() = %+v, want inputs 1..3", runs)
	}

	if runs, _ := s.RecentRuns(ctx, domain.ClinicalProtocol, "s1", 3); len(runs) != 0 {
		t.Errorf("RecentRuns(other agent) len = %d, want 0", len(runs))
	}
}

func TestStore_TruncateMemories(t *testing.T) {
	s := New()
	ctx := context.Background()
	sa := domain.SymptomAnalyzer.MemoryTable()
	cp := domain.ClinicalProtocol.MemoryTable()

	_ = s.AddMemory(ctx, sa, "1", "a")
	_ = s.AddMemory(ctx, cp, "1", "b")

	if err := s.Truncate(ctx, sa); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}

	if m, _ := s.RecentMemories(ctx, sa, "1", 5); len(m) != 0 {
		t.Errorf("%s not truncated: %+v", sa, m)
	}
	if m, _ := s.RecentMemories(ctx, cp, "1", 5); len(m) != 1 {
		t.Errorf("%s should be untouched, got %+v", cp, m)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	table := domain.SymptomAnalyzer.MemoryTable()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AddMemory(ctx, table, "u", fmt.Sprint(i))
			_, _ = s.RecentMemories(ctx, table, "u", 3)
		}(i)
	}
	wg.Wait()

	m, _ := s.RecentMemories(ctx, table, "u", 100)
	if len(m) != 20 {
		t.Errorf("len = %d, want 20", len(m))
	}
}
