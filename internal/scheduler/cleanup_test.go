package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/storage/memory"
)

type countingStore struct {
	*memory.Store
	calls atomic.Int32
	err   error
}

func (s *countingStore) Truncate(ctx context.Context, tables ...string) error {
	s.calls.Add(1)
	if s.err != nil {
		return s.err
	}
	return s.Store.Truncate(ctx, tables...)
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for _, kind := range []domain.AgentKind{domain.SymptomAnalyzer, domain.ClinicalProtocol} {
		require.NoError(t, store.AddMemory(ctx, kind.MemoryTable(), "1", "remember this"))
	}

	m := NewMemoryCleanup(store, time.Hour, nil)
	require.NoError(t, m.RunOnce(ctx))

	for _, kind := range []domain.AgentKind{domain.SymptomAnalyzer, domain.ClinicalProtocol} {
		mems, err := store.RecentMemories(ctx, kind.MemoryTable(), "1", 10)
		require.NoError(t, err)
		assert.Empty(t, mems, kind)
	}
}

func TestRunOnce_Error(t *testing.T) {
	store := &countingStore{Store: memory.New(), err: errors.New("connection refused")}
	m := NewMemoryCleanup(store, time.Hour, nil)

	err := m.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStartStop(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	m := NewMemoryCleanup(store, time.Second, nil)

	require.NoError(t, m.Start())
	require.Error(t, m.Start(), "second start is rejected")
	assert.False(t, m.Next().IsZero())

	require.Eventually(t, func() bool { return store.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	assert.True(t, m.Next().IsZero())

	calls := store.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, calls, store.calls.Load(), "no runs after Stop")

	require.NoError(t, m.Stop(ctx), "stop is idempotent")
}

func TestStart_ErrorsAreNotFatal(t *testing.T) {
	store := &countingStore{Store: memory.New(), err: errors.New("boom")}
	m := NewMemoryCleanup(store, time.Second, nil)

	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return store.calls.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
	require.NoError(t, m.Stop(context.Background()))
}

func TestNewMemoryCleanup_DefaultInterval(t *testing.T) {
	m := NewMemoryCleanup(memory.New(), 0, nil)
	assert.Equal(t, DefaultInterval, m.interval)
}
