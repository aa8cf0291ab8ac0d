// Package scheduler runs the periodic agent memory reset.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
)

// DefaultInterval is how often agent memories are cleared.
const DefaultInterval = 24 * time.Hour

// runTimeout bounds a single truncation.
const runTimeout = 5 * time.Minute

// MemoryTables are the tables cleared by each run.
func MemoryTables() []string {
	return []string{
		domain.SymptomAnalyzer.MemoryTable(),
		domain.ClinicalProtocol.MemoryTable(),
	}
}

// MemoryCleanup truncates the agent memory tables on a fixed interval.
type MemoryCleanup struct {
	store    ports.MemoryStore
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewMemoryCleanup creates a cleanup job. A non-positive interval uses DefaultInterval.
func NewMemoryCleanup(store ports.MemoryStore, interval time.Duration, logger *slog.Logger) *MemoryCleanup {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryCleanup{store: store, interval: interval, logger: logger}
}

// Start schedules the job. Calling Start twice is an error.
func (m *MemoryCleanup) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return fmt.Errorf("memory cleanup already started")
	}

	clog := cronLogger{m.logger}
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	id, err := c.AddFunc("@every "+m.interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		_ = m.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule memory cleanup: %w", err)
	}
	c.Start()

	m.cron = c
	m.entryID = id
	m.logger.Info("memory cleanup scheduled", slog.Duration("interval", m.interval))
	return nil
}

// Next reports when the job will run next. The zero time means not started.
func (m *MemoryCleanup) Next() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron == nil {
		return time.Time{}
	}
	return m.cron.Entry(m.entryID).Next
}

// Stop unschedules the job and waits for a running truncation, or for ctx.
func (m *MemoryCleanup) Stop(ctx context.Context) error {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		m.logger.Info("memory cleanup stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce truncates the memory tables now. Errors are logged and returned.
func (m *MemoryCleanup) RunOnce(ctx context.Context) error {
	tables := MemoryTables()
	m.logger.Info("running memory cleanup", slog.Any("tables", tables))

	if err := m.store.Truncate(ctx, tables...); err != nil {
		m.logger.Error("memory cleanup failed", slog.String("error", err.Error()))
		return fmt.Errorf("truncate memories: %w", err)
	}
	m.logger.Info("memory cleanup completed")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
