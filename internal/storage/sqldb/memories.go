package sqldb

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

type memoryRow struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	Memory    string    `db:"memory"`
	CreatedAt time.Time `db:"created_at"`
}

// checkTable guards table names before they are interpolated into SQL.
func checkTable(table string) error {
	if !slices.Contains(MemoryTables, table) {
		return fmt.Errorf("unknown memory table %q", table)
	}
	return nil
}

func (s *Store) AddMemory(ctx context.Context, table, userID, content string) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := s.dialect.Rebind(fmt.Sprintf(`INSERT INTO %s (user_id, memory, created_at) VALUES (?, ?, ?)`, table))
	if _, err := s.db.ExecContext(ctx, query, userID, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to add memory: %w", err)
	}
	return nil
}

func (s *Store) RecentMemories(ctx context.Context, table, userID string, n int) ([]domain.Memory, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	query := s.dialect.Rebind(fmt.Sprintf(`SELECT id, user_id, memory, created_at FROM %s
	          WHERE user_id = ? ORDER BY id DESC LIMIT ?`, table))

	var rows []memoryRow
	if err := s.db.SelectContext(ctx, &rows, query, userID, n); err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	memories := make([]domain.Memory, len(rows))
	for i, row := range rows {
		memories[len(rows)-1-i] = domain.Memory{
			ID:        row.ID,
			UserID:    row.UserID,
			Content:   row.Memory,
			CreatedAt: row.CreatedAt,
		}
	}
	return memories, nil
}

func (s *Store) Truncate(ctx context.Context, tables ...string) error {
	for _, t := range tables {
		if err := checkTable(t); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin truncate: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range s.dialect.TruncateStatements(tables) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to truncate memories: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit truncate: %w", err)
	}
	return nil
}
