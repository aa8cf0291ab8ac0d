package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

type runRow struct {
	Seq       int64     `db:"seq"`
	RunID     string    `db:"run_id"`
	Agent     string    `db:"agent"`
	SessionID string    `db:"session_id"`
	UserID    string    `db:"user_id"`
	Input     string    `db:"input"`
	Output    string    `db:"output"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) AppendRun(ctx context.Context, run *domain.AgentRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := s.dialect.Rebind(`INSERT INTO agent_sessions (run_id, agent, session_id, user_id, input, output, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Agent), run.SessionID, run.UserID, run.Input, run.Output, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append run: %w", err)
	}
	return nil
}

func (s *Store) RecentRuns(ctx context.Context, agent domain.AgentKind, sessionID string, n int) ([]domain.AgentRun, error) {
	if n <= 0 {
		return nil, nil
	}

	query := s.dialect.Rebind(`SELECT seq, run_id, agent, session_id, user_id, input, output, created_at
	          FROM agent_sessions WHERE agent = ? AND session_id = ?
	          ORDER BY seq DESC LIMIT ?`)

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, string(agent), sessionID, n); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	// Newest first from the query; callers want chronological order
	runs := make([]domain.AgentRun, len(rows))
	for i, row := range rows {
		runs[len(rows)-1-i] = domain.AgentRun{
			ID:        row.RunID,
			Agent:     domain.AgentKind(row.Agent),
			SessionID: row.SessionID,
			UserID:    row.UserID,
			Input:     row.Input,
			Output:    row.Output,
			CreatedAt: row.CreatedAt,
		}
	}
	return runs, nil
}
