package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
)

type userRow struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Password  string    `db:"password"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	query := `INSERT INTO users (username, password, created_at) VALUES (?, ?, ?)`
	now := time.Now().UTC()

	if suffix := s.dialect.InsertReturningID(); suffix != "" {
		var id int64
		err := s.db.QueryRowxContext(ctx, s.dialect.Rebind(query+suffix), username, passwordHash, now).Scan(&id)
		if err != nil {
			return 0, s.createUserErr(username, err)
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), username, passwordHash, now)
	if err != nil {
		return 0, s.createUserErr(username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read user id: %w", err)
	}
	return id, nil
}

func (s *Store) createUserErr(username string, err error) error {
	if s.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("username %q: %w", username, domain.ErrUserExists)
	}
	return fmt.Errorf("failed to create user: %w", err)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*ports.User, error) {
	query := s.dialect.Rebind(`SELECT id, username, password, created_at FROM users WHERE username = ?`)

	var row userRow
	err := s.db.GetContext(ctx, &row, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("username %q: %w", username, domain.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &ports.User{ID: row.ID, Username: row.Username, PasswordHash: row.Password}, nil
}
