// Package sqldb implements the user, session and memory stores on top of
// sqlx with pluggable SQL dialects.
package sqldb

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/storage/dialect"
)

// MemoryTables lists the per-agent memory tables managed by the store.
var MemoryTables = []string{
	domain.SymptomAnalyzer.MemoryTable(),
	domain.ClinicalProtocol.MemoryTable(),
}

// Store is a SQL implementation of UserStore, SessionStore and MemoryStore
// that supports multiple database dialects.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ ports.Store = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store
func NewSQLite(dsn string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dsn})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	pk := s.dialect.AutoIncrementClause()
	ts := s.dialect.TimestampType()

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
	id %s,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	created_at %s NOT NULL
)`, pk, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS agent_sessions (
	seq %s,
	run_id TEXT NOT NULL UNIQUE,
	agent TEXT NOT NULL,
	session_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	input TEXT NOT NULL,
	output TEXT NOT NULL,
	created_at %s NOT NULL
)`, pk, ts),
		`CREATE INDEX IF NOT EXISTS idx_agent_sessions_session ON agent_sessions(agent, session_id)`,
	}

	for _, table := range MemoryTables {
		statements = append(statements,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s,
	user_id TEXT NOT NULL,
	memory TEXT NOT NULL,
	created_at %s NOT NULL
)`, table, pk, ts),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)`, table, table),
		)
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}
