package dialect

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		dialectType DialectType
		wantName    string
		wantErr     bool
	}{
		{"sqlite", SQLite, "sqlite", false},
		{"postgres", Postgres, "postgres", false},
		{"unknown", DialectType("mysql"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.dialectType)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driverName string
		wantName   string
		wantDriver string
		wantErr    bool
	}{
		{"sqlite", "sqlite", "sqlite", false},
		{"sqlite3", "sqlite", "sqlite", false},
		{"postgres", "postgres", "postgres", false},
		{"postgresql", "postgres", "postgres", false},
		{"mysql", "", "", true},
		{"unknown", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driverName, func(t *testing.T) {
			d, err := FromDriverName(tt.driverName)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromDriverName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}
			if d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
			if d.DriverName() != tt.wantDriver {
				t.Errorf("DriverName() = %v, want %v", d.DriverName(), tt.wantDriver)
			}
		})
	}
}

func TestSQLiteDialect_Rebind(t *testing.T) {
	d := &sqliteDialect{}
	query := "SELECT * FROM users WHERE id = ? AND username = ?"
	got := d.Rebind(query)
	if got != query {
		t.Errorf("Rebind() = %v, want %v", got, query)
	}
}

func TestPostgresDialect_Rebind(t *testing.T) {
	d := &postgresDialect{}
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT * FROM users WHERE id = ?", "SELECT * FROM users WHERE id = $1"},
		{"SELECT * FROM users WHERE id = ? AND username = ?", "SELECT * FROM users WHERE id = $1 AND username = $2"},
		{"INSERT INTO agent_sessions VALUES (?, ?, ?)", "INSERT INTO agent_sessions VALUES ($1, $2, $3)"},
		{"SELECT * FROM users", "SELECT * FROM users"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := d.Rebind(tt.query)
			if got != tt.want {
				t.Errorf("Rebind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDialect_TruncateStatements(t *testing.T) {
	tables := []string{"clinical_protocol_memories", "symptom_analyzer_memories"}

	sqliteStmts := (&sqliteDialect{}).TruncateStatements(tables)
	if len(sqliteStmts) != 2 {
		t.Fatalf("sqlite statements = %d, want 2", len(sqliteStmts))
	}
	if sqliteStmts[0] != "DELETE FROM clinical_protocol_memories" {
		t.Errorf("sqlite[0] = %q", sqliteStmts[0])
	}

	pgStmts := (&postgresDialect{}).TruncateStatements(tables)
	want := "TRUNCATE TABLE clinical_protocol_memories, symptom_analyzer_memories"
	if len(pgStmts) != 1 || pgStmts[0] != want {
		t.Errorf("postgres statements = %v, want [%s]", pgStmts, want)
	}

	if got := (&postgresDialect{}).TruncateStatements(nil); got != nil {
		t.Errorf("postgres empty = %v, want nil", got)
	}
}

func TestDialect_IsUniqueViolation(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{"sqlite unique", &sqliteDialect{}, errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"), true},
		{"sqlite other", &sqliteDialect{}, errors.New("no such table: users"), false},
		{"sqlite nil", &sqliteDialect{}, nil, false},
		{"postgres unique", &postgresDialect{}, &pq.Error{Code: "23505"}, true},
		{"postgres other", &postgresDialect{}, &pq.Error{Code: "42P01"}, false},
		{"postgres plain", &postgresDialect{}, errors.New("duplicate"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDialect_PragmaStatements(t *testing.T) {
	if pragmas := (&sqliteDialect{}).PragmaStatements(); len(pragmas) == 0 {
		t.Error("sqlite should have pragma statements")
	}
	if pragmas := (&postgresDialect{}).PragmaStatements(); len(pragmas) != 0 {
		t.Errorf("postgres pragmas = %v, want none", pragmas)
	}
}

func TestDialect_InsertReturningID(t *testing.T) {
	if got := (&sqliteDialect{}).InsertReturningID(); got != "" {
		t.Errorf("sqlite InsertReturningID() = %q, want empty", got)
	}
	if got := (&postgresDialect{}).InsertReturningID(); got != " RETURNING id" {
		t.Errorf("postgres InsertReturningID() = %q", got)
	}
}
