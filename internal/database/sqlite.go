package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mbhd-go/internal/database/migrations"
	"mbhd-go/internal/mbhd"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Operation is one CLI command recorded in the catalog.
type Operation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Operation  string
	Parameters string
	Status     string
}

// SQLiteCatalog is the backup history kept in a SQLite database. It
// implements mbhd.Catalog.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// NewSQLiteCatalog opens the catalog at path, or ":memory:" for an
// in-memory catalog. The schema is not touched; call Migrate or
// CheckMigrations before use.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteCatalog{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteCatalog) Path() string {
	return s.path
}

// Migrate brings the schema up to date.
func (s *SQLiteCatalog) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteCatalog) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Backup events

func (s *SQLiteCatalog) RecordBackupEvent(ev *mbhd.BackupEvent) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO backup_events (id, wallet_id, kind, event, name, location, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.WalletID, string(ev.Kind), ev.Event, ev.Name, ev.Location, ev.Detail, ev.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording backup event: %w", err)
	}
	return nil
}

// ListBackupEvents returns the most recent events, newest first. An empty
// walletID lists events of all wallets. limit <= 0 means no limit.
func (s *SQLiteCatalog) ListBackupEvents(walletID string, limit int) ([]*mbhd.BackupEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, wallet_id, kind, event, name, location, detail, created_at
		 FROM backup_events
		 WHERE ? = '' OR wallet_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		walletID, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing backup events: %w", err)
	}
	defer rows.Close()

	var events []*mbhd.BackupEvent
	for rows.Next() {
		var ev mbhd.BackupEvent
		var kind string
		if err := rows.Scan(&ev.ID, &ev.WalletID, &kind, &ev.Event, &ev.Name, &ev.Location, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning backup event: %w", err)
		}
		ev.Kind = mbhd.BackupKind(kind)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing backup events: %w", err)
	}
	return events, nil
}

// Operation tracking

func (s *SQLiteCatalog) CreateOperation(operation, parameters string, startedAt time.Time) (*Operation, error) {
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO operations (started_at, operation, parameters) VALUES (?, ?, ?)`,
		startedAt.UTC(), operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return &Operation{
		ID:         id,
		StartedAt:  startedAt.UTC(),
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
	}, nil
}

func (s *SQLiteCatalog) FinishOperation(id int64, status string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`,
		finishedAt.UTC(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", id)
	}
	return nil
}

// ListOperations returns the most recent operations, newest first.
func (s *SQLiteCatalog) ListOperations(limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, started_at, finished_at, operation, parameters, status
		 FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var op Operation
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.StartedAt, &finished, &op.Operation, &op.Parameters, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// BackupTo creates a complete copy of the catalog at destPath using VACUUM INTO.
func (s *SQLiteCatalog) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ mbhd.Catalog = (*SQLiteCatalog)(nil)
