package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"epu-go/internal/database/migrations"
	"epu-go/internal/epu"
	"epu-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

const operationColumns = `id, run_id, operation, status, started_at, finished_at,
	archive_name, archive_digest, install_name, backup_name, files_changed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*model.UpdateOperation, error) {
	var op model.UpdateOperation
	err := row.Scan(
		&op.ID, &op.RunID, &op.Operation, &op.Status, &op.StartedAt, &op.FinishedAt,
		&op.ArchiveName, &op.ArchiveDigest, &op.InstallName, &op.BackupName, &op.FilesChanged,
	)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// CreateUpdateOperation inserts a new operation row with status "running".
func (s *SQLiteDatabase) CreateUpdateOperation(runID, operation string, startedAt time.Time) (*model.UpdateOperation, error) {
	res, err := s.db.Exec(
		`INSERT INTO update_operations (run_id, operation, status, started_at) VALUES (?, ?, ?, ?)`,
		runID, operation, epu.StatusRunning, startedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating update operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading update operation id: %w", err)
	}

	return &model.UpdateOperation{
		ID:        id,
		RunID:     runID,
		Operation: operation,
		Status:    epu.StatusRunning,
		StartedAt: startedAt,
	}, nil
}

// FinishUpdateOperation finalizes an operation row with its status and outcome details.
func (s *SQLiteDatabase) FinishUpdateOperation(id int64, status string, finishedAt time.Time, details model.UpdateDetails) error {
	_, err := s.db.Exec(
		`UPDATE update_operations
		 SET status = ?, finished_at = ?, archive_name = ?, archive_digest = ?,
		     install_name = ?, backup_name = ?, files_changed = ?
		 WHERE id = ?`,
		status, finishedAt, details.ArchiveName, details.ArchiveDigest,
		details.InstallName, details.BackupName, details.FilesChanged, id,
	)
	if err != nil {
		return fmt.Errorf("finishing update operation: %w", err)
	}
	return nil
}

// RecordChangedPaths inserts one changed_paths row per path in a single transaction.
func (s *SQLiteDatabase) RecordChangedPaths(operationID int64, phase string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO changed_paths (operation_id, phase, path) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, path := range paths {
		if _, err := stmt.Exec(operationID, phase, path); err != nil {
			return fmt.Errorf("recording changed path %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ChangedPaths returns the recorded path changes for an operation, writes before deletes.
func (s *SQLiteDatabase) ChangedPaths(operationID int64) ([]*model.ChangedPath, error) {
	rows, err := s.db.Query(
		`SELECT id, operation_id, phase, path FROM changed_paths WHERE operation_id = ? ORDER BY id`,
		operationID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing changed paths: %w", err)
	}
	defer rows.Close()

	var paths []*model.ChangedPath
	for rows.Next() {
		var cp model.ChangedPath
		if err := rows.Scan(&cp.ID, &cp.OperationID, &cp.Phase, &cp.Path); err != nil {
			return nil, fmt.Errorf("scanning changed path: %w", err)
		}
		paths = append(paths, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing changed paths: %w", err)
	}
	return paths, nil
}

// ListUpdateOperations returns up to limit operations, newest first.
func (s *SQLiteDatabase) ListUpdateOperations(limit int) ([]*model.UpdateOperation, error) {
	rows, err := s.db.Query(
		`SELECT `+operationColumns+` FROM update_operations ORDER BY started_at DESC, id DESC LIMIT ?`,
		int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing update operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.UpdateOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning update operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing update operations: %w", err)
	}
	return ops, nil
}

// LastUpdateOperation returns the most recent operation, or nil if none exist.
func (s *SQLiteDatabase) LastUpdateOperation() (*model.UpdateOperation, error) {
	row := s.db.QueryRow(`SELECT ` + operationColumns + ` FROM update_operations ORDER BY started_at DESC, id DESC LIMIT 1`)

	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No updates recorded yet
		}
		return nil, fmt.Errorf("finding last update operation: %w", err)
	}
	return op, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate brings the database schema to the latest version.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements epu.Database interface
var _ epu.Database = (*SQLiteDatabase)(nil)
