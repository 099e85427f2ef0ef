package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/analyze"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database: "+err.Error(), ErrConnectionFailed)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database: "+err.Error(), ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// withForeignKeys appends the foreign key pragma to dsn, keeping any
// parameters it already carries.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID           string  `db:"id"`
	Target       string  `db:"target"`
	Status       string  `db:"status"`
	CommandCount int     `db:"command_count"`
	Report       *string `db:"report"`
	Batch        string  `db:"batch"`
	Output       string  `db:"output"`
	ErrorMessage string  `db:"error_message"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
	StartedAt    *string `db:"started_at"`
	FinishedAt   *string `db:"finished_at"`
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.db, run)
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	return deleteRun(ctx, s.db, id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.db, opts)
}

func (s *SQLiteStore) ListRunsByTarget(ctx context.Context, target string, opts ListOptions) ([]domain.Run, error) {
	return listRunsByTarget(ctx, s.db, target, opts)
}

func (s *SQLiteStore) CountRuns(ctx context.Context, target string) (int, error) {
	return countRuns(ctx, s.db, target)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateRun(ctx context.Context, run *domain.Run) error {
	return updateRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) DeleteRun(ctx context.Context, id string) error {
	return deleteRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]domain.Run, error) {
	return listRuns(ctx, s.tx, opts)
}

func (s *txSQLiteStore) ListRunsByTarget(ctx context.Context, target string, opts ListOptions) ([]domain.Run, error) {
	return listRunsByTarget(ctx, s.tx, target, opts)
}

func (s *txSQLiteStore) CountRuns(ctx context.Context, target string) (int, error) {
	return countRuns(ctx, s.tx, target)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func runToRow(op string, run *domain.Run) (map[string]any, error) {
	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return nil, NewStoreError(op, "run", run.ID, "failed to serialize report", ErrInvalidData)
	}

	return map[string]any{
		"id":            run.ID,
		"target":        run.Target,
		"status":        string(run.Status),
		"command_count": run.CommandCount,
		"report":        string(reportJSON),
		"batch":         run.Batch,
		"output":        run.Output,
		"error_message": run.ErrorMessage,
		"created_at":    run.CreatedAt.UTC().Format(timeLayout),
		"updated_at":    run.UpdatedAt.UTC().Format(timeLayout),
		"started_at":    formatTimePtr(run.StartedAt),
		"finished_at":   formatTimePtr(run.FinishedAt),
	}, nil
}

func createRun(ctx context.Context, exec executor, run *domain.Run) error {
	row, err := runToRow("CreateRun", run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (
			id, target, status, command_count, report, batch, output,
			error_message, created_at, updated_at, started_at, finished_at
		) VALUES (
			:id, :target, :status, :command_count, :report, :batch, :output,
			:error_message, :created_at, :updated_at, :started_at, :finished_at
		)`

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}

	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*domain.Run, error) {
	query := `SELECT * FROM runs WHERE id = ?`

	var row runRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	return rowToRun(&row)
}

func updateRun(ctx context.Context, exec executor, run *domain.Run) error {
	row, err := runToRow("UpdateRun", run)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs SET
			target = :target,
			status = :status,
			command_count = :command_count,
			report = :report,
			batch = :batch,
			output = :output,
			error_message = :error_message,
			updated_at = :updated_at,
			started_at = :started_at,
			finished_at = :finished_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateRun", "run", run.ID, err.Error(), err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewStoreError("UpdateRun", "run", run.ID, "run not found", ErrNotFound)
	}

	return nil
}

func deleteRun(ctx context.Context, exec executor, id string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteRun", "run", id, err.Error(), err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewStoreError("DeleteRun", "run", id, "run not found", ErrNotFound)
	}

	return nil
}

func listRuns(ctx context.Context, exec executor, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM runs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	var rows []runRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	return rowsToRuns(rows)
}

func listRunsByTarget(ctx context.Context, exec executor, target string, opts ListOptions) ([]domain.Run, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM runs WHERE target = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	var rows []runRow
	err := exec.SelectContext(ctx, &rows, query, target, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListRunsByTarget", "run", "", err.Error(), err)
	}

	return rowsToRuns(rows)
}

func countRuns(ctx context.Context, exec executor, target string) (int, error) {
	query := `SELECT COUNT(*) FROM runs`
	var args []any
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}

	var count int
	if err := exec.GetContext(ctx, &count, query, args...); err != nil {
		return 0, NewStoreError("CountRuns", "run", "", err.Error(), err)
	}
	return count, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func rowsToRuns(rows []runRow) ([]domain.Run, error) {
	runs := make([]domain.Run, 0, len(rows))
	for _, row := range rows {
		run, err := rowToRun(&row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func rowToRun(row *runRow) (*domain.Run, error) {
	createdAt, _ := time.Parse(timeLayout, row.CreatedAt)
	updatedAt, _ := time.Parse(timeLayout, row.UpdatedAt)

	var report analyze.Report
	if row.Report != nil && *row.Report != "" && *row.Report != "null" {
		if err := json.Unmarshal([]byte(*row.Report), &report); err != nil {
			return nil, NewStoreError("rowToRun", "run", row.ID, "failed to parse report", ErrInvalidData)
		}
	}

	return &domain.Run{
		ID:           row.ID,
		Target:       row.Target,
		Status:       domain.RunStatus(row.Status),
		CommandCount: row.CommandCount,
		Report:       report,
		Batch:        row.Batch,
		Output:       row.Output,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		StartedAt:    parseTimePtr(row.StartedAt),
		FinishedAt:   parseTimePtr(row.FinishedAt),
	}, nil
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}
