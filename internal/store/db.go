// Package store implements the persistent single-file database: schema
// migrations, transactional writes, a prepared-statement cache, and a
// health check. It is the sole shared resource in the process; every
// other component borrows a *Store rather than opening its own connection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"claude-knowledge/internal/logging"
)

// Store wraps a single SQLite connection with migrations, a statement
// cache, and a mutex that serializes writers (sql.DB itself pools
// connections, but SQLite's single-writer model means uncoordinated
// concurrent writers just contend on Busy).
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	stmts  map[string]*sql.Stmt
	stmtMu sync.Mutex

	busyTimeoutMs int
	vectorExt     bool
	requireVec    bool
}

// Options configure Open.
type Options struct {
	// BusyTimeoutMs bounds how long a writer waits for the lock before
	// Open/Exec returns ErrBusy. Defaults to 5000ms.
	BusyTimeoutMs int
	// RequireVecIndex fails Open if the sqlite-vec extension cannot be
	// loaded, instead of degrading to brute-force similarity scans.
	RequireVecIndex bool
}

// Open opens or creates the database file at path, applies pending
// migrations, and returns a ready handle. Returns ErrStoreCorrupt if the
// file exists but cannot be parsed as SQLite, ErrSchemaTooNew if the
// on-disk schema version exceeds CurrentSchemaVersion, or ErrBusy if
// another migrator holds the write lock past the busy-timeout.
func Open(path string, opts Options) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path == "" {
		return nil, fmt.Errorf("%w: store path is empty", ErrInvalidInput)
	}
	if opts.BusyTimeoutMs <= 0 {
		opts.BusyTimeoutMs = 5000
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	dsn := dataSourceName(path, opts)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer, matches SQLite's model directly

	s := &Store{
		db:            db,
		path:          path,
		stmts:         make(map[string]*sql.Stmt),
		busyTimeoutMs: opts.BusyTimeoutMs,
		requireVec:    opts.RequireVecIndex,
	}

	if err := s.bootstrapPragmas(); err != nil {
		db.Close()
		return nil, classifyOpenError(err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, classifyOpenError(err)
	}

	s.detectVecExtension()
	if s.requireVec && !s.vectorExt {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec extension not available; rebuild with cgo and the sqlite_vec build tag, or disable RequireVecIndex")
	}

	logging.Store("store opened: path=%s schemaVersion=%d vectorExt=%v", path, CurrentSchemaVersion, s.vectorExt)
	return s, nil
}

func classifyOpenError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "database disk image is malformed", "file is not a database"):
		return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	case containsAny(msg, "database is locked", "busy"):
		return fmt.Errorf("%w: %v", ErrBusy, err)
	default:
		return err
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (s *Store) bootstrapPragmas() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q failed: %w", p, err)
		}
	}
	return nil
}

// DB exposes the underlying *sql.DB for components that need to run
// ad-hoc read queries (GraphQuery, Knowledge.query). Writers should go
// through Transaction instead.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Transaction runs fn in a single write transaction: rollback on any
// error, commit on success. No other goroutine observes uncommitted rows
// because sql.Tx isolates them until Commit.
func (s *Store) Transaction(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return classifyOpenError(err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.StoreError("rollback failed after error %v: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyOpenError(err)
	}
	return nil
}

// TransactionCtx is Transaction with a caller-supplied context, used by
// callers that want to honor cancellation for long-running bulk writes
// (e.g. a full-mode GraphStore write over a large project).
func (s *Store) TransactionCtx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyOpenError(err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.StoreError("rollback failed after error %v: %v", err, rbErr)
		}
		return err
	}
	return classifyOpenError(tx.Commit())
}

// Prepare returns a cached *sql.Stmt for the given SQL text, preparing it
// on first use. The cache is cleared after migrations run since a
// migration may change column sets that statements reference.
func (s *Store) Prepare(sqlText string) (*sql.Stmt, error) {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()

	if stmt, ok := s.stmts[sqlText]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(sqlText)
	if err != nil {
		return nil, err
	}
	s.stmts[sqlText] = stmt
	return stmt, nil
}

func (s *Store) clearStatementCache() {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	s.stmts = make(map[string]*sql.Stmt)
}

// Close releases the database handle and any cached statements.
func (s *Store) Close() error {
	s.clearStatementCache()
	return s.db.Close()
}

// HealthReport holds basic liveness and storage-size diagnostics.
type HealthReport struct {
	Okay          bool
	ResponseTimeMs float64
	FileSizeKb    float64
	WalSizeKb     float64
	ShmSizeKb     float64
	Warnings      []string
}

// Health runs a lightweight round-trip query and reports file sizes, used
// by the CLI's health commands.
func (s *Store) Health() HealthReport {
	start := time.Now()
	var report HealthReport

	var one int
	if err := s.db.QueryRow("SELECT 1").Scan(&one); err != nil {
		report.Okay = false
		report.Warnings = append(report.Warnings, fmt.Sprintf("ping failed: %v", err))
		return report
	}
	report.Okay = true
	report.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000.0

	report.FileSizeKb = fileSizeKb(s.path)
	report.WalSizeKb = fileSizeKb(s.path + "-wal")
	report.ShmSizeKb = fileSizeKb(s.path + "-shm")

	if report.ResponseTimeMs > 250 {
		report.Warnings = append(report.Warnings, "response time exceeds 250ms")
	}
	return report
}

func fileSizeKb(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1024.0
}
