package store

import (
	"database/sql"
	"fmt"

	"claude-knowledge/internal/logging"
)

// runMigrations brings a freshly opened database up to CurrentSchemaVersion,
// applying only the migrations whose version exceeds whatever is already on
// disk: idempotent CREATE/ALTER statements, version tracked in its own
// table, the whole pass wrapped in a transaction so a failure midway leaves
// the schema at its prior version.
func (s *Store) runMigrations() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := s.schemaVersion()
	if err != nil {
		return err
	}

	if current > CurrentSchemaVersion {
		return fmt.Errorf("%w: on-disk version %d, build supports %d", ErrSchemaTooNew, current, CurrentSchemaVersion)
	}
	if current == CurrentSchemaVersion {
		return nil
	}

	timer := logging.StartTimer(logging.CategoryStore, "runMigrations")
	defer timer.Stop()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration v%d failed: %w", m.version, err)
			}
		}
		logging.StoreDebug("applied migration v%d", m.version)
	}

	if err := s.setSchemaVersion(tx, CurrentSchemaVersion); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.clearStatementCache()
	logging.Store("schema migrated: %d -> %d", current, CurrentSchemaVersion)
	return nil
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch err {
	case nil:
		return version, nil
	case sql.ErrNoRows:
		return 0, nil
	default:
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
}

func (s *Store) setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version)
	return err
}

// columnExists reports whether table has a column named column, used by
// migrations that add columns rather than tables (SQLite has no IF NOT
// EXISTS for columns, so ALTER TABLE ADD COLUMN needs this PRAGMA
// table_info check first).
func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
