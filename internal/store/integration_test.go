//go:build integration

package store_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"claude-knowledge/internal/store"
)

// TestMain ensures no goroutines leak across the store package's
// integration tests (connection pooling, statement cache).
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStoreSurvivesCloseAndReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "store_integration_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "knowledge.db")

	s1, err := store.Open(dbPath, store.Options{})
	require.NoError(t, err)

	err = s1.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO code_areas (id, name) VALUES (?, ?)`, "area-integration", "checkout")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := store.Open(dbPath, store.Options{})
	require.NoError(t, err)
	defer s2.Close()

	var name string
	err = s2.DB().QueryRow(`SELECT name FROM code_areas WHERE id = ?`, "area-integration").Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "checkout", name)

	health := s2.Health()
	require.True(t, health.Okay, "warnings: %v", health.Warnings)
}
