package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_tasks.sql", "0001_init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.sql"), 0o700))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_tasks.sql"}, files)
}

func TestMigrationFilesMissingDir(t *testing.T) {
	_, err := migrationFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestRepositoryMigrationsPresent(t *testing.T) {
	files, err := migrationFiles(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestPendingMigrationsSkipsApplied(t *testing.T) {
	files := []string{"0001_users_auth.sql", "0002_tasks.sql", "0003_gar_stats.sql"}
	pending := pendingMigrations(files, map[string]bool{"0001_users_auth": true, "0003_gar_stats": true})
	assert.Equal(t, []string{"0002_tasks"}, pending)
	assert.Len(t, pendingMigrations(files, nil), 3)
}
