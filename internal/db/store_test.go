package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_ValidationErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		dbPath      string
		expectedErr string
	}{
		{"empty_path", "", "empty database path"},
		{"whitespace_path", "   ", "empty database path"},
		{"tabs_path", "\t\t", "empty database path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(ctx, tt.dbPath)
			assert.Nil(t, store)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestOpen_DirectoryCreationAndPermissions(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "deep", "test.db")

	store, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, filepath.Dir(dbPath))
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestOpen_ExistingFileKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "existing.db")

	store1, err := Open(ctx, dbPath)
	require.NoError(t, err)
	conv, err := NewConversationStore(store1).CreateConversation(ctx, "kept")
	require.NoError(t, err)
	require.NoError(t, store1.Close())

	store2, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer store2.Close()
	got, err := NewConversationStore(store2).GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Subject)
}

func TestClose_Nil(t *testing.T) {
	var store *Store
	assert.NoError(t, store.Close())
	assert.NoError(t, (&Store{}).Close())
}

func TestDB_Getter(t *testing.T) {
	store := openTestStore(t)
	assert.IsType(t, &sql.DB{}, store.DB())
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ver, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].version, ver)

	for _, table := range []string{"conversations", "messages", "inline_parts", "image_sizes"} {
		var name string
		err := store.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "Table %s should exist", table)
		assert.Equal(t, table, name)
	}

	// migrating again is a no-op
	require.NoError(t, store.migrate(ctx))
	ver2, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, ver, ver2)
}

func TestPragmas_Configuration(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	var journalMode string
	err := store.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode)
	assert.NoError(t, err)
	assert.Equal(t, "wal", journalMode)
}
