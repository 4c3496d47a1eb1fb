// Package testing provides fixtures and helpers shared by package tests.
package testing

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/aristath/frontier/internal/database"
	"github.com/stretchr/testify/require"
)

// NewTestDB opens a migrated sqlite database under t.TempDir(). Names without
// an embedded schema (anything but "runs") give an empty database. The returned
// cleanup closes the connection; it is also registered with t.Cleanup, so
// calling it is optional and repeated calls are harmless.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "test_"+name+".db"),
		Profile: database.ProfileCache,
		Name:    name,
	})
	require.NoError(t, err, "open test database %s", name)

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if err := db.Close(); err != nil {
				t.Logf("close test database %s: %v", name, err)
			}
		})
	}
	t.Cleanup(cleanup)

	if err := db.Migrate(); err != nil {
		cleanup()
		require.NoError(t, err, "migrate test database %s", name)
	}
	return db, cleanup
}
