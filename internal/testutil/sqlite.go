package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RealZimboGuy/shipflow/internal/repository"
)

// NewSQLiteStore returns a migrated store backed by a file in t's temp dir.
func NewSQLiteStore(t testing.TB) *repository.Store {
	t.Helper()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "shipflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewStore(db, repository.DialectSQLite)
}
