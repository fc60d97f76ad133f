// Package testutil provides shared test helpers for setting up vaults and ledgers.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/algiz/internal/ledger"
	"github.com/starford/algiz/internal/storage"
)

// TestLedger creates a temporary SQLite failure ledger that is automatically
// cleaned up.
func TestLedger(t *testing.T) *ledger.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "algiz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	rec, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}
