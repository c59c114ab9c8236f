package database

import (
	"path/filepath"
	"testing"
)

func TestNewDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer db.Close()

	for _, table := range []string{"kv_store", "cache_entries", "cache_buckets", "fetch_metrics"} {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist: %v", table, err)
		}
	}

	t.Run("MigrationsAreIdempotent", func(t *testing.T) {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("Expected re-running migrations to succeed, got %v", err)
		}
	})
}
