package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"whats-cooking/internal/config"
	"whats-cooking/internal/database"

	"github.com/redis/go-redis/v9"
)

// exerciseStore runs the same contract against every backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Get-Missing", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "missing-key")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if ok {
			t.Error("Expected missing key to be absent")
		}
	})

	t.Run("Set-Get", func(t *testing.T) {
		if err := store.Set(ctx, "breakfast-catalog", `{"items":[]}`); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}
		v, ok, err := store.Get(ctx, "breakfast-catalog")
		if err != nil || !ok {
			t.Fatalf("Expected key to be present, got ok=%v err=%v", ok, err)
		}
		if v != `{"items":[]}` {
			t.Errorf("Expected stored value, got '%s'", v)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := store.Set(ctx, "breakfast-catalog", `{"items":[{"id":"b1"}]}`); err != nil {
			t.Fatalf("Failed to overwrite: %v", err)
		}
		v, _, _ := store.Get(ctx, "breakfast-catalog")
		if v != `{"items":[{"id":"b1"}]}` {
			t.Errorf("Expected overwritten value, got '%s'", v)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete(ctx, "breakfast-catalog"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if _, ok, _ := store.Get(ctx, "breakfast-catalog"); ok {
			t.Error("Expected key to be gone after delete")
		}
		if err := store.Delete(ctx, "breakfast-catalog"); err != nil {
			t.Errorf("Expected deleting a missing key to succeed, got %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create FileStore: %v", err)
	}
	exerciseStore(t, store)

	t.Run("KeysAreEscaped", func(t *testing.T) {
		if err := store.Set(context.Background(), "a/b", "x"); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "a%2Fb.json")); err != nil {
			t.Errorf("Expected escaped file name, got %v", err)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	exerciseStore(t, NewSQLiteStore(db.SQL))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	store := NewRedisStore(rdb, "whats-cooking-test:")
	defer store.Close()

	exerciseStore(t, store)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{Driver: "memory"}}
		s, closeFn, err := Open(ctx, cfg, nil)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		defer closeFn()
		if _, ok := s.(*MemoryStore); !ok {
			t.Errorf("Expected *MemoryStore, got %T", s)
		}
	})

	t.Run("File", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{Driver: "file", Dir: t.TempDir()}}
		s, _, err := Open(ctx, cfg, nil)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if _, ok := s.(*FileStore); !ok {
			t.Errorf("Expected *FileStore, got %T", s)
		}
	})

	t.Run("SQLiteWithoutDB", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{Driver: "sqlite"}}
		if _, _, err := Open(ctx, cfg, nil); err == nil {
			t.Fatal("Expected an error without a database, got nil")
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		cfg := &config.Config{Storage: config.StorageConfig{Driver: "etcd"}}
		_, _, err := Open(ctx, cfg, nil)
		if !errors.Is(err, ErrUnsupportedDriver) {
			t.Errorf("Expected ErrUnsupportedDriver, got %v", err)
		}
	})
}
