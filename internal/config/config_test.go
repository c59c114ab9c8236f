package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	// Run from an empty directory so no stray config.yaml or .env is picked up.
	t.Chdir(t.TempDir())

	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.Storage.Driver != "sqlite" {
			t.Errorf("Expected storage driver 'sqlite', got '%s'", cfg.Storage.Driver)
		}
		if cfg.Offline.CachePrefix != "whats-cooking" {
			t.Errorf("Expected cache prefix 'whats-cooking', got '%s'", cfg.Offline.CachePrefix)
		}
		if cfg.History.RetentionMonths != 3 {
			t.Errorf("Expected 3 retention months, got %d", cfg.History.RetentionMonths)
		}
		if len(cfg.Offline.Manifest) != len(DefaultManifest) {
			t.Errorf("Expected %d manifest entries, got %d", len(DefaultManifest), len(cfg.Offline.Manifest))
		}
		if cfg.Addr() != "localhost:8080" {
			t.Errorf("Expected addr 'localhost:8080', got '%s'", cfg.Addr())
		}
	})

	t.Run("EnvOverride", func(t *testing.T) {
		t.Setenv("WHATS_COOKING_STORAGE_DRIVER", "memory")
		t.Setenv("WHATS_COOKING_OFFLINE_VERSION", "2.0.0")
		t.Setenv("WHATS_COOKING_SERVER_PORT", "9090")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.Storage.Driver != "memory" {
			t.Errorf("Expected storage driver 'memory', got '%s'", cfg.Storage.Driver)
		}
		if cfg.Offline.Version != "2.0.0" {
			t.Errorf("Expected version '2.0.0', got '%s'", cfg.Offline.Version)
		}
		if cfg.Server.Port != 9090 {
			t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
		}
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		content := "storage:\n  driver: file\n  dir: /tmp/wc\noffline:\n  version: \"3.1.0\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.Storage.Driver != "file" || cfg.Storage.Dir != "/tmp/wc" {
			t.Errorf("Expected file driver at /tmp/wc, got %s at %s", cfg.Storage.Driver, cfg.Storage.Dir)
		}
		if cfg.Offline.Version != "3.1.0" {
			t.Errorf("Expected version '3.1.0', got '%s'", cfg.Offline.Version)
		}
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		if err == nil {
			t.Fatal("Expected an error for a missing explicit config file, got nil")
		}
	})

	t.Run("InvalidDriver", func(t *testing.T) {
		t.Setenv("WHATS_COOKING_STORAGE_DRIVER", "postgres")

		_, err := Load("")
		if err == nil {
			t.Fatal("Expected an error for unsupported driver, got nil")
		}
		if !strings.Contains(err.Error(), "storage.driver") {
			t.Errorf("Expected storage.driver error, got '%s'", err.Error())
		}
	})
}
