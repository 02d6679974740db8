package database

import (
	"os"
	"path/filepath"
	"testing"

	"mbhd-go/internal/config"
)

func TestNewCatalogFromConfig(t *testing.T) {
	t.Run("memory catalog", func(t *testing.T) {
		got, err := NewCatalogFromConfig(config.DatabaseConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewCatalogFromConfig() unexpected error: %v", err)
		}
		defer got.Close()
		if got.Path() != ":memory:" {
			t.Errorf("Path() = %q, want :memory:", got.Path())
		}
	})

	t.Run("sqlite catalog creates data_dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "db")
		got, err := NewCatalogFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: dir})
		if err != nil {
			t.Fatalf("NewCatalogFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.Migrate(); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, CatalogFileName)); err != nil {
			t.Errorf("catalog file not created: %v", err)
		}
	})

	t.Run("sqlite catalog without data_dir", func(t *testing.T) {
		got, err := NewCatalogFromConfig(config.DatabaseConfig{Type: "sqlite"})
		if err == nil {
			t.Error("NewCatalogFromConfig() expected error for missing data_dir, got nil")
		}
		if got != nil {
			t.Error("NewCatalogFromConfig() should return nil on error")
		}
	})

	t.Run("unknown database type", func(t *testing.T) {
		got, err := NewCatalogFromConfig(config.DatabaseConfig{Type: "unknown"})
		if err == nil {
			t.Error("NewCatalogFromConfig() expected error for unknown type, got nil")
		}
		if got != nil {
			t.Error("NewCatalogFromConfig() should return nil on error")
		}
	})
}
