package database

import (
	"fmt"
	"os"
	"path/filepath"

	"mbhd-go/internal/config"
)

// CatalogFileName is the catalog database file inside data_dir.
const CatalogFileName = "catalog.db"

// NewCatalogFromConfig opens the backup catalog described by cfg.
func NewCatalogFromConfig(cfg config.DatabaseConfig) (*SQLiteCatalog, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		return NewSQLiteCatalog(filepath.Join(cfg.DataDir, CatalogFileName))
	case "memory":
		return NewSQLiteCatalog(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
