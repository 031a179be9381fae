package database

import (
	"fmt"
	"path/filepath"

	"ft-go/internal/config"
	"ft-go/internal/ft"
)

// NewRegistryFromConfig creates a Registry implementation based on the database config type.
func NewRegistryFromConfig(cfg config.DatabaseConfig, hostID string) (ft.Registry, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		dbPath := filepath.Join(cfg.DataDir, hostID+".db")
		return NewSQLiteRegistry(dbPath)
	case "memory":
		return NewSQLiteRegistry(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
