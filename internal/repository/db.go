// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDBPath is used when no database path is configured.
const DefaultDBPath = "data/flood_system.db"

// OpenDatabase opens (and creates if needed) the SQLite database file.
func OpenDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database at %s: %w", dbPath, err)
	}

	return db, nil
}
