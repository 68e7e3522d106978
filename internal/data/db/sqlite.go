package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// OpenSQLite opens a SQLite database for local development and tests.
// Use ":memory:" (or "file::memory:?cache=shared") for throwaway databases.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	cfg := gormConfig()
	cfg.Logger = gormLogger.Default.LogMode(gormLogger.Silent)
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// SQLite serializes writers; one connection avoids "database is locked"
	// and keeps in-memory databases on a single handle.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
