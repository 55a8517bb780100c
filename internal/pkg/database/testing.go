package database

import (
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"
)

var memSeq atomic.Int64

// OpenInMemory opens a private in-memory SQLite database with every model
// migrated. Each call gets its own database.
func OpenInMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:zintra_mem_%d?mode=memory&cache=shared&_busy_timeout=5000", memSeq.Add(1))
	db, err := Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps transactions and plain reads from tripping over
	// SQLite's shared-cache table locks.
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
