package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/model"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	orm  *gorm.DB
	mu   sync.RWMutex
}

// New opens (creating when needed) the database file and migrates the schema.
func New(dbPath string, log *logger.Logger) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	orm, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite3", Conn: conn}), &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	db := &DB{conn: conn, orm: orm}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the user table, or adds columns missing from an older one
// (databases created before roles existed have no role column).
func (db *DB) migrate() error {
	return db.orm.AutoMigrate(&model.User{})
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Gorm returns the ORM handle used by repositories.
func (db *DB) Gorm() *gorm.DB {
	return db.orm
}

// PingContext checks the connection is usable.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}

// gormWriter routes ORM diagnostics (slow queries, errors) to the warning log.
type gormWriter struct {
	log *logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warning(format, args...)
}

func newGormLogger(log *logger.Logger) gormlogger.Interface {
	if log == nil {
		return gormlogger.Discard
	}
	return gormlogger.New(gormWriter{log: log}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
