// Package database keeps the history of received and sent codes in SQLite.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dbehnke/rf-nexus/pkg/logger"

	// Pure Go driver registered as "sqlite"; no cgo needed
	_ "modernc.org/sqlite"
)

const (
	defaultPath        = "rf-nexus.db"
	defaultBusyTimeout = 5 * time.Second
	slowQuery          = 200 * time.Millisecond
)

// DB is an open code history database
type DB struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Config holds database configuration
type Config struct {
	Path        string        // SQLite file; parent directories are created
	BusyTimeout time.Duration // how long a write waits on a locked database
}

// NewDB opens the database at cfg.Path and migrates the schema
func NewDB(cfg Config, log *logger.Logger) (*DB, error) {
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaultBusyTimeout
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: cfg.Path}, &gorm.Config{
		Logger: gormlogger.New(&gormLogAdapter{log: log}, gormlogger.Config{
			SlowThreshold:             slowQuery,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	// SQLite has one writer; a single connection keeps the pragmas below
	// in force for every statement
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := db.AutoMigrate(&CodeRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate code records: %w", err)
	}

	log.Info("Database initialized",
		logger.String("path", cfg.Path),
		logger.Int64("busy_timeout_ms", cfg.BusyTimeout.Milliseconds()))

	return &DB{db: db, logger: log}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the underlying GORM database instance
func (d *DB) GetDB() *gorm.DB {
	return d.db
}

// gormLogAdapter routes GORM warnings and slow queries to our logger
type gormLogAdapter struct {
	log *logger.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...), logger.String("source", "gorm"))
}
