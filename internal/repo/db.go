// Package repo implements the data persistence layer for bot entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

// pragmas are applied through the DSN so every pooled connection gets them.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// OpenOption customizes OpenSQLite.
type OpenOption func(*openConfig)

type openConfig struct {
	tracing bool
	logger  logger.Interface
}

// WithTracing installs the OpenTelemetry GORM plugin.
func WithTracing() OpenOption {
	return func(c *openConfig) { c.tracing = true }
}

// WithLogger replaces the GORM logger.
func WithLogger(l logger.Interface) OpenOption {
	return func(c *openConfig) { c.logger = l }
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string, opts ...OpenOption) (*gorm.DB, error) {
	var oc openConfig
	for _, o := range opts {
		o(&oc)
	}

	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	cfg := &gorm.Config{}
	if oc.logger != nil {
		cfg.Logger = oc.logger
	}
	db, err := gorm.Open(sqlite.Open(dsn(path)), cfg)
	if err != nil {
		return nil, err
	}
	if oc.tracing {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, err
		}
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// dsn appends the PRAGMA parameters to path.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(path)
	for _, p := range pragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// AutoMigrate creates the fixed entity tables. Dynamic setting columns are
// added later by SchemaCatalog and are never touched here.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Group{},
		&domain.Setting{},
		&domain.ProcessedUpdate{},
	)
}
