// Package repo implements the data persistence layer for bot entities,
// backed by GORM. This file provides SchemaCatalog, the cached view of each
// table's columns that decides whether a dynamic setting column must be
// created.
//
// Concurrency: the catalog keeps one mutex per table, held across
// "check cache -> ALTER TABLE -> update cache", so two callers asking for the
// same new column never issue the extension twice. Different tables never
// contend with each other.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Column describes a dynamic setting column.
type Column struct {
	Name    string
	Type    ColumnType
	Default string // SQL literal, see SQLLiteral
}

// tableColumns is the cached column set of one table.
type tableColumns struct {
	mu     sync.Mutex
	loaded bool
	names  []string          // declaration order, original case
	types  map[string]string // folded name -> declared type
}

func (t *tableColumns) reset() {
	t.loaded = false
	t.names = nil
	t.types = nil
}

func (t *tableColumns) add(name, typ string) {
	t.names = append(t.names, name)
	t.types[foldIdent(name)] = typ
}

// SchemaCatalog introspects and caches table columns, and extends tables
// with new columns on demand. It is safe for concurrent use.
type SchemaCatalog struct {
	db *gorm.DB

	mu     sync.Mutex
	tables map[string]*tableColumns
}

// NewSchemaCatalog returns a catalog with an empty cache.
func NewSchemaCatalog(db *gorm.DB) *SchemaCatalog {
	return &SchemaCatalog{db: db, tables: make(map[string]*tableColumns)}
}

func (c *SchemaCatalog) table(name string) *tableColumns {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[name]
	if !ok {
		t = &tableColumns{}
		c.tables[name] = t
	}
	return t
}

// Columns returns the column names of table, introspecting it on first use.
func (c *SchemaCatalog) Columns(ctx context.Context, table string) ([]string, error) {
	t := c.table(table)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := c.load(ctx, table, t); err != nil {
		return nil, err
	}
	return append([]string(nil), t.names...), nil
}

// Lookup reports whether table has a column called name (compared
// case-insensitively, as SQLite does) and returns its declared type.
func (c *SchemaCatalog) Lookup(ctx context.Context, table, name string) (declaredType string, ok bool, err error) {
	t := c.table(table)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := c.load(ctx, table, t); err != nil {
		return "", false, err
	}
	declaredType, ok = t.types[foldIdent(name)]
	return declaredType, ok, nil
}

// HasColumn reports whether table has a column called name.
func (c *SchemaCatalog) HasColumn(ctx context.Context, table, name string) (bool, error) {
	_, ok, err := c.Lookup(ctx, table, name)
	return ok, err
}

// EnsureColumn adds col to table unless it already exists. It reports
// whether the column was created. On failure the cache is left unchanged.
func (c *SchemaCatalog) EnsureColumn(ctx context.Context, table string, col Column) (bool, error) {
	if err := validateIdent(col.Name); err != nil {
		return false, storageErr("extend schema", table, err)
	}
	t := c.table(table)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := c.load(ctx, table, t); err != nil {
		return false, err
	}
	if _, ok := t.types[foldIdent(col.Name)]; ok {
		return false, nil
	}

	def := col.Default
	if def == "" {
		def = SQLLiteral(nil)
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN [%s] %s DEFAULT %s", quoteTable(table), col.Name, col.Type, def)
	if err := c.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return false, storageErr("extend schema", table, err)
	}
	t.add(col.Name, string(col.Type))
	schemaExtensions.WithLabelValues(table).Inc()

	log.Info().
		Str("table", table).
		Str("column", col.Name).
		Str("type", string(col.Type)).
		Str("default", def).
		Msg("schema extended")
	return true, nil
}

// Invalidate drops the cached columns of table; the next call re-scans it.
func (c *SchemaCatalog) Invalidate(table string) {
	t := c.table(table)
	t.mu.Lock()
	t.reset()
	t.mu.Unlock()
}

// InvalidateAll drops every cached table.
func (c *SchemaCatalog) InvalidateAll() {
	c.mu.Lock()
	all := make([]*tableColumns, 0, len(c.tables))
	for _, t := range c.tables {
		all = append(all, t)
	}
	c.mu.Unlock()

	for _, t := range all {
		t.mu.Lock()
		t.reset()
		t.mu.Unlock()
	}
}

// load populates t from PRAGMA table_info. Callers hold t.mu.
func (c *SchemaCatalog) load(ctx context.Context, table string, t *tableColumns) error {
	if t.loaded {
		return nil
	}
	rows, err := c.db.WithContext(ctx).Raw("PRAGMA table_info(" + quoteTable(table) + ")").Rows()
	if err != nil {
		return storageErr("introspect", table, err)
	}
	defer rows.Close()

	var (
		names []string
		types = make(map[string]string)
	)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return storageErr("introspect", table, err)
		}
		names = append(names, name)
		types[foldIdent(name)] = typ
	}
	if err := rows.Err(); err != nil {
		return storageErr("introspect", table, err)
	}
	if len(names) == 0 {
		return storageErr("introspect", table, ErrNoSuchTable)
	}

	t.names, t.types, t.loaded = names, types, true
	return nil
}

// foldIdent normalizes an identifier the way SQLite compares them (ASCII
// case-insensitive).
func foldIdent(s string) string { return strings.ToLower(s) }

// validateIdent accepts names usable inside [brackets].
func validateIdent(name string) error {
	if strings.TrimSpace(name) != name || name == "" || strings.ContainsAny(name, "[]\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

// quoteTable quotes a table name with double quotes.
func quoteTable(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
