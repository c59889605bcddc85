// Package repo implements the data persistence layer for bot entities,
// backed by GORM. This file provides SettingsStore, typed get/set access to
// named settings stored as extra columns on an entity's table.
//
// A setting that does not exist yet is materialized on first use: the table
// grows a column whose type is inferred from the default (booleans and
// integers become INTEGER, text becomes TEXT) and whose DEFAULT is the
// default value, so every existing row inherits it.
//
// Reads return errors. Writes return a bool and log the cause instead,
// which keeps command handlers short.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

// SettingsStore reads and writes dynamic settings. It is safe for
// concurrent use; concurrent writes to the same setting are last-write-wins.
type SettingsStore struct {
	db      *gorm.DB
	catalog *SchemaCatalog
}

// NewSettingsStore binds a store to db and the shared schema catalog.
func NewSettingsStore(db *gorm.DB, catalog *SchemaCatalog) *SettingsStore {
	return &SettingsStore{db: db, catalog: catalog}
}

// Catalog returns the schema catalog used by the store.
func (s *SettingsStore) Catalog() *SchemaCatalog { return s.catalog }

// GetText returns a text setting, or def when the setting is new or NULL.
func (s *SettingsStore) GetText(ctx context.Context, e domain.Entity, field, def string) (string, error) {
	v, err := s.Get(ctx, e, field, Text(def))
	if err != nil {
		return "", err
	}
	return v.Text, nil
}

// GetInt returns an integer setting, or def when the setting is new or NULL.
func (s *SettingsStore) GetInt(ctx context.Context, e domain.Entity, field string, def int) (int, error) {
	v, err := s.Get(ctx, e, field, Int(int64(def)))
	if err != nil {
		return 0, err
	}
	if v.Int > math.MaxInt || v.Int < math.MinInt {
		return 0, storageErr("get setting", e.TableName(), &CoercionError{Field: field, Value: v.Int, Want: KindInt})
	}
	return int(v.Int), nil
}

// GetBool returns a boolean setting, or def when the setting is new or NULL.
func (s *SettingsStore) GetBool(ctx context.Context, e domain.Entity, field string, def bool) (bool, error) {
	v, err := s.Get(ctx, e, field, Bool(def))
	if err != nil {
		return false, err
	}
	return v.Bool, nil
}

// SetText writes a text setting and reports success.
func (s *SettingsStore) SetText(ctx context.Context, e domain.Entity, field, def, value string) bool {
	return s.set(ctx, e, field, Text(def), Text(value))
}

// SetInt writes an integer setting and reports success.
func (s *SettingsStore) SetInt(ctx context.Context, e domain.Entity, field string, def, value int) bool {
	return s.set(ctx, e, field, Int(int64(def)), Int(int64(value)))
}

// SetBool writes a boolean setting and reports success.
func (s *SettingsStore) SetBool(ctx context.Context, e domain.Entity, field string, def, value bool) bool {
	return s.set(ctx, e, field, Bool(def), Bool(value))
}

// Put is the untyped write behind the typed accessors. Unlike Set* it
// returns the failure.
func (s *SettingsStore) Put(ctx context.Context, e domain.Entity, field string, def, value Value) error {
	table := e.TableName()
	if _, err := s.ensure(ctx, table, field, def); err != nil {
		return err
	}
	id := e.EntityID()
	if id == nil {
		return storageErr("set setting", table, ErrNoIdentity)
	}

	stmt := fmt.Sprintf("UPDATE %s SET [%s] = ? WHERE ID = ?", quoteTable(table), field)
	res := s.db.WithContext(ctx).Exec(stmt, value.Arg(), *id)
	if res.Error != nil {
		return storageErr("set setting", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return storageErr("set setting", table, ErrNotFound)
	}
	return nil
}

// Get is the untyped read behind the typed accessors. A missing column is
// created with def as its default and def is returned.
func (s *SettingsStore) Get(ctx context.Context, e domain.Entity, field string, def Value) (Value, error) {
	table := e.TableName()
	declared, exists, err := s.catalog.Lookup(ctx, table, field)
	if err != nil {
		return Value{}, err
	}
	if !exists {
		if _, err := s.ensure(ctx, table, field, def); err != nil {
			return Value{}, err
		}
		// Every row just inherited the column default.
		return def, nil
	}
	if declared != "" && declared != string(def.ColumnType()) {
		log.Warn().
			Str("table", table).
			Str("field", field).
			Str("declared", declared).
			Str("requested", def.Kind.String()).
			Msg("setting read with a different type than it was created with")
	}

	id := e.EntityID()
	if id == nil {
		return Value{}, storageErr("get setting", table, ErrNoIdentity)
	}

	var raw any
	stmt := fmt.Sprintf("SELECT [%s] FROM %s WHERE ID = ?", field, quoteTable(table))
	if err := s.db.WithContext(ctx).Raw(stmt, *id).Row().Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return Value{}, storageErr("get setting", table, err)
	}
	if raw == nil {
		return def, nil
	}
	v, err := coerce(field, raw, def.Kind)
	if err != nil {
		return Value{}, storageErr("get setting", table, err)
	}
	return v, nil
}

func (s *SettingsStore) set(ctx context.Context, e domain.Entity, field string, def, value Value) bool {
	if err := s.Put(ctx, e, field, def, value); err != nil {
		settingWriteFailures.WithLabelValues(e.TableName()).Inc()
		log.Error().
			Err(err).
			Str("table", e.TableName()).
			Str("field", field).
			Msg("setting write failed")
		return false
	}
	return true
}

func (s *SettingsStore) ensure(ctx context.Context, table, field string, def Value) (bool, error) {
	return s.catalog.EnsureColumn(ctx, table, Column{
		Name:    field,
		Type:    def.ColumnType(),
		Default: def.Literal(),
	})
}
