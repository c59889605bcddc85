// Package repo implements the data persistence layer for bot entities,
// backed by GORM. This file provides the generic save/exists/remove
// operations shared by users, groups, and the global settings row.
//
// Functions:
//
//   - Save(ctx, db, e) -> error
//     Inserts e when it has no ID or its row is gone, then reads the new ID
//     back by natural key (first match wins); otherwise updates every fixed
//     column by ID.
//
//   - Exists(ctx, db, e) -> (bool, error)
//     Reports whether a row with e's ID exists; false for unsaved entities.
//
//   - Remove(ctx, db, e) -> error
//     Deletes the row with e's ID; a no-op for unsaved or missing rows.
//
// Errors are returned as *StorageError without retries.
package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

// Save persists e with insert-or-update semantics.
//
// The surrogate ID is assigned by the store; the natural key is the
// external identity used to find it after the insert. If duplicate natural
// keys exist, the lowest ID wins.
func Save(ctx context.Context, db *gorm.DB, e domain.Entity) error {
	table := e.TableName()

	exists, err := Exists(ctx, db, e)
	if err != nil {
		return err
	}
	if exists {
		err := db.WithContext(ctx).
			Table(table).
			Where("ID = ?", *e.EntityID()).
			Updates(e.Columns()).Error
		return storageErr("update", table, err)
	}

	if err := db.WithContext(ctx).Table(table).Create(e.Columns()).Error; err != nil {
		return storageErr("insert", table, err)
	}

	col, val := e.NaturalKey()
	var id int64
	q := fmt.Sprintf("SELECT ID FROM %s WHERE [%s] = ? ORDER BY ID LIMIT 1", quoteTable(table), col)
	if err := db.WithContext(ctx).Raw(q, val).Row().Scan(&id); err != nil {
		return storageErr("read back id", table, err)
	}
	e.AssignID(id)
	return nil
}

// Exists reports whether e's row is present.
func Exists(ctx context.Context, db *gorm.DB, e domain.Entity) (bool, error) {
	id := e.EntityID()
	if id == nil {
		return false, nil
	}
	var n int64
	q := fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE ID = ?", quoteTable(e.TableName()))
	if err := db.WithContext(ctx).Raw(q, *id).Row().Scan(&n); err != nil {
		return false, storageErr("exists", e.TableName(), err)
	}
	return n > 0, nil
}

// Remove deletes e's row.
func Remove(ctx context.Context, db *gorm.DB, e domain.Entity) error {
	id := e.EntityID()
	if id == nil {
		return nil
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE ID = ?", quoteTable(e.TableName()))
	return storageErr("remove", e.TableName(), db.WithContext(ctx).Exec(q, *id).Error)
}
