// Package repo implements the data persistence layer for bot entities,
// backed by GORM. This file records processed webhook updates so replays
// delivered by the platform are handled at most once.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

// MarkUpdate records updateID as processed until now+ttl. It returns
// ErrDuplicate when a live record already exists. Expired records for the
// same id are replaced.
func MarkUpdate(ctx context.Context, db *gorm.DB, updateID int64, ttl time.Duration, now time.Time) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("update_id = ? AND expires_at <= ?", updateID, now).
		Delete(&domain.ProcessedUpdate{}).Error; err != nil {
		return storageErr("expire update", domain.ProcessedUpdate{}.TableName(), err)
	}

	rec := &domain.ProcessedUpdate{UpdateID: updateID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	if err := tx.Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return storageErr("mark update", rec.TableName(), err)
	}
	return nil
}

// PruneUpdates deletes expired records and returns how many were removed.
func PruneUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ProcessedUpdate{})
	if res.Error != nil {
		return 0, storageErr("prune updates", domain.ProcessedUpdate{}.TableName(), res.Error)
	}
	return res.RowsAffected, nil
}
