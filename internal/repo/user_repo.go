// Package repo implements the data persistence layer for bot entities,
// backed by GORM. This file provides lookups and tracking helpers for users,
// groups, and the global settings row.
//
// Lookups that find nothing return ErrNotFound (gorm.ErrRecordNotFound).
// When duplicate natural keys exist, the row with the lowest ID is returned.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

// UserByPlatformID returns the user with the given platform user id.
func UserByPlatformID(ctx context.Context, db *gorm.DB, platformID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("UserId = ?", platformID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByUserName returns the user whose handle equals name, ignoring case.
func UserByUserName(ctx context.Context, db *gorm.DB, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}
	var u domain.User
	err := db.WithContext(ctx).
		Where("UserName = ? COLLATE NOCASE", name).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByIDOrName interprets arg verbatim: it matches the platform id as a
// string, or the handle (leading @ removed, case ignored).
func UserByIDOrName(ctx context.Context, db *gorm.DB, arg string) (*domain.User, error) {
	name := strings.TrimPrefix(arg, "@")
	q := db.WithContext(ctx).Where("CAST(UserId AS TEXT) = ?", arg)
	if name != "" {
		q = q.Or("UserName = ? COLLATE NOCASE", name)
	}
	var u domain.User
	if err := q.First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CountUsers returns the number of rows in the users table.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error
	return n, err
}

// TouchUser records that pu was heard from at now: it creates the user on
// first sight and refreshes name, handle and LastHeard otherwise.
func TouchUser(ctx context.Context, db *gorm.DB, pu domain.PlatformUser, now time.Time) (*domain.User, error) {
	u, err := UserByPlatformID(ctx, db, pu.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		u = &domain.User{UserID: pu.ID, FirstSeen: now}
	case err != nil:
		return nil, storageErr("lookup", domain.User{}.TableName(), err)
	}
	u.Name = pu.DisplayName()
	u.UserName = pu.Username
	u.LastHeard = now
	if err := Save(ctx, db, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GroupByPlatformID returns the group with the given platform chat id.
func GroupByPlatformID(ctx context.Context, db *gorm.DB, groupID int64) (*domain.Group, error) {
	var g domain.Group
	if err := db.WithContext(ctx).Where("GroupId = ?", groupID).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// TouchGroup creates or refreshes the group row for chat.
func TouchGroup(ctx context.Context, db *gorm.DB, chat domain.Chat) (*domain.Group, error) {
	g, err := GroupByPlatformID(ctx, db, chat.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		g = &domain.Group{GroupID: chat.ID}
	case err != nil:
		return nil, storageErr("lookup", domain.Group{}.TableName(), err)
	}
	g.Name = chat.Title
	g.UserName = chat.Username
	if err := Save(ctx, db, g); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadSetting returns the settings row for alias, creating it from seed
// when missing. Empty fields of an existing row are filled from seed.
func LoadSetting(ctx context.Context, db *gorm.DB, seed domain.Setting) (*domain.Setting, error) {
	var s domain.Setting
	err := db.WithContext(ctx).Where("Alias = ?", seed.Alias).First(&s).Error
	switch {
	case errors.Is(err, ErrNotFound):
		s = domain.Setting{
			Alias:                      seed.Alias,
			TelegramBotAPIKey:          seed.TelegramBotAPIKey,
			TelegramDefaultAdminUserID: seed.TelegramDefaultAdminUserID,
		}
	case err != nil:
		return nil, storageErr("lookup", s.TableName(), err)
	default:
		if s.TelegramBotAPIKey != "" && s.TelegramDefaultAdminUserID != 0 {
			return &s, nil
		}
		if s.TelegramBotAPIKey == "" {
			s.TelegramBotAPIKey = seed.TelegramBotAPIKey
		}
		if s.TelegramDefaultAdminUserID == 0 {
			s.TelegramDefaultAdminUserID = seed.TelegramDefaultAdminUserID
		}
	}
	if err := Save(ctx, db, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
