// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-only repository functions for the
// User and Token models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// lookups.
//
// Error semantics:
//   - When a user or token is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (connectivity issues, etc.), the raw gorm error is
//     propagated.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/codecraft-edu/comms-backend/internal/domain"
)

// GetUser fetches a user by numeric ID, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByToken resolves the user owning the token with the given key.
// It returns ErrNotFound when the key is unknown.
func GetUserByToken(ctx context.Context, db *gorm.DB, key string) (*domain.User, error) {
	var tok domain.Token
	err := db.WithContext(ctx).
		Where("key = ?", key).
		First(&tok).Error
	if err != nil {
		return nil, err
	}
	return GetUser(ctx, db, tok.UserID)
}
